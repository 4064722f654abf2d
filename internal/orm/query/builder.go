// Package query builds and runs SELECT statements against the tables of a model
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/conduit-lang/entityframe/internal/orm/codegen"
	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

var (
	// ErrUnknownEntityType is returned when a query targets an entity type the model does not have
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrUnknownProperty is returned when a query references a property the entity type does not have
	ErrUnknownProperty = errors.New("unknown property")

	// ErrInvalidDestination is returned when All cannot scan into the destination
	ErrInvalidDestination = errors.New("invalid scan destination")
)

// Querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type orderTerm struct {
	property *metadata.Property
	desc     bool
}

// Query is a SELECT over one entity type. Builder methods record the first error,
// which ToSQL and the execution methods return.
type Query struct {
	entityType *metadata.EntityType
	dialect    codegen.Dialect
	conditions []*Condition
	orderBy    []orderTerm
	limit      *int
	offset     *int
	err        error
}

// NewQuery creates a query over the named entity type
func NewQuery(m *metadata.Model, entityType string, dialect codegen.Dialect) *Query {
	q := &Query{dialect: dialect}
	if m != nil {
		q.entityType = m.FindEntityType(entityType)
	}
	if q.entityType == nil {
		q.err = fmt.Errorf("%w: %s", ErrUnknownEntityType, entityType)
	}
	return q
}

// EntityType returns the queried entity type
func (q *Query) EntityType() *metadata.EntityType {
	return q.entityType
}

// Err returns the first error recorded while building the query
func (q *Query) Err() error {
	return q.err
}

func (q *Query) record(err error) {
	if q.err == nil {
		q.err = err
	}
}

func (q *Query) property(name string) *metadata.Property {
	if q.entityType == nil {
		return nil
	}
	p := q.entityType.FindProperty(name)
	if p == nil {
		q.record(fmt.Errorf("%w: %s.%s", ErrUnknownProperty, q.entityType.Name(), name))
	}
	return p
}

func (q *Query) where(name string, op Operator, value interface{}, or bool) *Query {
	if p := q.property(name); p != nil {
		q.conditions = append(q.conditions, &Condition{
			Property: p,
			Operator: op,
			Value:    value,
			Or:       or,
		})
	}
	return q
}

// Where adds a condition joined with AND
func (q *Query) Where(property string, op Operator, value interface{}) *Query {
	return q.where(property, op, value, false)
}

// OrWhere adds a condition joined with OR
func (q *Query) OrWhere(property string, op Operator, value interface{}) *Query {
	return q.where(property, op, value, true)
}

// WhereIn matches rows whose property is one of values. values must be a slice.
func (q *Query) WhereIn(property string, values interface{}) *Query {
	return q.where(property, OpIn, values, false)
}

// WhereNotIn matches rows whose property is none of values
func (q *Query) WhereNotIn(property string, values interface{}) *Query {
	return q.where(property, OpNotIn, values, false)
}

// WhereNull matches rows whose property is null
func (q *Query) WhereNull(property string) *Query {
	return q.where(property, OpIsNull, nil, false)
}

// WhereNotNull matches rows whose property is not null
func (q *Query) WhereNotNull(property string) *Query {
	return q.where(property, OpIsNotNull, nil, false)
}

// WhereBetween matches rows whose property lies in [min, max]
func (q *Query) WhereBetween(property string, min, max interface{}) *Query {
	return q.where(property, OpBetween, []interface{}{min, max}, false)
}

// WhereInSubquery matches rows whose property is among the subProperty values
// selected by sub
func (q *Query) WhereInSubquery(property string, sub *Query, subProperty string) *Query {
	p := q.property(property)
	if p == nil {
		return q
	}
	if sub == nil {
		q.record(fmt.Errorf("IN subquery on %s has no subquery", property))
		return q
	}
	if sub.err != nil {
		q.record(fmt.Errorf("invalid subquery: %w", sub.err))
		return q
	}
	sp := sub.entityType.FindProperty(subProperty)
	if sp == nil {
		q.record(fmt.Errorf("%w: %s.%s", ErrUnknownProperty, sub.entityType.Name(), subProperty))
		return q
	}
	q.conditions = append(q.conditions, &Condition{
		Property:         p,
		Operator:         OpInSubquery,
		Subquery:         sub,
		SubqueryProperty: sp,
	})
	return q
}

// OrderBy adds an ORDER BY term. direction is ASC or DESC; anything else is ASC.
func (q *Query) OrderBy(property string, direction string) *Query {
	if p := q.property(property); p != nil {
		q.orderBy = append(q.orderBy, orderTerm{property: p, desc: strings.EqualFold(direction, "DESC")})
	}
	return q
}

// OrderByAsc adds an ascending ORDER BY term
func (q *Query) OrderByAsc(property string) *Query {
	return q.OrderBy(property, "ASC")
}

// OrderByDesc adds a descending ORDER BY term
func (q *Query) OrderByDesc(property string) *Query {
	return q.OrderBy(property, "DESC")
}

// Limit sets the LIMIT clause
func (q *Query) Limit(n int) *Query {
	q.limit = &n
	return q
}

// Offset sets the OFFSET clause
func (q *Query) Offset(n int) *Query {
	q.offset = &n
	return q
}

// Clone creates a copy of the query
func (q *Query) Clone() *Query {
	clone := &Query{
		entityType: q.entityType,
		dialect:    q.dialect,
		conditions: make([]*Condition, len(q.conditions)),
		orderBy:    make([]orderTerm, len(q.orderBy)),
		err:        q.err,
	}
	copy(clone.conditions, q.conditions)
	copy(clone.orderBy, q.orderBy)

	if q.limit != nil {
		limit := *q.limit
		clone.limit = &limit
	}
	if q.offset != nil {
		offset := *q.offset
		clone.offset = &offset
	}
	return clone
}

// Properties returns the selected properties in column order
func (q *Query) Properties() []*metadata.Property {
	if q.entityType == nil {
		return nil
	}
	return q.entityType.Properties()
}

// ToSQL generates the SQL statement and its arguments
func (q *Query) ToSQL() (string, []interface{}, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	p := &params{dialect: q.dialect}
	stmt, err := q.render(q.Properties(), p, 0)
	if err != nil {
		return "", nil, err
	}
	return stmt, p.args, nil
}

// render writes the statement. Nested queries get deeper table aliases.
func (q *Query) render(props []*metadata.Property, p *params, depth int) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	alias := fmt.Sprintf("t%d", depth)

	var sb strings.Builder
	sb.WriteString("SELECT ")
	for i, prop := range props {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(qualify(q.dialect, alias, metadata.ColumnName(prop)))
	}
	fmt.Fprintf(&sb, " FROM %s AS %s", q.dialect.QuoteIdentifier(metadata.TableName(q.entityType)), alias)

	if len(q.conditions) > 0 {
		sb.WriteString(" WHERE ")
		for i, cond := range q.conditions {
			if i > 0 {
				if cond.Or {
					sb.WriteString(" OR ")
				} else {
					sb.WriteString(" AND ")
				}
			}
			condSQL, err := q.conditionToSQL(cond, alias, p, depth)
			if err != nil {
				return "", fmt.Errorf("failed to build condition: %w", err)
			}
			sb.WriteString(condSQL)
		}
	}

	if len(q.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, term := range q.orderBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(qualify(q.dialect, alias, metadata.ColumnName(term.property)))
			if term.desc {
				sb.WriteString(" DESC")
			} else {
				sb.WriteString(" ASC")
			}
		}
	}

	if q.limit != nil {
		sb.WriteString(" LIMIT " + p.add(*q.limit))
	}
	if q.offset != nil {
		sb.WriteString(" OFFSET " + p.add(*q.offset))
	}

	return sb.String(), nil
}

func (q *Query) conditionToSQL(cond *Condition, alias string, p *params, depth int) (string, error) {
	if cond.Operator != OpInSubquery {
		return conditionToSQL(cond, alias, p)
	}
	if cond.Subquery == nil || cond.SubqueryProperty == nil {
		return "", fmt.Errorf("IN subquery on %s has no subquery", cond.Property.Name())
	}
	sub, err := cond.Subquery.render([]*metadata.Property{cond.SubqueryProperty}, p, depth+1)
	if err != nil {
		return "", fmt.Errorf("failed to build subquery: %w", err)
	}
	return fmt.Sprintf("%s IN (%s)", qualify(p.dialect, alias, metadata.ColumnName(cond.Property)), sub), nil
}

// All runs the query and scans the rows into dest, a pointer to a slice of the
// entity's struct type or of pointers to it. Shadow properties are not scanned
// into the struct.
func (q *Query) All(ctx context.Context, db Querier, dest interface{}) error {
	slice, elemType, isPtr, err := q.destination(dest)
	if err != nil {
		return err
	}

	stmt, args, err := q.ToSQL()
	if err != nil {
		return fmt.Errorf("failed to generate SQL: %w", err)
	}

	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", ConvertDBError(err))
	}
	defer rows.Close()

	props := q.Properties()
	result := reflect.MakeSlice(slice.Type(), 0, 0)
	for rows.Next() {
		item := reflect.New(elemType)
		targets := make([]interface{}, len(props))
		for i, prop := range props {
			field := item.Elem().FieldByName(prop.Name())
			if prop.IsShadow() || !field.IsValid() || !field.CanSet() {
				var discard interface{}
				targets[i] = &discard
				continue
			}
			targets[i] = field.Addr().Interface()
		}
		if err := rows.Scan(targets...); err != nil {
			return fmt.Errorf("failed to scan %s: %w", q.entityType.Name(), err)
		}
		if isPtr {
			result = reflect.Append(result, item)
		} else {
			result = reflect.Append(result, item.Elem())
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read rows: %w", ConvertDBError(err))
	}

	slice.Set(result)
	return nil
}

func (q *Query) destination(dest interface{}) (reflect.Value, reflect.Type, bool, error) {
	if q.entityType == nil {
		return reflect.Value{}, nil, false, q.err
	}
	goType := q.entityType.GoType()
	if goType == nil {
		return reflect.Value{}, nil, false, fmt.Errorf("%w: %s has no struct type, use Rows", ErrInvalidDestination, q.entityType.Name())
	}

	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Slice {
		return reflect.Value{}, nil, false, fmt.Errorf("%w: expected pointer to slice, got %T", ErrInvalidDestination, dest)
	}
	slice := rv.Elem()
	elem := slice.Type().Elem()
	isPtr := elem.Kind() == reflect.Ptr
	if isPtr {
		elem = elem.Elem()
	}
	if elem != goType {
		return reflect.Value{}, nil, false, fmt.Errorf("%w: %s maps %s, got %s", ErrInvalidDestination, q.entityType.Name(), goType, elem)
	}
	return slice, elem, isPtr, nil
}

// Rows runs the query and returns each row keyed by property name. It works for
// shadow entity types and includes shadow properties.
func (q *Query) Rows(ctx context.Context, db Querier) ([]map[string]interface{}, error) {
	stmt, args, err := q.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to generate SQL: %w", err)
	}

	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", ConvertDBError(err))
	}
	defer rows.Close()

	props := q.Properties()
	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(props))
		valuePtrs := make([]interface{}, len(props))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(map[string]interface{}, len(props))
		for i, prop := range props {
			record[prop.Name()] = values[i]
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, ConvertDBError(err)
	}
	return results, nil
}

// Count runs the query as SELECT COUNT(*)
func (q *Query) Count(ctx context.Context, db Querier) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	counted := q.Clone()
	counted.orderBy = nil
	counted.limit = nil
	counted.offset = nil

	stmt, args, err := counted.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to generate SQL: %w", err)
	}
	from := strings.Index(stmt, " FROM ")
	stmt = "SELECT COUNT(*)" + stmt[from:]

	var count int
	if err := db.QueryRowContext(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to execute count query: %w", ConvertDBError(err))
	}
	return count, nil
}
