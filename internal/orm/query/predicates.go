package query

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/lib/pq"

	"github.com/conduit-lang/entityframe/internal/orm/codegen"
	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpIn
	OpNotIn
	OpLike
	OpIsNull
	OpIsNotNull
	OpBetween
	OpInSubquery
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "<>"
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpIn, OpInSubquery:
		return "IN"
	case OpNotIn:
		return "NOT IN"
	case OpLike:
		return "LIKE"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	case OpBetween:
		return "BETWEEN"
	default:
		return "UNKNOWN"
	}
}

// ParseOperator converts an operator string to an Operator
func ParseOperator(s string) (Operator, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "=", "==":
		return OpEqual, nil
	case "!=", "<>":
		return OpNotEqual, nil
	case ">":
		return OpGreaterThan, nil
	case ">=":
		return OpGreaterThanOrEqual, nil
	case "<":
		return OpLessThan, nil
	case "<=":
		return OpLessThanOrEqual, nil
	case "IN":
		return OpIn, nil
	case "NOT IN":
		return OpNotIn, nil
	case "LIKE":
		return OpLike, nil
	case "IS NULL":
		return OpIsNull, nil
	case "IS NOT NULL":
		return OpIsNotNull, nil
	case "BETWEEN":
		return OpBetween, nil
	default:
		return OpEqual, fmt.Errorf("unknown operator: %s", s)
	}
}

// Condition is one WHERE predicate on a property
type Condition struct {
	Property *metadata.Property
	Operator Operator
	Value    interface{}
	Or       bool

	// Subquery and SubqueryProperty are set for OpInSubquery
	Subquery         *Query
	SubqueryProperty *metadata.Property
}

// params numbers placeholders for one statement
type params struct {
	dialect codegen.Dialect
	args    []interface{}
}

func (p *params) add(v interface{}) string {
	p.args = append(p.args, v)
	return p.dialect.Placeholder(len(p.args))
}

// conditionToSQL renders a condition with column references qualified by alias
func conditionToSQL(cond *Condition, alias string, p *params) (string, error) {
	column := qualify(p.dialect, alias, metadata.ColumnName(cond.Property))

	switch cond.Operator {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual, OpLike:
		return fmt.Sprintf("%s %s %s", column, cond.Operator, p.add(cond.Value)), nil

	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("%s %s", column, cond.Operator), nil

	case OpIn, OpNotIn:
		return inToSQL(column, cond, p)

	case OpBetween:
		values, ok := sliceValues(cond.Value)
		if !ok || len(values) != 2 {
			return "", fmt.Errorf("BETWEEN operator requires [min, max] values")
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", column, p.add(values[0]), p.add(values[1])), nil

	default:
		return "", fmt.Errorf("unsupported operator: %v", cond.Operator)
	}
}

// inToSQL binds the list as one array parameter on postgres and as one
// placeholder per element elsewhere
func inToSQL(column string, cond *Condition, p *params) (string, error) {
	values, ok := sliceValues(cond.Value)
	if !ok {
		return "", fmt.Errorf("%s operator requires a slice value, got %T", cond.Operator, cond.Value)
	}
	if len(values) == 0 {
		if cond.Operator == OpNotIn {
			return "1 = 1", nil
		}
		return "1 = 0", nil
	}

	if _, isPostgres := p.dialect.(codegen.Postgres); isPostgres {
		if cond.Operator == OpNotIn {
			return fmt.Sprintf("NOT (%s = ANY(%s))", column, p.add(pq.Array(cond.Value))), nil
		}
		return fmt.Sprintf("%s = ANY(%s)", column, p.add(pq.Array(cond.Value))), nil
	}

	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = p.add(v)
	}
	return fmt.Sprintf("%s %s (%s)", column, cond.Operator, strings.Join(placeholders, ", ")), nil
}

func sliceValues(v interface{}) ([]interface{}, bool) {
	if values, ok := v.([]interface{}); ok {
		return values, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	values := make([]interface{}, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values, true
}

func qualify(d codegen.Dialect, alias, column string) string {
	if alias == "" {
		return d.QuoteIdentifier(column)
	}
	return alias + "." + d.QuoteIdentifier(column)
}
