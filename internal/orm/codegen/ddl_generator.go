package codegen

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/entityframe/internal/orm/relational"
)

// DDLGenerator generates DDL statements from relational schemas
type DDLGenerator struct {
	dialect     Dialect
	constraints *ConstraintGenerator
	indexes     *IndexGenerator
}

// NewDDLGenerator creates a new DDL generator for a dialect
func NewDDLGenerator(dialect Dialect) *DDLGenerator {
	return &DDLGenerator{
		dialect:     dialect,
		constraints: NewConstraintGenerator(dialect),
		indexes:     NewIndexGenerator(dialect),
	}
}

// Dialect returns the dialect statements are generated for
func (g *DDLGenerator) Dialect() Dialect {
	return g.dialect
}

// Constraints returns the constraint generator
func (g *DDLGenerator) Constraints() *ConstraintGenerator {
	return g.constraints
}

// GenerateCreateTable generates a CREATE TABLE statement. Dialects that cannot add
// constraints later get their foreign keys inline.
func (g *DDLGenerator) GenerateCreateTable(table *relational.Table) (string, error) {
	if table == nil {
		return "", fmt.Errorf("table cannot be nil")
	}
	if len(table.Columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", table.Name)
	}

	var defs []string
	for _, col := range table.Columns {
		def, err := g.GenerateColumnDefinition(col)
		if err != nil {
			return "", fmt.Errorf("table %s column %s: %w", table.Name, col.Name, err)
		}
		defs = append(defs, def)
	}

	if table.PrimaryKey != nil {
		defs = append(defs, g.constraints.primaryKeyClause(table.PrimaryKey))
	}
	for _, uc := range table.UniqueConstraints {
		defs = append(defs, g.constraints.uniqueClause(uc))
	}
	if !g.dialect.SupportsAlterAddConstraint() {
		for _, fk := range table.ForeignKeys {
			defs = append(defs, g.constraints.foreignKeyClause(fk))
		}
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n", g.dialect.QuoteIdentifier(table.Name)))
	for i, def := range defs {
		b.WriteString("  ")
		b.WriteString(def)
		if i < len(defs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")

	return b.String(), nil
}

// GenerateColumnDefinition generates the definition of a single column
func (g *DDLGenerator) GenerateColumnDefinition(col *relational.Column) (string, error) {
	columnType, err := g.dialect.ColumnType(col)
	if err != nil {
		return "", fmt.Errorf("mapping type: %w", err)
	}

	parts := []string{g.dialect.QuoteIdentifier(col.Name), columnType, mapNullability(col)}
	if check := g.constraints.lengthCheck(col); check != "" {
		parts = append(parts, check)
	}
	return strings.Join(parts, " "), nil
}

// SchemaStatements returns the statements that create s: tables in dependency order,
// then foreign keys where the dialect adds them separately, then indexes.
func (g *DDLGenerator) SchemaStatements(s *relational.Schema) ([]string, error) {
	var statements []string
	for _, table := range s.Tables {
		stmt, err := g.GenerateCreateTable(table)
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}

	if g.dialect.SupportsAlterAddConstraint() {
		for _, table := range s.Tables {
			for _, fk := range table.ForeignKeys {
				stmt, err := g.GenerateAddForeignKey(table.Name, fk)
				if err != nil {
					return nil, err
				}
				statements = append(statements, stmt)
			}
		}
	}

	for _, table := range s.Tables {
		for _, idx := range table.Indexes {
			statements = append(statements, g.GenerateCreateIndex(table.Name, idx))
		}
	}
	return statements, nil
}

// GenerateSchema generates the complete DDL for a schema
func (g *DDLGenerator) GenerateSchema(s *relational.Schema) (string, error) {
	statements, err := g.SchemaStatements(s)
	if err != nil {
		return "", err
	}
	return strings.Join(statements, "\n\n") + "\n", nil
}

// GenerateDropTable generates a DROP TABLE statement
func (g *DDLGenerator) GenerateDropTable(name string) string {
	if g.dialect.SupportsAlterAddConstraint() {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", g.dialect.QuoteIdentifier(name))
	}
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", g.dialect.QuoteIdentifier(name))
}

// GenerateAddForeignKey generates an ALTER TABLE statement adding a foreign key
func (g *DDLGenerator) GenerateAddForeignKey(table string, fk *relational.ForeignKeyConstraint) (string, error) {
	return g.constraints.GenerateAddForeignKey(table, fk)
}

// GenerateCreateIndex generates a CREATE INDEX statement
func (g *DDLGenerator) GenerateCreateIndex(table string, idx *relational.Index) string {
	return g.indexes.GenerateCreateIndex(table, idx)
}

// GenerateDropIndex generates a DROP INDEX statement
func (g *DDLGenerator) GenerateDropIndex(name string) string {
	return g.indexes.GenerateDropIndex(name)
}

// GenerateAddColumn generates an ALTER TABLE ... ADD COLUMN statement
func (g *DDLGenerator) GenerateAddColumn(table string, col *relational.Column) (string, error) {
	def, err := g.GenerateColumnDefinition(col)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", g.dialect.QuoteIdentifier(table), def), nil
}

// GenerateDropColumn generates an ALTER TABLE ... DROP COLUMN statement
func (g *DDLGenerator) GenerateDropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;",
		g.dialect.QuoteIdentifier(table), g.dialect.QuoteIdentifier(column))
}

// GenerateAlterColumn generates the statements that turn column from into to
func (g *DDLGenerator) GenerateAlterColumn(table string, from, to *relational.Column) ([]string, error) {
	if !g.dialect.SupportsAlterAddConstraint() {
		return nil, fmt.Errorf("alter column %s.%s: %w", table, to.Name, ErrUnsupported)
	}

	prefix := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s",
		g.dialect.QuoteIdentifier(table), g.dialect.QuoteIdentifier(to.Name))

	var statements []string
	oldType, err := g.dialect.ColumnType(baseColumn(from))
	if err != nil {
		return nil, err
	}
	newType, err := g.dialect.ColumnType(baseColumn(to))
	if err != nil {
		return nil, err
	}
	if oldType != newType {
		statements = append(statements, fmt.Sprintf("%s TYPE %s;", prefix, newType))
	}
	if from.Nullable != to.Nullable {
		if to.Nullable {
			statements = append(statements, prefix+" DROP NOT NULL;")
		} else {
			statements = append(statements, prefix+" SET NOT NULL;")
		}
	}
	if from.Identity != to.Identity {
		if to.Identity {
			statements = append(statements, prefix+" ADD GENERATED BY DEFAULT AS IDENTITY;")
		} else {
			statements = append(statements, prefix+" DROP IDENTITY IF EXISTS;")
		}
	}
	return statements, nil
}

// baseColumn strips identity so ALTER ... TYPE only compares the data type
func baseColumn(col *relational.Column) *relational.Column {
	c := *col
	c.Identity = false
	return &c
}
