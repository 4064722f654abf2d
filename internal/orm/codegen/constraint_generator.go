package codegen

import (
	"fmt"

	"github.com/conduit-lang/entityframe/internal/orm/relational"
)

// ConstraintGenerator generates key, unique, foreign key and check constraints
type ConstraintGenerator struct {
	dialect Dialect
}

// NewConstraintGenerator creates a new constraint generator
func NewConstraintGenerator(dialect Dialect) *ConstraintGenerator {
	return &ConstraintGenerator{dialect: dialect}
}

func (g *ConstraintGenerator) primaryKeyClause(pk *relational.KeyConstraint) string {
	return fmt.Sprintf("CONSTRAINT %s PRIMARY KEY (%s)",
		g.dialect.QuoteIdentifier(pk.Name), quoteAll(g.dialect, pk.Columns))
}

func (g *ConstraintGenerator) uniqueClause(uc *relational.KeyConstraint) string {
	return fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)",
		g.dialect.QuoteIdentifier(uc.Name), quoteAll(g.dialect, uc.Columns))
}

func (g *ConstraintGenerator) foreignKeyClause(fk *relational.ForeignKeyConstraint) string {
	clause := fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		g.dialect.QuoteIdentifier(fk.Name),
		quoteAll(g.dialect, fk.Columns),
		g.dialect.QuoteIdentifier(fk.PrincipalTable),
		quoteAll(g.dialect, fk.PrincipalColumns))
	if fk.OnDelete != "" {
		clause += " ON DELETE " + fk.OnDelete
	}
	return clause
}

// lengthCheck returns a CHECK clause bounding string length for dialects that do not
// enforce sized types
func (g *ConstraintGenerator) lengthCheck(col *relational.Column) string {
	if g.dialect.EnforcesMaxLength() || col.MaxLength <= 0 || col.StoreType != relational.TypeString {
		return ""
	}
	return fmt.Sprintf("CHECK (LENGTH(%s) <= %d)", g.dialect.QuoteIdentifier(col.Name), col.MaxLength)
}

// GenerateAddForeignKey generates ALTER TABLE ... ADD CONSTRAINT ... FOREIGN KEY
func (g *ConstraintGenerator) GenerateAddForeignKey(table string, fk *relational.ForeignKeyConstraint) (string, error) {
	if !g.dialect.SupportsAlterAddConstraint() {
		return "", fmt.Errorf("add foreign key %s: %w", fk.Name, ErrUnsupported)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD %s;",
		g.dialect.QuoteIdentifier(table), g.foreignKeyClause(fk)), nil
}

// GenerateAddUniqueConstraint generates ALTER TABLE ... ADD CONSTRAINT ... UNIQUE
func (g *ConstraintGenerator) GenerateAddUniqueConstraint(table string, uc *relational.KeyConstraint) (string, error) {
	if !g.dialect.SupportsAlterAddConstraint() {
		return "", fmt.Errorf("add unique constraint %s: %w", uc.Name, ErrUnsupported)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD %s;",
		g.dialect.QuoteIdentifier(table), g.uniqueClause(uc)), nil
}

// GenerateDropConstraint generates ALTER TABLE ... DROP CONSTRAINT
func (g *ConstraintGenerator) GenerateDropConstraint(table, name string) (string, error) {
	if !g.dialect.SupportsAlterAddConstraint() {
		return "", fmt.Errorf("drop constraint %s: %w", name, ErrUnsupported)
	}
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s;",
		g.dialect.QuoteIdentifier(table), g.dialect.QuoteIdentifier(name)), nil
}
