package codegen

import (
	"fmt"

	"github.com/conduit-lang/entityframe/internal/orm/relational"
)

// IndexGenerator generates CREATE INDEX statements
type IndexGenerator struct {
	dialect Dialect
}

// NewIndexGenerator creates a new index generator
func NewIndexGenerator(dialect Dialect) *IndexGenerator {
	return &IndexGenerator{dialect: dialect}
}

// GenerateCreateIndex generates a CREATE INDEX statement for an index of table
func (g *IndexGenerator) GenerateCreateIndex(table string, idx *relational.Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s);",
		unique, g.dialect.QuoteIdentifier(idx.Name), g.dialect.QuoteIdentifier(table), quoteAll(g.dialect, idx.Columns))
}

// GenerateDropIndex generates a DROP INDEX statement
func (g *IndexGenerator) GenerateDropIndex(name string) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s;", g.dialect.QuoteIdentifier(name))
}
