package migrate

import (
	"fmt"
	"strings"
	"time"

	"github.com/conduit-lang/entityframe/internal/orm/codegen"
	"github.com/conduit-lang/entityframe/internal/orm/relational"
)

const (
	breakingMarker = "-- +migrate breaking"
	dataLossMarker = "-- +migrate data-loss"
)

// Generator generates migration SQL from schema changes
type Generator struct {
	ddlGen *codegen.DDLGenerator
	now    func() time.Time
}

// NewGenerator creates a new migration generator for a dialect
func NewGenerator(dialect codegen.Dialect) *Generator {
	return &Generator{
		ddlGen: codegen.NewDDLGenerator(dialect),
		now:    time.Now,
	}
}

// GenerateMigration creates a migration that moves oldSchema to newSchema. It returns
// nil when the schemas are equivalent. An empty name is derived from the changes.
func (g *Generator) GenerateMigration(oldSchema, newSchema *relational.Schema, name string) (*Migration, error) {
	up := Diff(oldSchema, newSchema)
	if len(up) == 0 {
		return nil, nil
	}
	down := Diff(newSchema, oldSchema)

	if name == "" {
		name = GenerateMigrationName(up)
	}

	migration := &Migration{
		Version:  g.now().UnixMilli(),
		Name:     sanitizeName(name),
		Breaking: HasBreaking(up),
		DataLoss: HasDataLoss(up),
	}

	upSQL, err := g.GenerateSQL(up)
	if err != nil {
		return nil, fmt.Errorf("generating up SQL: %w", err)
	}
	downSQL, err := g.GenerateSQL(down)
	if err != nil {
		return nil, fmt.Errorf("generating down SQL: %w", err)
	}

	var header strings.Builder
	header.WriteString("-- Auto-generated migration\n")
	header.WriteString(fmt.Sprintf("-- Generated at: %s\n", g.now().UTC().Format(time.RFC3339)))
	if migration.Breaking {
		header.WriteString(breakingMarker + "\n")
	}
	if migration.DataLoss {
		header.WriteString(dataLossMarker + "\n")
	}
	header.WriteString("\n")

	migration.Up = header.String() + upSQL
	migration.Down = downSQL
	return migration, nil
}

// GenerateSQL renders operations as SQL statements, one per line
func (g *Generator) GenerateSQL(ops []Operation) (string, error) {
	var sql strings.Builder
	for _, op := range ops {
		statements, err := g.statements(op)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		for _, stmt := range statements {
			sql.WriteString(stmt)
			sql.WriteString("\n")
		}
	}
	return sql.String(), nil
}

func (g *Generator) statements(op Operation) ([]string, error) {
	dialect := g.ddlGen.Dialect()
	constraints := g.ddlGen.Constraints()

	switch op.Type {
	case OpCreateTable:
		stmt, err := g.ddlGen.GenerateCreateTable(op.TableDef)
		return []string{stmt}, err

	case OpDropTable:
		return []string{g.ddlGen.GenerateDropTable(op.Table)}, nil

	case OpAddColumn:
		stmt, err := g.ddlGen.GenerateAddColumn(op.Table, op.Column)
		return []string{stmt}, err

	case OpDropColumn:
		return []string{g.ddlGen.GenerateDropColumn(op.Table, op.OldColumn.Name)}, nil

	case OpAlterColumn:
		return g.ddlGen.GenerateAlterColumn(op.Table, op.OldColumn, op.Column)

	case OpAddForeignKey:
		if op.NewTable && !dialect.SupportsAlterAddConstraint() {
			// declared inline by CREATE TABLE
			return nil, nil
		}
		stmt, err := g.ddlGen.GenerateAddForeignKey(op.Table, op.ForeignKey)
		return []string{stmt}, err

	case OpDropForeignKey:
		stmt, err := constraints.GenerateDropConstraint(op.Table, op.ForeignKey.Name)
		return []string{stmt}, err

	case OpAddUniqueConstraint:
		stmt, err := constraints.GenerateAddUniqueConstraint(op.Table, op.Unique)
		return []string{stmt}, err

	case OpDropUniqueConstraint:
		stmt, err := constraints.GenerateDropConstraint(op.Table, op.Unique.Name)
		return []string{stmt}, err

	case OpCreateIndex:
		return []string{g.ddlGen.GenerateCreateIndex(op.Table, op.Index)}, nil

	case OpDropIndex:
		return []string{g.ddlGen.GenerateDropIndex(op.Index.Name)}, nil
	}

	return nil, fmt.Errorf("unknown operation %d", op.Type)
}
