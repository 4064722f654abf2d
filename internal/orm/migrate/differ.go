package migrate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/conduit-lang/entityframe/internal/orm/relational"
)

// OperationType represents the type of schema change
type OperationType int

const (
	OpCreateTable OperationType = iota
	OpDropTable
	OpAddColumn
	OpDropColumn
	OpAlterColumn
	OpAddForeignKey
	OpDropForeignKey
	OpCreateIndex
	OpDropIndex
	OpAddUniqueConstraint
	OpDropUniqueConstraint
)

// String returns the string representation of the operation type
func (o OperationType) String() string {
	switch o {
	case OpCreateTable:
		return "create_table"
	case OpDropTable:
		return "drop_table"
	case OpAddColumn:
		return "add_column"
	case OpDropColumn:
		return "drop_column"
	case OpAlterColumn:
		return "alter_column"
	case OpAddForeignKey:
		return "add_foreign_key"
	case OpDropForeignKey:
		return "drop_foreign_key"
	case OpCreateIndex:
		return "create_index"
	case OpDropIndex:
		return "drop_index"
	case OpAddUniqueConstraint:
		return "add_unique_constraint"
	case OpDropUniqueConstraint:
		return "drop_unique_constraint"
	default:
		return "unknown"
	}
}

// Operation is a single step that moves a database from one schema to another
type Operation struct {
	Type  OperationType
	Table string

	// TableDef is set for create_table and drop_table
	TableDef *relational.Table
	// Column is the new column; OldColumn is set for alter_column and drop_column
	Column    *relational.Column
	OldColumn *relational.Column

	ForeignKey *relational.ForeignKeyConstraint
	Index      *relational.Index
	Unique     *relational.KeyConstraint

	// NewTable reports whether Table is created by the same set of operations
	NewTable bool

	Breaking bool
	DataLoss bool
}

// String describes the operation
func (o Operation) String() string {
	switch {
	case o.Column != nil:
		return fmt.Sprintf("%s %s.%s", o.Type, o.Table, o.Column.Name)
	case o.OldColumn != nil:
		return fmt.Sprintf("%s %s.%s", o.Type, o.Table, o.OldColumn.Name)
	case o.ForeignKey != nil:
		return fmt.Sprintf("%s %s", o.Type, o.ForeignKey.Name)
	case o.Index != nil:
		return fmt.Sprintf("%s %s", o.Type, o.Index.Name)
	case o.Unique != nil:
		return fmt.Sprintf("%s %s", o.Type, o.Unique.Name)
	default:
		return fmt.Sprintf("%s %s", o.Type, o.Table)
	}
}

// Differ compares two relational schemas
type Differ struct {
	oldSchema *relational.Schema
	newSchema *relational.Schema
}

// NewDiffer creates a new schema differ. A nil schema is treated as empty.
func NewDiffer(oldSchema, newSchema *relational.Schema) *Differ {
	if oldSchema == nil {
		oldSchema = &relational.Schema{}
	}
	if newSchema == nil {
		newSchema = &relational.Schema{}
	}
	return &Differ{oldSchema: oldSchema, newSchema: newSchema}
}

// Diff returns the operations between two schemas
func Diff(oldSchema, newSchema *relational.Schema) []Operation {
	return NewDiffer(oldSchema, newSchema).ComputeDiff()
}

// ComputeDiff returns the operations in an order that can be applied safely: foreign
// keys, indexes and unique constraints are dropped before the tables and columns they
// use, and added after them.
func (d *Differ) ComputeDiff() []Operation {
	var drops, tables, columns, constraints, foreignKeys, indexes []Operation

	// dropped tables, dependents first
	for i := len(d.oldSchema.Tables) - 1; i >= 0; i-- {
		oldTable := d.oldSchema.Tables[i]
		if d.newSchema.FindTable(oldTable.Name) == nil {
			tables = append(tables, Operation{
				Type:     OpDropTable,
				Table:    oldTable.Name,
				TableDef: oldTable,
				Breaking: true,
				DataLoss: true,
			})
		}
	}

	for _, newTable := range d.newSchema.Tables {
		oldTable := d.oldSchema.FindTable(newTable.Name)
		if oldTable == nil {
			tables = append(tables, Operation{Type: OpCreateTable, Table: newTable.Name, TableDef: newTable, NewTable: true})
			for _, fk := range newTable.ForeignKeys {
				foreignKeys = append(foreignKeys, Operation{Type: OpAddForeignKey, Table: newTable.Name, ForeignKey: fk, NewTable: true})
			}
			for _, idx := range newTable.Indexes {
				indexes = append(indexes, Operation{Type: OpCreateIndex, Table: newTable.Name, Index: idx, NewTable: true})
			}
			continue
		}

		drops = append(drops, d.diffForeignKeyDrops(oldTable, newTable)...)
		drops = append(drops, d.diffIndexDrops(oldTable, newTable)...)
		drops = append(drops, d.diffUniqueDrops(oldTable, newTable)...)

		columns = append(columns, d.diffColumns(oldTable, newTable)...)
		constraints = append(constraints, d.diffUniqueAdds(oldTable, newTable)...)
		foreignKeys = append(foreignKeys, d.diffForeignKeyAdds(oldTable, newTable)...)
		indexes = append(indexes, d.diffIndexAdds(oldTable, newTable)...)
	}

	var ops []Operation
	ops = append(ops, drops...)
	ops = append(ops, tables...)
	ops = append(ops, columns...)
	ops = append(ops, constraints...)
	ops = append(ops, foreignKeys...)
	ops = append(ops, indexes...)
	return ops
}

func (d *Differ) diffColumns(oldTable, newTable *relational.Table) []Operation {
	var ops []Operation

	for _, col := range newTable.Columns {
		old := oldTable.FindColumn(col.Name)
		if old == nil {
			ops = append(ops, Operation{
				Type:     OpAddColumn,
				Table:    newTable.Name,
				Column:   col,
				Breaking: !col.Nullable && !col.Identity,
			})
			continue
		}
		if !columnsEqual(old, col) {
			dataLoss := narrows(old, col)
			ops = append(ops, Operation{
				Type:      OpAlterColumn,
				Table:     newTable.Name,
				Column:    col,
				OldColumn: old,
				Breaking:  dataLoss || (old.Nullable && !col.Nullable),
				DataLoss:  dataLoss,
			})
		}
	}

	for _, old := range oldTable.Columns {
		if newTable.FindColumn(old.Name) == nil {
			ops = append(ops, Operation{
				Type:      OpDropColumn,
				Table:     newTable.Name,
				OldColumn: old,
				Breaking:  true,
				DataLoss:  true,
			})
		}
	}

	return ops
}

func (d *Differ) diffForeignKeyDrops(oldTable, newTable *relational.Table) []Operation {
	var ops []Operation
	for _, fk := range oldTable.ForeignKeys {
		if current := newTable.FindForeignKey(fk.Name); current == nil || !reflect.DeepEqual(current, fk) {
			ops = append(ops, Operation{Type: OpDropForeignKey, Table: oldTable.Name, ForeignKey: fk})
		}
	}
	return ops
}

func (d *Differ) diffForeignKeyAdds(oldTable, newTable *relational.Table) []Operation {
	var ops []Operation
	for _, fk := range newTable.ForeignKeys {
		if old := oldTable.FindForeignKey(fk.Name); old == nil || !reflect.DeepEqual(old, fk) {
			// existing rows may not satisfy the new constraint
			ops = append(ops, Operation{Type: OpAddForeignKey, Table: newTable.Name, ForeignKey: fk, Breaking: true})
		}
	}
	return ops
}

func (d *Differ) diffIndexDrops(oldTable, newTable *relational.Table) []Operation {
	var ops []Operation
	for _, idx := range oldTable.Indexes {
		if current := newTable.FindIndex(idx.Name); current == nil || !reflect.DeepEqual(current, idx) {
			ops = append(ops, Operation{Type: OpDropIndex, Table: oldTable.Name, Index: idx})
		}
	}
	return ops
}

func (d *Differ) diffIndexAdds(oldTable, newTable *relational.Table) []Operation {
	var ops []Operation
	for _, idx := range newTable.Indexes {
		if old := oldTable.FindIndex(idx.Name); old == nil || !reflect.DeepEqual(old, idx) {
			ops = append(ops, Operation{Type: OpCreateIndex, Table: newTable.Name, Index: idx, Breaking: idx.Unique})
		}
	}
	return ops
}

func (d *Differ) diffUniqueDrops(oldTable, newTable *relational.Table) []Operation {
	var ops []Operation
	for _, uc := range oldTable.UniqueConstraints {
		if current := newTable.FindUniqueConstraint(uc.Name); current == nil || !reflect.DeepEqual(current, uc) {
			ops = append(ops, Operation{Type: OpDropUniqueConstraint, Table: oldTable.Name, Unique: uc})
		}
	}
	return ops
}

func (d *Differ) diffUniqueAdds(oldTable, newTable *relational.Table) []Operation {
	var ops []Operation
	for _, uc := range newTable.UniqueConstraints {
		if old := oldTable.FindUniqueConstraint(uc.Name); old == nil || !reflect.DeepEqual(old, uc) {
			ops = append(ops, Operation{Type: OpAddUniqueConstraint, Table: newTable.Name, Unique: uc, Breaking: true})
		}
	}
	return ops
}

func columnsEqual(a, b *relational.Column) bool {
	return a.StoreType == b.StoreType &&
		a.Nullable == b.Nullable &&
		a.MaxLength == b.MaxLength &&
		a.Identity == b.Identity
}

var integerWidth = map[relational.StoreType]int{
	relational.TypeInt16: 16,
	relational.TypeInt32: 32,
	relational.TypeInt64: 64,
}

// narrows reports whether converting values of from to to may lose data
func narrows(from, to *relational.Column) bool {
	if to.StoreType == relational.TypeString && from.StoreType == relational.TypeString {
		return to.MaxLength > 0 && (from.MaxLength == 0 || to.MaxLength < from.MaxLength)
	}
	if from.StoreType == to.StoreType {
		return false
	}
	if from.StoreType.IsInteger() && to.StoreType.IsInteger() {
		return integerWidth[to.StoreType] < integerWidth[from.StoreType]
	}
	if from.StoreType == relational.TypeFloat32 && to.StoreType == relational.TypeFloat64 {
		return false
	}
	// anything widens to an unbounded string
	return !(to.StoreType == relational.TypeString && to.MaxLength == 0)
}

// HasBreaking reports whether any operation is breaking
func HasBreaking(ops []Operation) bool {
	for _, op := range ops {
		if op.Breaking {
			return true
		}
	}
	return false
}

// HasDataLoss reports whether any operation may lose data
func HasDataLoss(ops []Operation) bool {
	for _, op := range ops {
		if op.DataLoss {
			return true
		}
	}
	return false
}

// GenerateMigrationName creates a descriptive name for the migration
func GenerateMigrationName(ops []Operation) string {
	if len(ops) == 0 {
		return "no_changes"
	}

	var added, dropped, modified []string
	for _, op := range ops {
		switch op.Type {
		case OpCreateTable:
			added = append(added, op.Table)
		case OpDropTable:
			dropped = append(dropped, op.Table)
		case OpAddColumn:
			added = append(added, op.Table+"_"+op.Column.Name)
		case OpDropColumn:
			dropped = append(dropped, op.Table+"_"+op.OldColumn.Name)
		case OpAlterColumn:
			modified = append(modified, op.Table+"_"+op.Column.Name)
		}
	}

	var parts []string
	if len(added) > 0 {
		if len(added) <= 3 {
			parts = append(parts, "add_"+strings.Join(added, "_"))
		} else {
			parts = append(parts, fmt.Sprintf("add_%d_items", len(added)))
		}
	}
	if len(dropped) > 0 {
		if len(dropped) <= 3 {
			parts = append(parts, "drop_"+strings.Join(dropped, "_"))
		} else {
			parts = append(parts, fmt.Sprintf("drop_%d_items", len(dropped)))
		}
	}
	if len(modified) > 0 {
		if len(modified) <= 3 {
			parts = append(parts, "modify_"+strings.Join(modified, "_"))
		} else {
			parts = append(parts, fmt.Sprintf("modify_%d_columns", len(modified)))
		}
	}

	if len(parts) == 0 {
		return "schema_changes"
	}

	name := sanitizeName(strings.Join(parts, "_and_"))
	if len(name) > 200 {
		return fmt.Sprintf("schema_changes_%d", len(ops))
	}
	return name
}

// sanitizeName keeps a migration name safe to use in file names
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
