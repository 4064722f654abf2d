// Package relational maps a resolved model onto tables, columns and constraints.
// The resulting Schema is what DDL generation and migration diffing consume, and it is
// persisted between migrations as a YAML snapshot.
package relational

import (
	"errors"
	"fmt"
	"hash/fnv"
	"reflect"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// SnapshotVersion is the snapshot format written by MarshalSnapshot
const SnapshotVersion = 1

// ErrUnsupportedType is returned when a property has no store type
var ErrUnsupportedType = errors.New("unsupported property type")

// StoreType is the provider-independent type of a column
type StoreType string

const (
	TypeString  StoreType = "string"
	TypeInt16   StoreType = "int16"
	TypeInt32   StoreType = "int32"
	TypeInt64   StoreType = "int64"
	TypeFloat32 StoreType = "float32"
	TypeFloat64 StoreType = "float64"
	TypeBool    StoreType = "bool"
	TypeTime    StoreType = "time"
	TypeUUID    StoreType = "uuid"
	TypeBytes   StoreType = "bytes"
)

// IsInteger reports whether the store type is an integer type
func (t StoreType) IsInteger() bool {
	return t == TypeInt16 || t == TypeInt32 || t == TypeInt64
}

// Schema is the relational shape of a model
type Schema struct {
	Version int      `yaml:"version"`
	Tables  []*Table `yaml:"tables"`
}

// Table maps one entity type
type Table struct {
	Name              string                  `yaml:"name"`
	EntityType        string                  `yaml:"entity_type,omitempty"`
	Columns           []*Column               `yaml:"columns"`
	PrimaryKey        *KeyConstraint          `yaml:"primary_key,omitempty"`
	UniqueConstraints []*KeyConstraint        `yaml:"unique_constraints,omitempty"`
	ForeignKeys       []*ForeignKeyConstraint `yaml:"foreign_keys,omitempty"`
	Indexes           []*Index                `yaml:"indexes,omitempty"`
}

// Column maps one property
type Column struct {
	Name             string    `yaml:"name"`
	Property         string    `yaml:"property,omitempty"`
	StoreType        StoreType `yaml:"type"`
	Nullable         bool      `yaml:"nullable,omitempty"`
	MaxLength        int       `yaml:"max_length,omitempty"`
	Identity         bool      `yaml:"identity,omitempty"`
	ConcurrencyToken bool      `yaml:"concurrency_token,omitempty"`
	Computed         bool      `yaml:"computed,omitempty"`
}

// KeyConstraint is a primary key or unique constraint
type KeyConstraint struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
}

// ForeignKeyConstraint references the key of another table
type ForeignKeyConstraint struct {
	Name             string   `yaml:"name"`
	Columns          []string `yaml:"columns"`
	PrincipalTable   string   `yaml:"principal_table"`
	PrincipalColumns []string `yaml:"principal_columns"`
	OnDelete         string   `yaml:"on_delete"`
}

// Index is a table index
type Index struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique,omitempty"`
}

// FromModel maps every entity type of m to a table. Tables are ordered so principals come
// before their dependents; when the model has a cycle they are ordered by name.
func FromModel(m *metadata.Model) (*Schema, error) {
	order, err := metadata.NewRelationshipGraph(m).TopologicalSort()
	if err != nil {
		order = order[:0]
		for _, et := range m.EntityTypes() {
			order = append(order, et.Name())
		}
		sort.Strings(order)
	}

	s := &Schema{Version: SnapshotVersion}
	for _, name := range order {
		et := m.FindEntityType(name)
		if et == nil {
			continue
		}
		table, err := mapEntityType(et)
		if err != nil {
			return nil, err
		}
		s.Tables = append(s.Tables, table)
	}
	return s, nil
}

func mapEntityType(et *metadata.EntityType) (*Table, error) {
	table := &Table{
		Name:       metadata.TableName(et),
		EntityType: et.Name(),
	}

	props := et.Properties()
	sort.SliceStable(props, func(i, j int) bool {
		return keyOrdinal(props[i]) < keyOrdinal(props[j])
	})
	for _, p := range props {
		col, err := mapProperty(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", et.Name(), err)
		}
		table.Columns = append(table.Columns, col)
	}

	for _, key := range et.Keys() {
		cols := metadata.ColumnNames(key.Properties())
		if key.IsPrimaryKey() {
			table.PrimaryKey = &KeyConstraint{Name: limitIdentifier("pk_" + snake(table.Name)), Columns: cols}
			continue
		}
		table.UniqueConstraints = append(table.UniqueConstraints, &KeyConstraint{
			Name:    constraintName("ak", table.Name, cols),
			Columns: cols,
		})
	}

	for _, fk := range et.ForeignKeys() {
		principal := metadata.TableName(fk.PrincipalEntityType())
		cols := metadata.ColumnNames(fk.Properties())
		table.ForeignKeys = append(table.ForeignKeys, &ForeignKeyConstraint{
			Name:             constraintName("fk", table.Name, append([]string{principal}, cols...)),
			Columns:          cols,
			PrincipalTable:   principal,
			PrincipalColumns: metadata.ColumnNames(fk.PrincipalKey().Properties()),
			OnDelete:         fk.DeleteBehavior().SQL(),
		})
	}
	sort.Slice(table.ForeignKeys, func(i, j int) bool {
		return table.ForeignKeys[i].Name < table.ForeignKeys[j].Name
	})

	for _, idx := range et.Indexes() {
		cols := metadata.ColumnNames(idx.Properties())
		table.Indexes = append(table.Indexes, &Index{
			Name:    constraintName("ix", table.Name, cols),
			Columns: cols,
			Unique:  idx.IsUnique(),
		})
	}
	sort.Slice(table.Indexes, func(i, j int) bool {
		return table.Indexes[i].Name < table.Indexes[j].Name
	})

	return table, nil
}

// keyOrdinal puts primary key columns first, in key order
func keyOrdinal(p *metadata.Property) int {
	pk := p.DeclaringEntityType().FindPrimaryKey()
	if pk == nil {
		return 1 << 30
	}
	for i, kp := range pk.Properties() {
		if kp == p {
			return i
		}
	}
	return 1 << 30
}

func mapProperty(p *metadata.Property) (*Column, error) {
	storeType, err := StoreTypeOf(p.GoType())
	if err != nil {
		return nil, fmt.Errorf("property %s: %w", p.Name(), err)
	}
	col := &Column{
		Name:             metadata.ColumnName(p),
		Property:         p.Name(),
		StoreType:        storeType,
		Nullable:         p.IsNullable(),
		ConcurrencyToken: p.IsConcurrencyToken(),
	}
	if length, ok := p.MaxLength(); ok {
		col.MaxLength = length
	}
	switch p.StoreGeneratedPattern() {
	case metadata.StoreGeneratedIdentity:
		col.Identity = storeType.IsInteger()
	case metadata.StoreGeneratedComputed:
		col.Computed = true
	}
	return col, nil
}

var (
	timeType  = reflect.TypeOf(time.Time{})
	bytesType = reflect.TypeOf([]byte(nil))
)

// StoreTypeOf returns the store type for a Go property type
func StoreTypeOf(t reflect.Type) (StoreType, error) {
	if t == bytesType {
		return TypeBytes, nil
	}
	u := metadata.UnderlyingType(t)
	if u == nil {
		return "", ErrUnsupportedType
	}
	switch {
	case u == timeType:
		return TypeTime, nil
	case u == bytesType:
		return TypeBytes, nil
	case u.Kind() == reflect.Array && u.Elem().Kind() == reflect.Uint8 && u.Len() == 16:
		return TypeUUID, nil
	}
	switch u.Kind() {
	case reflect.String:
		return TypeString, nil
	case reflect.Bool:
		return TypeBool, nil
	case reflect.Int8, reflect.Int16, reflect.Uint8:
		return TypeInt16, nil
	case reflect.Int32, reflect.Uint16:
		return TypeInt32, nil
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return TypeInt64, nil
	case reflect.Float32:
		return TypeFloat32, nil
	case reflect.Float64:
		return TypeFloat64, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

func constraintName(prefix, table string, names []string) string {
	parts := []string{prefix, snake(table)}
	for _, c := range names {
		parts = append(parts, snake(c))
	}
	return limitIdentifier(strings.Join(parts, "_"))
}

// MaxIdentifierLength is the longest identifier PostgreSQL keeps without truncating
const MaxIdentifierLength = 63

// limitIdentifier shortens names over MaxIdentifierLength bytes, replacing the tail
// with a hash of the full name so distinct long names stay distinct.
func limitIdentifier(name string) string {
	if len(name) <= MaxIdentifierLength {
		return name
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	suffix := fmt.Sprintf("_%08x", h.Sum32())
	return strings.TrimRight(name[:MaxIdentifierLength-len(suffix)], "_") + suffix
}

func snake(s string) string {
	return metadata.ToSnakeCase(s)
}

// FindTable returns the table with the given name
func (s *Schema) FindTable(name string) *Table {
	for _, t := range s.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// FindColumn returns the column with the given name
func (t *Table) FindColumn(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FindForeignKey returns the foreign key constraint with the given name
func (t *Table) FindForeignKey(name string) *ForeignKeyConstraint {
	for _, fk := range t.ForeignKeys {
		if fk.Name == name {
			return fk
		}
	}
	return nil
}

// FindIndex returns the index with the given name
func (t *Table) FindIndex(name string) *Index {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}

// FindUniqueConstraint returns the unique constraint with the given name
func (t *Table) FindUniqueConstraint(name string) *KeyConstraint {
	for _, uc := range t.UniqueConstraints {
		if uc.Name == name {
			return uc
		}
	}
	return nil
}

// MarshalSnapshot encodes s as YAML
func MarshalSnapshot(s *Schema) ([]byte, error) {
	if s.Version == 0 {
		s.Version = SnapshotVersion
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes a YAML snapshot. Empty input yields an empty schema.
func UnmarshalSnapshot(data []byte) (*Schema, error) {
	s := &Schema{Version: SnapshotVersion}
	if len(strings.TrimSpace(string(data))) == 0 {
		return s, nil
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if s.Version > SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported version %d", s.Version, SnapshotVersion)
	}
	return s, nil
}
