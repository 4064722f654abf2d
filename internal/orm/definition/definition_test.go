package definition

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
	"github.com/conduit-lang/entityframe/pkg/model"
)

const shopYAML = `
entities:
  - name: Customer
    table: customers
    key: [ID]
    alternate_keys:
      - [Code]
    properties:
      - name: ID
        type: int64
        generate: identity
      - name: Code
        type: string
        max_length: 5
      - name: Name
        type: string
        max_length: 40
      - name: Phone
        type: string?
      - name: Version
        type: int32
        concurrency_token: true
  - name: Order
    table: orders
    key: [ID]
    properties:
      - name: ID
        type: int64
      - name: CustomerID
        type: int64
      - name: Placed
        type: time
        column: placed_at
      - name: Total
        type: float64?
    indexes:
      - properties: [Placed]
  - name: Profile
    key: [CustomerID]
    properties:
      - name: CustomerID
        type: int64
        generate: never
      - name: Bio
        type: string?
relationships:
  - principal: Customer
    dependent: Order
    navigation: Customer
    inverse: Orders
    foreign_key: [CustomerID]
    required: true
    on_delete: restrict
  - principal: Customer
    dependent: Profile
    kind: one-to-one
    navigation: Customer
    inverse: Profile
    foreign_key: [CustomerID]
`

func TestParseType(t *testing.T) {
	tests := []struct {
		name     string
		want     reflect.Type
		nullable bool
	}{
		{"string", reflect.TypeOf(""), false},
		{"string?", reflect.TypeOf((*string)(nil)), true},
		{"int", reflect.TypeOf(0), false},
		{"int32", reflect.TypeOf(int32(0)), false},
		{"int64?", reflect.TypeOf((*int64)(nil)), true},
		{"float64", reflect.TypeOf(float64(0)), false},
		{"bool", reflect.TypeOf(false), false},
		{"time", reflect.TypeOf(time.Time{}), false},
		{"uuid?", reflect.TypeOf((*[16]byte)(nil)).Elem(), true},
		{"bytes?", reflect.TypeOf([]byte(nil)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, nullable, err := ParseType(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.nullable, nullable)
			if tt.name == "uuid?" {
				assert.Equal(t, reflect.Ptr, got.Kind())
				assert.Equal(t, "UUID", got.Elem().Name())
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}

	_, _, err := ParseType("decimal")
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestParseDeleteBehavior(t *testing.T) {
	for name, want := range map[string]metadata.DeleteBehavior{
		"cascade":  metadata.Cascade,
		"SET NULL": metadata.SetNull,
		"set-null": metadata.SetNull,
		"restrict": metadata.Restrict,
	} {
		got, err := ParseDeleteBehavior(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseDeleteBehavior("explode")
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		err  string
	}{
		{"empty", "", "empty document"},
		{"unknown field", "entities:\n  - name: A\n    colour: red\n", "colour"},
		{"unknown type", "entities:\n  - name: A\n    properties:\n      - name: X\n        type: decimal\n", `unknown type "decimal"`},
		{"duplicate entity", "entities:\n  - name: A\n  - name: A\n", "duplicate entity A"},
		{"duplicate property", "entities:\n  - name: A\n    properties:\n      - {name: X, type: int}\n      - {name: X, type: int}\n", "duplicate property A.X"},
		{"bad generate", "entities:\n  - name: A\n    properties:\n      - {name: X, type: int, generate: sometimes}\n", "unknown generate"},
		{"undefined entity", "entities:\n  - name: A\nrelationships:\n  - {principal: A, dependent: B}\n", "undefined entity"},
		{"bad kind", "entities:\n  - name: A\nrelationships:\n  - {principal: A, dependent: A, kind: many-to-many}\n", "unknown kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestBuild(t *testing.T) {
	def, err := Parse(strings.NewReader(shopYAML))
	require.NoError(t, err)
	require.Len(t, def.Entities, 3)
	require.Len(t, def.Relationships, 2)

	m, err := Build(def)
	require.NoError(t, err)

	customer := m.FindEntityType("Customer")
	require.NotNil(t, customer)
	assert.Equal(t, "customers", metadata.TableName(customer))

	t.Run("properties", func(t *testing.T) {
		id := customer.FindProperty("ID")
		require.NotNil(t, id)
		assert.True(t, id.IsShadow())
		assert.True(t, id.IsPrimaryKey())
		assert.True(t, id.GenerateValueOnAdd())
		assert.Equal(t, metadata.StoreGeneratedIdentity, id.StoreGeneratedPattern())

		name := customer.FindProperty("Name")
		assert.False(t, name.IsNullable())
		length, ok := name.MaxLength()
		assert.True(t, ok)
		assert.Equal(t, 40, length)

		assert.True(t, customer.FindProperty("Phone").IsNullable())
		assert.True(t, customer.FindProperty("Version").IsConcurrencyToken())
		assert.Len(t, customer.Keys(), 2)
	})

	t.Run("one-to-many", func(t *testing.T) {
		order := m.FindEntityType("Order")
		require.NotNil(t, order)
		assert.Equal(t, "placed_at", metadata.ColumnName(order.FindProperty("Placed")))
		assert.True(t, order.FindProperty("Total").IsNullable())

		require.Len(t, order.ForeignKeys(), 1)
		fk := order.ForeignKeys()[0]
		assert.Equal(t, customer, fk.PrincipalEntityType())
		assert.Equal(t, []*metadata.Property{order.FindProperty("CustomerID")}, fk.Properties())
		assert.True(t, fk.IsRequired())
		assert.False(t, fk.IsUnique())
		assert.Equal(t, metadata.Restrict, fk.DeleteBehavior())
		require.NotNil(t, fk.DependentToPrincipal())
		assert.Equal(t, "Customer", fk.DependentToPrincipal().Name())
		require.NotNil(t, fk.PrincipalToDependent())
		assert.Equal(t, "Orders", fk.PrincipalToDependent().Name())
	})

	t.Run("one-to-one", func(t *testing.T) {
		profile := m.FindEntityType("Profile")
		require.NotNil(t, profile)
		require.Len(t, profile.ForeignKeys(), 1)
		fk := profile.ForeignKeys()[0]
		assert.True(t, fk.IsUnique())
		assert.Equal(t, customer, fk.PrincipalEntityType())
		assert.Equal(t, "CustomerID", fk.Properties()[0].Name())
		assert.False(t, fk.Properties()[0].GenerateValueOnAdd())
	})
}

func TestApply_RecordsBuilderErrors(t *testing.T) {
	def := &Definition{
		Entities: []*Entity{
			{Name: "Customer", Properties: []*Property{{Name: "ID", Type: "int64"}}, Key: []string{"Missing"}},
		},
	}

	mb := model.NewModelBuilder()
	err := Apply(def, mb)
	require.Error(t, err)
	assert.Equal(t, mb.Err(), err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yml")
	require.NoError(t, os.WriteFile(path, []byte(shopYAML), 0o644))

	def, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Customer", def.Entities[0].Name)
	assert.Equal(t, []string{"Code"}, def.Entities[0].AlternateKeys[0])

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorContains(t, err, "failed to read model file")
}
