package relational

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
	"github.com/conduit-lang/entityframe/pkg/model"
)

type Customer struct {
	ID     int64
	Code   string
	Name   string
	Orders []*Order
}

type Order struct {
	Number     int64
	ID         int64
	CustomerID int64
	Customer   *Customer
	Placed     time.Time
	Note       *string
	Token      uuid.UUID
}

func buildSchema(t *testing.T) *Schema {
	t.Helper()
	mb := model.NewModelBuilder()
	model.EntityWith[Customer](mb, func(e *model.EntityTypeBuilder) {
		e.Table("Customers")
		e.Property("Name").MaxLength(40)
		e.AlternateKey("Code")
	})
	model.EntityWith[Order](mb, func(e *model.EntityTypeBuilder) {
		e.Property("Number").Column("order_no")
		e.Index("Placed")
	})

	m, err := mb.Build()
	require.NoError(t, err)

	s, err := FromModel(m)
	require.NoError(t, err)
	return s
}

func TestFromModel(t *testing.T) {
	s := buildSchema(t)
	require.Len(t, s.Tables, 2)
	assert.Equal(t, SnapshotVersion, s.Version)

	t.Run("principals first", func(t *testing.T) {
		assert.Equal(t, "Customers", s.Tables[0].Name)
		assert.Equal(t, "order", s.Tables[1].Name)
		assert.Equal(t, "Order", s.Tables[1].EntityType)
	})

	t.Run("columns", func(t *testing.T) {
		orders := s.FindTable("order")
		require.NotNil(t, orders)

		var names []string
		for _, c := range orders.Columns {
			names = append(names, c.Name)
		}
		assert.Equal(t, []string{"id", "order_no", "customer_id", "placed", "note", "token"}, names)

		id := orders.FindColumn("id")
		assert.Equal(t, TypeInt64, id.StoreType)
		assert.True(t, id.Identity)
		assert.False(t, id.Nullable)

		assert.Equal(t, TypeTime, orders.FindColumn("placed").StoreType)
		assert.Equal(t, TypeUUID, orders.FindColumn("token").StoreType)
		assert.False(t, orders.FindColumn("token").Identity)

		note := orders.FindColumn("note")
		assert.Equal(t, TypeString, note.StoreType)
		assert.True(t, note.Nullable)

		assert.Equal(t, 40, s.FindTable("Customers").FindColumn("name").MaxLength)
		assert.Nil(t, orders.FindColumn("customer"))
	})

	t.Run("constraints", func(t *testing.T) {
		customers := s.FindTable("Customers")
		require.NotNil(t, customers.PrimaryKey)
		assert.Equal(t, "pk_customers", customers.PrimaryKey.Name)
		assert.Equal(t, []string{"id"}, customers.PrimaryKey.Columns)

		require.Len(t, customers.UniqueConstraints, 1)
		assert.Equal(t, "ak_customers_code", customers.UniqueConstraints[0].Name)

		orders := s.FindTable("order")
		require.Len(t, orders.ForeignKeys, 1)
		fk := orders.ForeignKeys[0]
		assert.Equal(t, "fk_order_customers_customer_id", fk.Name)
		assert.Equal(t, []string{"customer_id"}, fk.Columns)
		assert.Equal(t, "Customers", fk.PrincipalTable)
		assert.Equal(t, []string{"id"}, fk.PrincipalColumns)
		assert.Equal(t, "CASCADE", fk.OnDelete)
		assert.Same(t, fk, orders.FindForeignKey(fk.Name))

		require.NotNil(t, orders.FindIndex("ix_order_customer_id"))
		placed := orders.FindIndex("ix_order_placed")
		require.NotNil(t, placed)
		assert.False(t, placed.Unique)
	})
}

func TestFromModelWithCycle(t *testing.T) {
	m := metadata.NewModel()
	b, err := m.AddEntityType("B", nil, metadata.Explicit)
	require.NoError(t, err)
	a, err := m.AddEntityType("A", nil, metadata.Explicit)
	require.NoError(t, err)

	int64Type := reflect.TypeOf(int64(0))
	for _, et := range []*metadata.EntityType{a, b} {
		id, err := et.AddProperty("ID", int64Type, true, metadata.Explicit)
		require.NoError(t, err)
		_, _, err = et.SetPrimaryKey([]*metadata.Property{id}, metadata.Explicit)
		require.NoError(t, err)
		_, err = et.AddProperty("OtherID", int64Type, true, metadata.Explicit)
		require.NoError(t, err)
	}
	_, err = a.AddForeignKey([]*metadata.Property{a.FindProperty("OtherID")}, b.FindPrimaryKey(), metadata.Explicit)
	require.NoError(t, err)
	_, err = b.AddForeignKey([]*metadata.Property{b.FindProperty("OtherID")}, a.FindPrimaryKey(), metadata.Explicit)
	require.NoError(t, err)

	s, err := FromModel(m)
	require.NoError(t, err)
	require.Len(t, s.Tables, 2)
	assert.Equal(t, "a", s.Tables[0].Name)
	assert.Equal(t, "b", s.Tables[1].Name)
}

func TestStoreTypeOf(t *testing.T) {
	tests := []struct {
		value    interface{}
		expected StoreType
	}{
		{"", TypeString},
		{int8(0), TypeInt16},
		{int16(0), TypeInt16},
		{int32(0), TypeInt32},
		{0, TypeInt64},
		{uint64(0), TypeInt64},
		{float32(0), TypeFloat32},
		{0.0, TypeFloat64},
		{false, TypeBool},
		{time.Time{}, TypeTime},
		{uuid.UUID{}, TypeUUID},
		{[]byte{}, TypeBytes},
		{new(int32), TypeInt32},
	}

	for _, tt := range tests {
		typ := reflect.TypeOf(tt.value)
		t.Run(typ.String(), func(t *testing.T) {
			got, err := StoreTypeOf(typ)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := StoreTypeOf(reflect.TypeOf(map[string]int{}))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestSnapshot(t *testing.T) {
	s := buildSchema(t)

	data, err := MarshalSnapshot(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: Customers")
	assert.Contains(t, string(data), "on_delete: CASCADE")

	loaded, err := UnmarshalSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)

	t.Run("empty", func(t *testing.T) {
		empty, err := UnmarshalSnapshot(nil)
		require.NoError(t, err)
		assert.Empty(t, empty.Tables)
	})

	t.Run("newer version", func(t *testing.T) {
		_, err := UnmarshalSnapshot([]byte("version: 99\n"))
		assert.Error(t, err)
	})
}

func TestLongIdentifiers(t *testing.T) {
	m := metadata.NewModel()
	et, err := m.AddEntityType("WarehouseInventoryReconciliationAdjustmentRecord", nil, metadata.Explicit)
	require.NoError(t, err)

	int64Type := reflect.TypeOf(int64(0))
	id, err := et.AddProperty("ID", int64Type, true, metadata.Explicit)
	require.NoError(t, err)
	_, _, err = et.SetPrimaryKey([]*metadata.Property{id}, metadata.Explicit)
	require.NoError(t, err)

	first, err := et.AddProperty("ReconciledAgainstExternalLedgerReferenceA", int64Type, true, metadata.Explicit)
	require.NoError(t, err)
	second, err := et.AddProperty("ReconciledAgainstExternalLedgerReferenceB", int64Type, true, metadata.Explicit)
	require.NoError(t, err)
	_, err = et.AddIndex([]*metadata.Property{first}, metadata.Explicit)
	require.NoError(t, err)
	_, err = et.AddIndex([]*metadata.Property{second}, metadata.Explicit)
	require.NoError(t, err)

	s, err := FromModel(m)
	require.NoError(t, err)
	require.Len(t, s.Tables, 1)
	table := s.Tables[0]

	t.Run("names fit the identifier limit", func(t *testing.T) {
		require.NotNil(t, table.PrimaryKey)
		assert.LessOrEqual(t, len(table.PrimaryKey.Name), MaxIdentifierLength)
		require.Len(t, table.Indexes, 2)
		for _, idx := range table.Indexes {
			assert.LessOrEqual(t, len(idx.Name), MaxIdentifierLength)
			assert.Regexp(t, `^ix_warehouse_inventory_.*_[0-9a-f]{8}$`, idx.Name)
		}
	})

	t.Run("truncated names stay distinct", func(t *testing.T) {
		assert.NotEqual(t, table.Indexes[0].Name, table.Indexes[1].Name)
	})

	t.Run("truncation is deterministic", func(t *testing.T) {
		again, err := FromModel(m)
		require.NoError(t, err)
		assert.Equal(t, table.Indexes[0].Name, again.Tables[0].Indexes[0].Name)
		assert.Equal(t, table.PrimaryKey.Name, again.Tables[0].PrimaryKey.Name)
	})

	t.Run("short names are untouched", func(t *testing.T) {
		assert.Equal(t, "ix_order_placed", limitIdentifier("ix_order_placed"))
	})
}
