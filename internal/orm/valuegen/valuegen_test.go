package valuegen

import (
	"database/sql"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

type row struct {
	ID       int32
	Ref      *int64
	Nullable sql.NullInt64
	Token    uuid.UUID
	TokenPtr *uuid.UUID
	Name     string
}

func property(t *testing.T, name string) *metadata.Property {
	t.Helper()
	m := metadata.NewModel()
	et, err := m.AddEntityType("Row", reflect.TypeOf(row{}), metadata.Explicit)
	require.NoError(t, err)
	ft, ok := et.FieldType(name)
	require.True(t, ok)
	p, err := et.AddProperty(name, ft, false, metadata.Explicit)
	require.NoError(t, err)
	return p
}

func TestSelector(t *testing.T) {
	s := NewSelector()

	tests := []struct {
		field string
		check func(t *testing.T, v interface{})
	}{
		{"ID", func(t *testing.T, v interface{}) {
			assert.Equal(t, int32(-1), v)
		}},
		{"Ref", func(t *testing.T, v interface{}) {
			ref, ok := v.(*int64)
			require.True(t, ok)
			assert.Equal(t, int64(-2), *ref)
		}},
		{"Nullable", func(t *testing.T, v interface{}) {
			assert.Equal(t, sql.NullInt64{Int64: -3, Valid: true}, v)
		}},
		{"Token", func(t *testing.T, v interface{}) {
			id, ok := v.(uuid.UUID)
			require.True(t, ok)
			assert.Equal(t, uuid.Version(7), id.Version())
		}},
		{"TokenPtr", func(t *testing.T, v interface{}) {
			id, ok := v.(*uuid.UUID)
			require.True(t, ok)
			assert.NotEqual(t, uuid.Nil, *id)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			p := property(t, tt.field)
			g, err := s.Select(p)
			require.NoError(t, err)
			v, err := g.Next(p)
			require.NoError(t, err)
			tt.check(t, v)
		})
	}
}

func TestSelectorRejectsUnsupportedTypes(t *testing.T) {
	_, err := NewSelector().Select(property(t, "Name"))
	assert.ErrorIs(t, err, ErrNoGenerator)
}

type constant string

func (c constant) Next(*metadata.Property) (interface{}, error) { return string(c), nil }

func TestRegister(t *testing.T) {
	s := NewSelector()
	s.Register(reflect.TypeOf(""), constant("fixed"))

	p := property(t, "Name")
	g, err := s.Select(p)
	require.NoError(t, err)
	v, err := g.Next(p)
	require.NoError(t, err)
	assert.Equal(t, "fixed", v)
}

func TestIsTemporary(t *testing.T) {
	n := int64(-4)
	assert.True(t, IsTemporary(int32(-1)))
	assert.True(t, IsTemporary(&n))
	assert.False(t, IsTemporary(int64(7)))
	assert.False(t, IsTemporary("x"))
	assert.False(t, IsTemporary((*int64)(nil)))
}
