package metadata

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("valid model", func(t *testing.T) {
		m := chain(t, "Order", "Customer")
		assert.NoError(t, Validate(m))
	})

	t.Run("missing primary key", func(t *testing.T) {
		m := NewModel()
		_, err := m.AddEntityType("Orphan", nil, Explicit)
		require.NoError(t, err)

		err = Validate(m)
		require.Error(t, err)

		var verrs *ValidationErrors
		require.True(t, errors.As(err, &verrs))
		require.Len(t, verrs.Errors, 1)
		assert.Equal(t, "Orphan", verrs.Errors[0].EntityType)
		assert.Contains(t, err.Error(), "no primary key")

		var verr *ValidationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("foreign key type mismatch", func(t *testing.T) {
		m := chain(t, "Customer")
		o, err := m.AddEntityType("Order", nil, Explicit)
		require.NoError(t, err)
		id, _ := o.AddProperty("ID", reflect.TypeOf(int64(0)), true, Explicit)
		_, _, err = o.SetPrimaryKey([]*Property{id}, Explicit)
		require.NoError(t, err)
		cid, _ := o.AddProperty("CustomerID", reflect.TypeOf(""), true, Explicit)
		_, err = o.AddForeignKey([]*Property{cid}, m.FindEntityType("Customer").FindPrimaryKey(), Explicit)
		require.NoError(t, err)

		err = Validate(m)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match principal key")
	})

	t.Run("ignored members still mapped", func(t *testing.T) {
		m := chain(t, "Customer")
		et := m.FindEntityType("Customer")
		et.Ignore("ID", Explicit)

		err := Validate(m)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ignored member is still mapped")
	})

	t.Run("required cycles are warnings", func(t *testing.T) {
		m := chain(t, "A", "B")
		link(t, m, "B", "A", m.FindEntityType("A").FindPrimaryKey())

		v := NewModelValidator()
		require.NoError(t, v.Validate(m))
		require.Len(t, v.Warnings(), 1)
		assert.Contains(t, v.Warnings()[0], "cycle")
	})
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{EntityType: "Order", Member: "CustomerID", Message: "bad", Hint: "fix it"}
	assert.Equal(t, "Order.CustomerID: bad\n  hint: fix it", err.Error())
}
