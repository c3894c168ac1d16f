package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTable(t *testing.T) {
	t.Run("ids follow lexical order", func(t *testing.T) {
		table, err := NewTable([]string{"vector_sub", "vector_add", "ge_add"})
		require.NoError(t, err)

		assert.Equal(t, 3, table.Len())
		id, ok := table.Lookup("ge_add")
		assert.True(t, ok)
		assert.Equal(t, OperationID(0), id)
		id, ok = table.Lookup("vector_sub")
		assert.True(t, ok)
		assert.Equal(t, OperationID(2), id)
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := NewTable([]string{"vector_add", "vector_add"})
		assert.EqualError(t, err, "duplicate operation name: vector_add")
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := NewTable([]string{"vector_add", ""})
		assert.Error(t, err)
	})
}

func TestTable_Lookup(t *testing.T) {
	table := Default()

	_, ok := table.Lookup("vector_does_not_exist")
	assert.False(t, ok)

	for i := 0; i < table.Len(); i++ {
		name := table.Name(OperationID(i))
		require.NotEmpty(t, name)
		id, ok := table.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, OperationID(i), id)
	}

	assert.Equal(t, "", table.Name(-1))
	assert.Equal(t, "", table.Name(OperationID(table.Len())))
}

func TestDefault_Families(t *testing.T) {
	table := Default()

	vector := table.WithPrefix("vector_")
	ge := table.WithPrefix("ge_")
	uplo := table.WithPrefix("uplo_")

	assert.Equal(t, table.Len(), len(vector)+len(ge)+len(uplo))
	assert.Len(t, ge, len(uplo))
	assert.Contains(t, vector, "vector_swap")
	assert.Contains(t, vector, "vector_powx")
	assert.Contains(t, ge, "ge_linear_frac")
	assert.Contains(t, uplo, "uplo_sincos")
}

func TestOperationID_String(t *testing.T) {
	id, ok := Default().Lookup("vector_add")
	require.True(t, ok)
	assert.Equal(t, "vector_add", id.String())
	assert.Equal(t, "OperationID(-3)", OperationID(-3).String())
}
