package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
)

func TestCatalog(t *testing.T) {
	all := Catalog()
	require.Len(t, all, 17)

	names := make(map[string]bool)
	for _, d := range all {
		assert.False(t, names[d.Name], "duplicate stream %s", d.Name)
		names[d.Name] = true
		assert.NotEmpty(t, d.PrimaryKeys, d.Name)
		assert.NotEmpty(t, d.SchemaKey, d.Name)
		assert.Regexp(t, `^/.*/$`, d.Path, d.Name)
	}

	orders, ok := Lookup("orders_received")
	require.True(t, ok)
	assert.Equal(t, []string{"number"}, orders.PrimaryKeys)
	assert.Equal(t, "modified", orders.ReplicationKey)

	brands, ok := Lookup("brands")
	require.True(t, ok)
	assert.False(t, brands.Incremental())
}

func TestCatalogReturnsCopies(t *testing.T) {
	first := Catalog()
	first[0].PrimaryKeys[0] = "mutated"
	assert.Equal(t, "number", Catalog()[0].PrimaryKeys[0])
}

func TestSelect(t *testing.T) {
	all, err := Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, 17)

	some, err := Select([]string{"products", "orders_received"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "orders_received", some[0].Name, "catalog order is kept")
	assert.Equal(t, "products", some[1].Name)

	_, err = Select([]string{"widgets"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
