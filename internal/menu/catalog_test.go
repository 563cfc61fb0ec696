package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teapot/internal/models"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, []string{TabDrinks, TabSnacks}, c.Tabs())

	drinks, ok := c.Items(TabDrinks)
	require.True(t, ok)
	assert.Len(t, drinks, 6)

	snacks, ok := c.Items(TabSnacks)
	require.True(t, ok)
	assert.Len(t, snacks, 4)

	assert.Len(t, c.All(), 10)

	item, ok := c.Lookup("Bhajia")
	require.True(t, ok)
	assert.Equal(t, "$2.49", item.Price)

	_, ok = c.Lookup("Pizza")
	assert.False(t, ok)

	_, ok = c.Items("desserts")
	assert.False(t, ok)
}

func TestItems_ReturnsCopy(t *testing.T) {
	c := Default()

	drinks, _ := c.Items(TabDrinks)
	drinks[0].Price = "$0.01"

	again, _ := c.Items(TabDrinks)
	assert.Equal(t, "$5.99", again[0].Price)
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New([]string{"a", "b"}, map[string][]models.MenuItem{
		"a": {{Name: "Tea", Price: "$1.00"}},
		"b": {{Name: "Tea", Price: "$1.50"}},
	})
	assert.Error(t, err)
}

func TestNew_RejectsMissingTab(t *testing.T) {
	_, err := New([]string{"a"}, map[string][]models.MenuItem{})
	assert.Error(t, err)
}
