package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teapot/internal/events"
	"teapot/internal/logger"
	"teapot/internal/models"
	"teapot/internal/storage"
)

var (
	smoothie = models.MenuItem{Name: "Passion Fruit Smoothie", Price: "$5.99", Category: "Smoothies"}
	juice    = models.MenuItem{Name: "Orange Juice", Price: "$3.99", Category: "Juices"}
	samosas  = models.MenuItem{Name: "Samosas", Price: "$3.99", Category: "Snacks"}
)

func newManager(t *testing.T) (*Manager, *storage.Memory) {
	t.Helper()
	kv := storage.NewMemory()
	return NewManager(NewKVStore(kv), logger.Nop()), kv
}

func quantities(m *Manager) map[string]int {
	out := make(map[string]int)
	for _, l := range m.Lines() {
		out[l.Name] = l.Quantity
	}
	return out
}

func TestAddItem_SameItemTwiceIsOneLine(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	require.NoError(t, m.AddItem(ctx, smoothie))
	require.NoError(t, m.AddItem(ctx, smoothie))

	lines := m.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestAddItem_KeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	require.NoError(t, m.AddItem(ctx, juice))
	require.NoError(t, m.AddItem(ctx, samosas))
	require.NoError(t, m.AddItem(ctx, juice))

	lines := m.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "Orange Juice", lines[0].Name)
	assert.Equal(t, "Samosas", lines[1].Name)
}

func TestDecreaseQuantity_RemovesLineAtZero(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	require.NoError(t, m.AddItem(ctx, smoothie))
	require.NoError(t, m.AddItem(ctx, juice))
	require.NoError(t, m.DecreaseQuantity(ctx, smoothie.Name))

	assert.Equal(t, map[string]int{"Orange Juice": 1}, quantities(m))
	for _, l := range m.Lines() {
		assert.Positive(t, l.Quantity)
	}
}

func TestIncreaseAndDecrease(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	require.NoError(t, m.AddItem(ctx, samosas))
	require.NoError(t, m.IncreaseQuantity(ctx, samosas.Name))
	require.NoError(t, m.IncreaseQuantity(ctx, samosas.Name))
	require.NoError(t, m.DecreaseQuantity(ctx, samosas.Name))

	assert.Equal(t, map[string]int{"Samosas": 2}, quantities(m))
}

func TestUnknownNamesAreNoops(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	require.NoError(t, m.AddItem(ctx, juice))

	require.NoError(t, m.RemoveItem(ctx, "Pizza"))
	require.NoError(t, m.IncreaseQuantity(ctx, "Pizza"))
	require.NoError(t, m.DecreaseQuantity(ctx, "Pizza"))

	assert.Equal(t, map[string]int{"Orange Juice": 1}, quantities(m))
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	require.NoError(t, m.AddItem(ctx, juice))
	require.NoError(t, m.AddItem(ctx, juice))
	require.NoError(t, m.AddItem(ctx, samosas))
	require.NoError(t, m.RemoveItem(ctx, juice.Name))

	assert.Equal(t, map[string]int{"Samosas": 1}, quantities(m))
}

func TestTotal(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	assert.True(t, m.Total().IsZero())

	require.NoError(t, m.AddItem(ctx, smoothie))
	require.NoError(t, m.AddItem(ctx, smoothie))
	require.NoError(t, m.AddItem(ctx, juice))

	assert.Equal(t, "15.97", m.Total().StringFixed(2))
}

func TestTotal_MalformedPriceCountsAsZero(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	require.NoError(t, m.AddItem(ctx, models.MenuItem{Name: "Mystery", Price: "ask staff"}))
	require.NoError(t, m.AddItem(ctx, juice))

	assert.Equal(t, "3.99", m.Total().StringFixed(2))
}

func TestRestore_AfterRestart(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()

	before := NewManager(NewKVStore(kv), logger.Nop())
	require.NoError(t, before.AddItem(ctx, smoothie))
	require.NoError(t, before.AddItem(ctx, samosas))
	require.NoError(t, before.IncreaseQuantity(ctx, samosas.Name))
	require.NoError(t, before.AddItem(ctx, juice))

	after := NewManager(NewKVStore(kv), logger.Nop())
	require.NoError(t, after.Restore(ctx))

	assert.Equal(t, before.Lines(), after.Lines())
}

func TestClear_PersistsEmptyCart(t *testing.T) {
	ctx := context.Background()
	m, kv := newManager(t)

	require.NoError(t, m.AddItem(ctx, juice))
	require.NoError(t, m.Clear(ctx))

	assert.True(t, m.IsEmpty())
	raw, found, err := kv.Get(ctx, storage.KeyOrderItems)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "[]", raw)
}

func TestRemoveLines_SubtractsSubmittedQuantities(t *testing.T) {
	ctx := context.Background()
	m, kv := newManager(t)

	require.NoError(t, m.AddItem(ctx, samosas))
	require.NoError(t, m.AddItem(ctx, samosas))
	require.NoError(t, m.AddItem(ctx, juice))
	submitted := m.Lines()

	require.NoError(t, m.AddItem(ctx, samosas))
	require.NoError(t, m.AddItem(ctx, smoothie))
	require.NoError(t, m.RemoveLines(ctx, submitted))

	assert.Equal(t, map[string]int{"Samosas": 1, "Passion Fruit Smoothie": 1}, quantities(m))

	restored := NewManager(NewKVStore(kv), logger.Nop())
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, quantities(m), quantities(restored))
}

func TestRemoveLines_DroppedLinesAreIgnored(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	require.NoError(t, m.AddItem(ctx, juice))
	submitted := m.Lines()
	require.NoError(t, m.RemoveItem(ctx, juice.Name))
	require.NoError(t, m.AddItem(ctx, smoothie))

	require.NoError(t, m.RemoveLines(ctx, submitted))
	assert.Equal(t, map[string]int{"Passion Fruit Smoothie": 1}, quantities(m))
}

func TestKVStore_LoadDropsInvalidLines(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, storage.KeyOrderItems,
		`[{"name":"Samosas","price":"$3.99","quantity":2},{"name":"Ghost","quantity":0},{"name":"","quantity":3}]`))

	lines, err := NewKVStore(kv).Load(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Samosas", lines[0].Name)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestKVStore_LoadCorrupt(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, storage.KeyOrderItems, `{not json`))

	m := NewManager(NewKVStore(kv), logger.Nop())
	assert.Error(t, m.Restore(ctx))
}

type failingStore struct{ saves int }

func (f *failingStore) Load(context.Context) ([]models.CartLine, error) { return nil, nil }

func (f *failingStore) Save(context.Context, []models.CartLine) error {
	f.saves++
	return errors.New("disk full")
}

func TestAddItem_SaveFailureKeepsMemoryState(t *testing.T) {
	store := &failingStore{}
	m := NewManager(store, logger.Nop())

	err := m.AddItem(context.Background(), juice)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 1, m.Len())
}

func TestHandleMessage(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	bus := events.NewBus()
	bus.Subscribe(m.HandleMessage)

	require.NoError(t, bus.Publish(ctx, events.ItemAdded{Item: samosas}))
	require.NoError(t, bus.Publish(ctx, events.ItemAdded{Item: samosas}))
	require.NoError(t, bus.Publish(ctx, events.OrderPlaced{Order: models.Order{
		Items:        []models.CartLine{{MenuItem: juice, Quantity: 1}},
		DeliveryInfo: models.DeliveryInfo{Phone: "0712345678"},
	}}))

	assert.Equal(t, map[string]int{"Samosas": 2}, quantities(m))
}
