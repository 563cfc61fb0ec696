package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"teapot/internal/events"
	"teapot/internal/logger"
	"teapot/internal/models"
)

// Manager holds the current, unsubmitted order. Lines are unique by item
// name and kept in insertion order; no line is ever left at quantity 0.
// Every mutation writes the full cart to the store before returning.
type Manager struct {
	mu     sync.Mutex
	lines  []models.CartLine
	store  Store
	logger *logger.Logger
}

// NewManager creates an empty cart; call Restore to load saved state
func NewManager(store Store, log *logger.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: log,
	}
}

// Restore replaces the in-memory cart with the stored one
func (m *Manager) Restore(ctx context.Context) error {
	lines, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore cart: %w", err)
	}

	m.mu.Lock()
	m.lines = lines
	m.mu.Unlock()
	return nil
}

// AddItem increments the line for item, or appends a new line with quantity 1
func (m *Manager) AddItem(ctx context.Context, item models.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.indexOf(item.Name); i >= 0 {
		m.lines[i].Quantity++
	} else {
		m.lines = append(m.lines, models.CartLine{MenuItem: item, Quantity: 1})
	}
	return m.persist(ctx, "add_item")
}

// RemoveItem deletes the line for name; unknown names are a no-op
func (m *Manager) RemoveItem(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(name)
	if i < 0 {
		return nil
	}
	m.lines = append(m.lines[:i], m.lines[i+1:]...)
	return m.persist(ctx, "remove_item")
}

// IncreaseQuantity adds one to the line for name
func (m *Manager) IncreaseQuantity(ctx context.Context, name string) error {
	return m.adjust(ctx, name, 1, "increase_quantity")
}

// DecreaseQuantity subtracts one from the line for name; a line reaching 0 is removed
func (m *Manager) DecreaseQuantity(ctx context.Context, name string) error {
	return m.adjust(ctx, name, -1, "decrease_quantity")
}

func (m *Manager) adjust(ctx context.Context, name string, delta int, action string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(name)
	if i < 0 {
		return nil
	}

	q := m.lines[i].Quantity + delta
	if q < 0 {
		q = 0
	}
	m.lines[i].Quantity = q

	kept := m.lines[:0]
	for _, l := range m.lines {
		if l.Quantity > 0 {
			kept = append(kept, l)
		}
	}
	m.lines = kept

	return m.persist(ctx, action)
}

// Clear empties the cart
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lines = nil
	return m.persist(ctx, "clear")
}

// RemoveLines subtracts the quantities of submitted from the cart. Anything
// added after submitted was taken stays in the cart.
func (m *Manager) RemoveLines(ctx context.Context, submitted []models.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := false
	for _, s := range submitted {
		if i := m.indexOf(s.Name); i >= 0 {
			m.lines[i].Quantity -= s.Quantity
			changed = true
		}
	}
	if !changed {
		return nil
	}

	kept := m.lines[:0]
	for _, l := range m.lines {
		if l.Quantity > 0 {
			kept = append(kept, l)
		}
	}
	m.lines = kept

	return m.persist(ctx, "remove_lines")
}

// Lines returns a copy of the current lines
func (m *Manager) Lines() []models.CartLine {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.CartLine, len(m.lines))
	copy(out, m.lines)
	return out
}

// Len returns the number of lines
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lines)
}

// IsEmpty reports whether the cart has no lines
func (m *Manager) IsEmpty() bool {
	return m.Len() == 0
}

// Total is the item subtotal; malformed prices count as zero
func (m *Manager) Total() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.CalculateSubtotal(m.lines)
}

// HandleMessage applies ItemAdded messages from the session bus
func (m *Manager) HandleMessage(ctx context.Context, msg events.Message) {
	added, ok := msg.(events.ItemAdded)
	if !ok {
		return
	}
	if err := m.AddItem(ctx, added.Item); err != nil {
		// the line is still in memory; the next successful save catches up
		m.logger.Error("cart_persist_failed", "Failed to persist added item", "", err, map[string]interface{}{
			"item": added.Item.Name,
		})
	}
}

func (m *Manager) indexOf(name string) int {
	for i, l := range m.lines {
		if l.Name == name {
			return i
		}
	}
	return -1
}

// persist must be called with m.mu held
func (m *Manager) persist(ctx context.Context, action string) error {
	snapshot := make([]models.CartLine, len(m.lines))
	copy(snapshot, m.lines)

	if err := m.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to save cart after %s: %w", action, err)
	}

	m.logger.Debug("cart_saved", "Cart saved", "", map[string]interface{}{
		"action": action,
		"lines":  len(snapshot),
	})
	return nil
}
