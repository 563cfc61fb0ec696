package order

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"teapot/internal/models"
	"teapot/internal/storage"
)

// LocalAPI keeps orders in the durable store instead of a remote service.
// Orders are stored newest first under the orders key and removed by id.
type LocalAPI struct {
	mu sync.Mutex
	kv storage.KV
}

// NewLocalAPI creates a store-backed order API
func NewLocalAPI(kv storage.KV) *LocalAPI {
	return &LocalAPI{kv: kv}
}

// Place numbers the order after the ones already stored and prepends it
func (a *LocalAPI) Place(ctx context.Context, o models.Order) ([]models.Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	existing, err := a.load(ctx)
	if err != nil {
		return nil, err
	}

	o.OrderNumber = len(existing) + 1
	updated := append([]models.Order{o}, existing...)
	if err := a.save(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// List returns the stored orders, newest first
func (a *LocalAPI) List(ctx context.Context) ([]models.Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.load(ctx)
}

// Remove deletes the order with the same id
func (a *LocalAPI) Remove(ctx context.Context, o models.Order) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	existing, err := a.load(ctx)
	if err != nil {
		return err
	}

	kept := make([]models.Order, 0, len(existing))
	for _, e := range existing {
		if e.ID != o.ID {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(existing) {
		return fmt.Errorf("remove order %s: %w", o.ID, ErrNotFound)
	}
	return a.save(ctx, kept)
}

func (a *LocalAPI) load(ctx context.Context) ([]models.Order, error) {
	raw, found, err := a.kv.Get(ctx, storage.KeyOrders)
	if err != nil {
		return nil, err
	}
	if !found || raw == "" {
		return []models.Order{}, nil
	}

	var orders []models.Order
	if err := json.Unmarshal([]byte(raw), &orders); err != nil {
		return nil, fmt.Errorf("failed to unmarshal orders: %w", err)
	}
	return orders, nil
}

func (a *LocalAPI) save(ctx context.Context, orders []models.Order) error {
	body, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("failed to marshal orders: %w", err)
	}
	return a.kv.Set(ctx, storage.KeyOrders, string(body))
}
