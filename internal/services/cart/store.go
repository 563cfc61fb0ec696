package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"teapot/internal/models"
	"teapot/internal/storage"
)

// Store persists the whole cart
type Store interface {
	Load(ctx context.Context) ([]models.CartLine, error)
	Save(ctx context.Context, lines []models.CartLine) error
}

// KVStore keeps the cart as a JSON array under the orderItems key
type KVStore struct {
	kv storage.KV
}

// NewKVStore creates a cart store on top of a key-value store
func NewKVStore(kv storage.KV) *KVStore {
	return &KVStore{kv: kv}
}

// Load returns the saved lines, or nil when nothing was saved yet.
// Lines without a name or with a quantity below 1 are dropped.
func (s *KVStore) Load(ctx context.Context) ([]models.CartLine, error) {
	raw, found, err := s.kv.Get(ctx, storage.KeyOrderItems)
	if err != nil {
		return nil, err
	}
	if !found || raw == "" {
		return nil, nil
	}

	var lines []models.CartLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart items: %w", err)
	}

	valid := lines[:0]
	for _, l := range lines {
		if l.Name != "" && l.Quantity >= 1 {
			valid = append(valid, l)
		}
	}
	return valid, nil
}

// Save overwrites the stored cart
func (s *KVStore) Save(ctx context.Context, lines []models.CartLine) error {
	if lines == nil {
		lines = []models.CartLine{}
	}
	body, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("failed to marshal cart items: %w", err)
	}
	return s.kv.Set(ctx, storage.KeyOrderItems, string(body))
}
