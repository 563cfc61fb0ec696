package storage

import (
	"context"
	"sync"
)

// Keys used in the durable store
const (
	KeyOrderItems = "orderItems"
	KeyOrders     = "orders"
	KeyLoggedIn   = "isLoggedIn"
)

// KV is a durable string-valued key-value store. Writers do not coordinate:
// the last Set wins.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Prefixed scopes every key of an underlying store under "prefix:"
type Prefixed struct {
	kv     KV
	prefix string
}

// WithPrefix returns a view of kv whose keys live under prefix
func WithPrefix(kv KV, prefix string) *Prefixed {
	return &Prefixed{kv: kv, prefix: prefix + ":"}
}

func (p *Prefixed) Get(ctx context.Context, key string) (string, bool, error) {
	return p.kv.Get(ctx, p.prefix+key)
}

func (p *Prefixed) Set(ctx context.Context, key, value string) error {
	return p.kv.Set(ctx, p.prefix+key, value)
}

func (p *Prefixed) Delete(ctx context.Context, key string) error {
	return p.kv.Delete(ctx, p.prefix+key)
}

// Memory is an in-process store, used in tests and for throwaway sessions
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Close is a no-op kept so Memory can stand in for closable stores
func (m *Memory) Close() error {
	return nil
}
