package storefront

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teapot/internal/logger"
	"teapot/internal/models"
	"teapot/internal/services/order"
	"teapot/internal/storage"
)

var samosas = models.MenuItem{Name: "Samosas", Price: "$3.99", Category: "Snacks"}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newRegistry(kv storage.KV) (*Sessions, *clock) {
	c := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	r := NewSessions(kv, order.NewLocalAPI(storage.NewMemory()), decimal.RequireFromString("2.99"), logger.Nop())
	r.now = c.Now
	return r, c
}

// slowKV blocks reads of keys under prefix until release is closed
type slowKV struct {
	*storage.Memory
	prefix  string
	entered chan struct{}
	release chan struct{}
}

func (s *slowKV) Get(ctx context.Context, key string) (string, bool, error) {
	if strings.HasPrefix(key, s.prefix) {
		s.entered <- struct{}{}
		<-s.release
	}
	return s.Memory.Get(ctx, key)
}

func TestSessions_SweepEvictsIdleAndRestoresCart(t *testing.T) {
	ctx := context.Background()
	r, c := newRegistry(storage.NewMemory())
	defer r.Close()

	first, err := r.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, first.Cart.AddItem(ctx, samosas))

	c.Advance(DefaultIdleTimeout / 2)
	_, err = r.Get(ctx, "b")
	require.NoError(t, err)

	c.Advance(DefaultIdleTimeout/2 + time.Second)
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())

	again, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.NotSame(t, first, again)
	require.Len(t, again.Cart.Lines(), 1)
	assert.Equal(t, "Samosas", again.Cart.Lines()[0].Name)
}

func TestSessions_CapEvictsLeastRecentlySeen(t *testing.T) {
	ctx := context.Background()
	r, c := newRegistry(storage.NewMemory())
	defer r.Close()
	r.SetLimits(time.Hour, 2)

	a, err := r.Get(ctx, "a")
	require.NoError(t, err)
	c.Advance(time.Second)
	_, err = r.Get(ctx, "b")
	require.NoError(t, err)
	c.Advance(time.Second)
	_, err = r.Get(ctx, "a")
	require.NoError(t, err)
	c.Advance(time.Second)
	_, err = r.Get(ctx, "c")
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())
	stillA, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, a, stillA)
	assert.Equal(t, 2, r.Len())
}

func TestSessions_SlowRestoreDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	kv := &slowKV{
		Memory:  storage.NewMemory(),
		prefix:  "session:slow:",
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	r, _ := newRegistry(kv)
	defer r.Close()

	results := make(chan *Session, 2)
	for i := 0; i < 2; i++ {
		go func() {
			s, err := r.Get(ctx, "slow")
			assert.NoError(t, err)
			results <- s
		}()
	}
	<-kv.entered
	<-kv.entered

	fast, err := r.Get(ctx, "fast")
	require.NoError(t, err)
	assert.Equal(t, "fast", fast.ID)

	close(kv.release)
	s1, s2 := <-results, <-results
	require.NotNil(t, s1)
	assert.Same(t, s1, s2)
	assert.Equal(t, 2, r.Len())
}

func TestGetCartWithoutCookieCreatesNoSession(t *testing.T) {
	s := newTestServer(t, storage.NewMemory(), order.NewLocalAPI(storage.NewMemory()))
	client := &http.Client{}

	for i := 0; i < 50; i++ {
		resp, err := client.Get(s.URL + "/api/cart")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Cookies())
	}
	assert.Equal(t, 0, s.sessions.Len())

	_, cart := s.do(t, http.MethodGet, "/api/cart", nil)
	assert.Empty(t, cartItems(t, cart))
	assert.Equal(t, 2.99, cart["deliveryFee"])
	assert.Equal(t, 2.99, cart["total"])
	assert.Equal(t, 0, s.sessions.Len())

	s.do(t, http.MethodPost, "/api/cart/items", map[string]string{"name": "Samosas"})
	assert.Equal(t, 1, s.sessions.Len())
}

func TestSessions_RunStopsWithContext(t *testing.T) {
	r, _ := newRegistry(storage.NewMemory())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, time.Millisecond) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
