package storefront

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"teapot/internal/events"
	"teapot/internal/logger"
	"teapot/internal/services/cart"
	"teapot/internal/services/delivery"
	"teapot/internal/services/order"
	"teapot/internal/storage"
)

// Session is one customer's page session: its own event bus, cart,
// delivery form and submitter. Sessions are wired by Sessions.Get.
type Session struct {
	ID        string
	Bus       *events.Bus
	Cart      *cart.Manager
	Submitter *order.Submitter

	mu   sync.Mutex
	form delivery.Form

	// guarded by the registry lock
	lastSeen time.Time

	unsubscribe []func()
}

// WithForm runs fn with exclusive access to the delivery form
func (s *Session) WithForm(fn func(f *delivery.Form) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.form)
}

// Close detaches the session from its bus
func (s *Session) Close() {
	for _, u := range s.unsubscribe {
		u()
	}
}

// Default session limits
const (
	DefaultIdleTimeout = 30 * time.Minute
	DefaultMaxSessions = 10000
)

// Sessions creates and caches sessions. Each session's cart is stored in the
// shared store under its own key prefix, so an evicted session comes back
// with its cart on the next Get.
type Sessions struct {
	kv          storage.KV
	api         order.API
	deliveryFee decimal.Decimal
	subscribers []events.Handler
	logger      *logger.Logger

	idleTimeout time.Duration
	maxSessions int
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessions creates a session registry. subscribers are attached to every
// new session's bus after its cart, e.g. the staff feed and the broker bridge.
func NewSessions(kv storage.KV, api order.API, deliveryFee decimal.Decimal, log *logger.Logger, subscribers ...events.Handler) *Sessions {
	return &Sessions{
		kv:          kv,
		api:         api,
		deliveryFee: deliveryFee,
		subscribers: subscribers,
		logger:      log,
		idleTimeout: DefaultIdleTimeout,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
}

// SetLimits overrides the idle timeout and the cap on cached sessions.
// Non-positive values keep the current setting.
func (r *Sessions) SetLimits(idleTimeout time.Duration, maxSessions int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idleTimeout > 0 {
		r.idleTimeout = idleTimeout
	}
	if maxSessions > 0 {
		r.maxSessions = maxSessions
	}
}

// DeliveryFee returns the fee every session's submitter charges
func (r *Sessions) DeliveryFee() decimal.Decimal {
	return r.deliveryFee
}

// Get returns the session for id, restoring its cart from the store on first use
func (r *Sessions) Get(ctx context.Context, id string) (*Session, error) {
	r.mu.Lock()
	if s, ok := r.sessions[id]; ok {
		s.lastSeen = r.now()
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	s, err := r.build(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[id]; ok {
		s.Close()
		existing.lastSeen = r.now()
		return existing, nil
	}

	s.lastSeen = r.now()
	r.evictLocked(s.lastSeen, r.maxSessions-1)
	r.sessions[id] = s

	r.logger.Debug("session_created", "Session created", "", map[string]interface{}{
		"session_id": id,
		"cart_lines": s.Cart.Len(),
	})
	return s, nil
}

func (r *Sessions) build(ctx context.Context, id string) (*Session, error) {
	cartManager := cart.NewManager(cart.NewKVStore(storage.WithPrefix(r.kv, "session:"+id)), r.logger)
	if err := cartManager.Restore(ctx); err != nil {
		return nil, fmt.Errorf("failed to restore session %s: %w", id, err)
	}

	bus := events.NewBus()
	s := &Session{
		ID:        id,
		Bus:       bus,
		Cart:      cartManager,
		Submitter: order.NewSubmitter(r.api, cartManager, bus, r.deliveryFee, r.logger),
	}

	s.unsubscribe = append(s.unsubscribe, bus.Subscribe(cartManager.HandleMessage))
	for _, h := range r.subscribers {
		s.unsubscribe = append(s.unsubscribe, bus.Subscribe(h))
	}
	return s, nil
}

// Sweep drops sessions idle for longer than the idle timeout and returns how
// many were dropped
func (r *Sessions) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictLocked(r.now(), r.maxSessions)
}

// Run sweeps idle sessions every interval until ctx is done
func (r *Sessions) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("sessions_swept", "Evicted idle sessions", "", map[string]interface{}{
					"evicted":   n,
					"remaining": r.Len(),
				})
			}
		}
	}
}

// evictLocked drops idle sessions, then the least recently seen ones until at
// most limit remain. Must be called with r.mu held.
func (r *Sessions) evictLocked(now time.Time, limit int) int {
	evicted := 0
	for id, s := range r.sessions {
		if now.Sub(s.lastSeen) > r.idleTimeout {
			s.Close()
			delete(r.sessions, id)
			evicted++
		}
	}

	if limit < 0 {
		limit = 0
	}
	if len(r.sessions) <= limit {
		return evicted
	}

	oldest := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		oldest = append(oldest, s)
	}
	sort.Slice(oldest, func(i, j int) bool { return oldest[i].lastSeen.Before(oldest[j].lastSeen) })

	for _, s := range oldest[:len(oldest)-limit] {
		s.Close()
		delete(r.sessions, s.ID)
		evicted++
	}
	return evicted
}

// Len returns the number of live sessions
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close detaches every session
func (r *Sessions) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		s.Close()
		delete(r.sessions, id)
	}
}
