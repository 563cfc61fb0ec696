package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"teapot/internal/events"
	"teapot/internal/logger"
	"teapot/internal/models"
	"teapot/internal/services/order"
)

// DefaultInterval is the poll period of the staff order view
const DefaultInterval = 3 * time.Second

// ErrAlreadyPolling is returned by Start when the feed is already running
var ErrAlreadyPolling = errors.New("feed is already polling")

// State of the feed
type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

// Feed keeps the staff view of open orders. While polling it re-fetches the
// whole list every interval; each fetch replaces the list.
type Feed struct {
	api      order.API
	interval time.Duration
	logger   *logger.Logger

	mu         sync.Mutex
	orders     []models.Order
	generation uint64 // bumped whenever the list is replaced
	fetchSeq   uint64
	appliedSeq uint64

	state    State
	lifetime context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	kick     chan struct{}
}

// New creates an idle feed; a non-positive interval means DefaultInterval
func New(api order.API, interval time.Duration, log *logger.Logger) *Feed {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Feed{
		api:      api,
		interval: interval,
		logger:   log,
		orders:   []models.Order{},
		kick:     make(chan struct{}, 1),
	}
}

// Start fetches immediately and then every interval until Stop or until ctx is done
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == Polling {
		return ErrAlreadyPolling
	}

	f.lifetime, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})
	f.state = Polling

	go f.pollLoop(f.lifetime, f.done)

	f.logger.Info("feed_started", "Order feed polling started", "", map[string]interface{}{
		"interval_seconds": f.interval.Seconds(),
	})
	return nil
}

// Stop cancels the timer and any fetch in flight, and waits for the loop to exit
func (f *Feed) Stop() {
	f.mu.Lock()
	if f.state != Polling {
		f.mu.Unlock()
		return
	}
	cancel, done := f.cancel, f.done
	f.state = Idle
	f.lifetime, f.cancel = nil, nil
	f.mu.Unlock()

	cancel()
	<-done

	f.logger.Info("feed_stopped", "Order feed polling stopped", "", nil)
}

// State reports whether the feed is polling
func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Orders returns a copy of the displayed list
func (f *Feed) Orders() []models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Order, len(f.orders))
	copy(out, f.orders)
	return out
}

// Find returns the displayed order whose id or phone number equals key
func (f *Feed) Find(key string) (models.Order, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if i := indexOf(f.orders, key); i >= 0 {
		return f.orders[i], true
	}
	return models.Order{}, false
}

// Refresh fetches the list once. The result is dropped if ctx or the polling
// lifetime ends first, or if a later fetch has already been applied.
func (f *Feed) Refresh(ctx context.Context) error {
	f.mu.Lock()
	f.fetchSeq++
	seq := f.fetchSeq
	lifetime := f.lifetime
	f.mu.Unlock()

	orders, err := f.api.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch orders: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if ctx.Err() != nil || (lifetime != nil && lifetime.Err() != nil) {
		f.logger.Debug("feed_result_discarded", "Discarded orders fetched after cancellation", "", nil)
		return nil
	}
	if seq < f.appliedSeq {
		return nil
	}

	if orders == nil {
		orders = []models.Order{}
	}
	f.appliedSeq = seq
	f.replace(orders)
	return nil
}

// MarkFulfilled removes the order from the list right away and asks the
// order service to delete it. If that fails the order is put back where it
// was, unless the list has been replaced since, and the error is returned.
func (f *Feed) MarkFulfilled(ctx context.Context, o models.Order) error {
	key := o.ID
	if key == "" {
		key = o.DeliveryInfo.Phone
	}

	f.mu.Lock()
	pos := indexOf(f.orders, key)
	if pos >= 0 {
		f.orders = append(f.orders[:pos:pos], f.orders[pos+1:]...)
	}
	gen := f.generation
	f.mu.Unlock()

	err := f.api.Remove(ctx, o)
	if err == nil {
		f.logger.Info("order_fulfilled", "Order marked fulfilled", "", map[string]interface{}{
			"order_id": o.ID,
			"phone":    o.DeliveryInfo.Phone,
		})
		return nil
	}

	// an order the service no longer has stays off the list
	f.mu.Lock()
	if pos >= 0 && f.generation == gen && !errors.Is(err, order.ErrNotFound) {
		if pos > len(f.orders) {
			pos = len(f.orders)
		}
		restored := make([]models.Order, 0, len(f.orders)+1)
		restored = append(restored, f.orders[:pos]...)
		restored = append(restored, o)
		restored = append(restored, f.orders[pos:]...)
		f.orders = restored
	}
	f.mu.Unlock()

	f.logger.Error("order_fulfil_failed", "Failed to remove fulfilled order", "", err, map[string]interface{}{
		"order_id": o.ID,
		"phone":    o.DeliveryInfo.Phone,
	})
	return fmt.Errorf("failed to mark order fulfilled: %w", err)
}

// HandleMessage applies OrderPlaced messages. A message carrying the updated
// list replaces the displayed one; otherwise a running poll loop refetches now.
func (f *Feed) HandleMessage(_ context.Context, msg events.Message) {
	placed, ok := msg.(events.OrderPlaced)
	if !ok {
		return
	}

	if placed.Orders != nil {
		f.mu.Lock()
		f.fetchSeq++
		f.appliedSeq = f.fetchSeq
		f.replace(append([]models.Order(nil), placed.Orders...))
		f.mu.Unlock()
		return
	}

	select {
	case f.kick <- struct{}{}:
	default:
	}
}

// replace must be called with f.mu held
func (f *Feed) replace(orders []models.Order) {
	f.orders = orders
	f.generation++
}

func (f *Feed) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.poll(ctx)
		case <-f.kick:
			f.poll(ctx)
		}
	}
}

func (f *Feed) poll(ctx context.Context) {
	if err := f.Refresh(ctx); err != nil && ctx.Err() == nil {
		f.logger.Error("feed_poll_failed", "Failed to poll orders", "", err, nil)
	}
}

func indexOf(orders []models.Order, key string) int {
	if key == "" {
		return -1
	}
	for i, o := range orders {
		if o.ID == key || (o.ID == "" && o.DeliveryInfo.Phone == key) {
			return i
		}
	}
	return -1
}
