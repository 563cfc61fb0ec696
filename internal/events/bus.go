package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"teapot/internal/models"
)

// ErrInvalidMessage is returned by Publish for a message that fails validation
var ErrInvalidMessage = errors.New("invalid message")

// Message is one of ItemAdded or OrderPlaced
type Message interface {
	Validate() error
	isMessage()
}

// ItemAdded is published when a menu item is added to the cart
type ItemAdded struct {
	Item models.MenuItem
}

// OrderPlaced is published after a successful checkout. Orders carries the
// updated order list when the order backend knows it, otherwise it is nil.
type OrderPlaced struct {
	Order  models.Order
	Orders []models.Order
}

func (ItemAdded) isMessage()   {}
func (OrderPlaced) isMessage() {}

// Validate checks the item carries a name
func (m ItemAdded) Validate() error {
	if m.Item.Name == "" {
		return fmt.Errorf("%w: item added without a name", ErrInvalidMessage)
	}
	return nil
}

// Validate checks the order carries items and a phone number
func (m OrderPlaced) Validate() error {
	if len(m.Order.Items) == 0 {
		return fmt.Errorf("%w: order placed without items", ErrInvalidMessage)
	}
	if m.Order.DeliveryInfo.Phone == "" {
		return fmt.Errorf("%w: order placed without a phone number", ErrInvalidMessage)
	}
	return nil
}

// Handler receives published messages
type Handler func(ctx context.Context, msg Message)

// Bus delivers messages synchronously to subscribers in publish order
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]Handler
	order    []int
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers a handler and returns a function that removes it
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish validates msg and hands it to every subscriber in subscription order.
// Handlers run on the caller's goroutine.
func (b *Bus) Publish(ctx context.Context, msg Message) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", ErrInvalidMessage)
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(ctx, msg)
	}
	return nil
}
