package order

import (
	"context"
	"errors"
	"fmt"

	"teapot/internal/models"
)

// API is the order-receiving service
type API interface {
	// Place stores a new order. The returned slice is the updated order
	// list when the backend has it at hand, nil otherwise.
	Place(ctx context.Context, o models.Order) ([]models.Order, error)
	// List returns the open orders
	List(ctx context.Context) ([]models.Order, error)
	// Remove deletes a fulfilled order
	Remove(ctx context.Context, o models.Order) error
}

// ErrNotFound is returned by Remove when the order no longer exists
var ErrNotFound = errors.New("order not found")

// NetworkError is a failed call to the order service: either the transport
// failed (Status is 0) or the service answered with a non-2xx status
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: order service responded with status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
