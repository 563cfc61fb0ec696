package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"teapot/internal/events"
	"teapot/internal/logger"
	"teapot/internal/models"
	"teapot/internal/services/cart"
	"teapot/internal/services/delivery"
)

// Confirmation is what the customer sees after a successful checkout
type Confirmation struct {
	Order       models.Order      `json:"order"`
	Items       []models.CartLine `json:"items"`
	Subtotal    models.Money      `json:"subtotal"`
	DeliveryFee models.Money      `json:"deliveryFee"`
	Total       models.Money      `json:"total"`
}

// Submitter turns the cart plus delivery details into an order
type Submitter struct {
	api         API
	cart        *cart.Manager
	bus         *events.Bus
	deliveryFee decimal.Decimal
	logger      *logger.Logger
	now         func() time.Time
}

// NewSubmitter creates a submitter for one session's cart. bus may be nil.
func NewSubmitter(api API, c *cart.Manager, bus *events.Bus, deliveryFee decimal.Decimal, log *logger.Logger) *Submitter {
	return &Submitter{
		api:         api,
		cart:        c,
		bus:         bus,
		deliveryFee: deliveryFee,
		logger:      log,
		now:         time.Now,
	}
}

// DeliveryFee returns the fixed fee added to every order
func (s *Submitter) DeliveryFee() decimal.Decimal {
	return s.deliveryFee
}

// Submit validates, then sends the order with a single call. On a
// *delivery.ValidationError or *NetworkError the cart is left untouched.
func (s *Submitter) Submit(ctx context.Context, info models.DeliveryInfo, requestID string) (*Confirmation, error) {
	info = delivery.Normalize(info)

	if err := delivery.Validate(info, s.cart.IsEmpty()); err != nil {
		return nil, err
	}

	o := models.NewOrder(uuid.NewString(), s.cart.Lines(), info, s.deliveryFee, s.now())

	s.logger.Debug("order_submitting", "Submitting order", requestID, map[string]interface{}{
		"order_id": o.ID,
		"items":    o.ItemCount(),
		"total":    o.Total.StringFixed(2),
	})

	orders, err := s.api.Place(ctx, o)
	if err != nil {
		s.logger.Error("order_submit_failed", "Failed to submit order", requestID, err, map[string]interface{}{
			"order_id": o.ID,
		})
		return nil, err
	}

	// only the submitted lines leave the cart; items added during Place stay
	if err := s.cart.RemoveLines(ctx, o.Items); err != nil {
		// the order is placed; a stale saved cart is the lesser problem
		s.logger.Error("cart_clear_failed", "Failed to clear cart after order", requestID, err, nil)
	}

	for _, placed := range orders {
		if placed.ID == o.ID {
			o = placed
			break
		}
	}

	if s.bus != nil {
		if err := s.bus.Publish(ctx, events.OrderPlaced{Order: o, Orders: orders}); err != nil {
			s.logger.Error("order_publish_failed", "Failed to publish order placed", requestID, err, nil)
		}
	}

	s.logger.Info("order_placed", "Order placed", requestID, map[string]interface{}{
		"order_id": o.ID,
		"items":    o.ItemCount(),
		"total":    o.Total.StringFixed(2),
	})

	return &Confirmation{
		Order:       o,
		Items:       o.Items,
		Subtotal:    o.Subtotal,
		DeliveryFee: o.DeliveryFee,
		Total:       o.Total,
	}, nil
}
