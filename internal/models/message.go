package models

import (
	"time"
)

// OrderPlacedMessage is broadcast on the orders fanout exchange after a successful checkout
type OrderPlacedMessage struct {
	OrderID      string       `json:"order_id"`
	OrderNumber  int          `json:"order_number,omitempty"`
	Items        []CartLine   `json:"items"`
	Total        Money        `json:"total"`
	DeliveryInfo DeliveryInfo `json:"delivery_info"`
	PlacedAt     time.Time    `json:"placed_at"`
}

// CreateOrderPlacedMessage builds the broadcast payload for an order
func CreateOrderPlacedMessage(o Order, placedAt time.Time) *OrderPlacedMessage {
	return &OrderPlacedMessage{
		OrderID:      o.ID,
		OrderNumber:  o.OrderNumber,
		Items:        o.Items,
		Total:        o.Total,
		DeliveryInfo: o.DeliveryInfo,
		PlacedAt:     placedAt.UTC(),
	}
}
