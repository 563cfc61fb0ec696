package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is used for Order.Timestamp
const TimestampLayout = "2006-01-02 15:04:05"

// Money is a decimal amount that travels as a JSON number with two decimals
type Money struct {
	decimal.Decimal
}

// NewMoney wraps a decimal amount
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MarshalJSON writes the amount as a bare number
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.StringFixed(2)), nil
}

// CartLine is one item of the cart with its quantity. It serializes flat:
// the item fields plus "quantity".
type CartLine struct {
	MenuItem
	Quantity int `json:"quantity"`
}

// LineTotal returns unit price times quantity
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// DeliveryInfo is the customer's delivery address and phone number
type DeliveryInfo struct {
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// Order is a snapshot of a cart plus delivery details
type Order struct {
	ID           string       `json:"id,omitempty"`
	OrderNumber  int          `json:"orderNumber,omitempty"`
	Items        []CartLine   `json:"items"`
	Timestamp    string       `json:"timestamp"`
	Subtotal     Money        `json:"subtotal"`
	DeliveryFee  Money        `json:"deliveryFee"`
	Total        Money        `json:"total"`
	DeliveryInfo DeliveryInfo `json:"deliveryInfo"`
}

// NewOrder snapshots the given lines. The total includes the delivery fee.
func NewOrder(id string, lines []CartLine, info DeliveryInfo, fee decimal.Decimal, now time.Time) Order {
	items := make([]CartLine, len(lines))
	copy(items, lines)

	subtotal := CalculateSubtotal(items)
	return Order{
		ID:           id,
		Items:        items,
		Timestamp:    now.Format(TimestampLayout),
		Subtotal:     NewMoney(subtotal),
		DeliveryFee:  NewMoney(fee),
		Total:        NewMoney(subtotal.Add(fee)),
		DeliveryInfo: info,
	}
}

// CalculateSubtotal sums line totals
func CalculateSubtotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// ItemCount returns the number of units across all lines
func (o Order) ItemCount() int {
	n := 0
	for _, l := range o.Items {
		n += l.Quantity
	}
	return n
}

// Summary renders a one-line description of the order items, e.g. "Mango Lassi x 2, Samosas x 1"
func (o Order) Summary() string {
	s := ""
	for i, l := range o.Items {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s x %d", l.Name, l.Quantity)
	}
	return s
}
