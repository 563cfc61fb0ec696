package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every catalog price
const CurrencySymbol = "$"

// MenuItem represents a purchasable catalog entry. Items are never mutated.
type MenuItem struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Category    string `json:"category"`
}

// UnitPrice returns the numeric price of the item
func (m MenuItem) UnitPrice() decimal.Decimal {
	return NumericPrice(m.Price)
}

// NumericPrice strips a leading currency symbol and parses the remainder.
// Unparsable prices degrade to zero.
func NumericPrice(price string) decimal.Decimal {
	s := strings.TrimSpace(price)
	s = strings.TrimPrefix(s, CurrencySymbol)
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatPrice renders an amount the way catalog prices are written
func FormatPrice(d decimal.Decimal) string {
	return CurrencySymbol + d.StringFixed(2)
}
