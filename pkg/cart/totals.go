package cart

import "github.com/shopspring/decimal"

// Totals are derived from a cart snapshot and never cached.
type Totals struct {
	Subtotal  Amount `json:"subtotal"`
	Total     Amount `json:"total"`
	ItemCount int    `json:"itemCount"`
}

// CalculateCartTotal sums a cart. A nil or empty cart yields zeros.
func CalculateCartTotal(c *Cart) Totals {
	subtotal := decimal.Zero
	count := 0

	if c != nil {
		for _, item := range c.Items {
			subtotal = subtotal.Add(item.LineTotal())
			count += item.Quantity
		}
	}

	// Total has no shipping, tax or discount components yet.
	return Totals{
		Subtotal:  Amount{subtotal},
		Total:     Amount{subtotal},
		ItemCount: count,
	}
}
