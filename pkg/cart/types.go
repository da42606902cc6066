package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the backend lifecycle state of a cart.
type Status string

const (
	StatusActive           Status = "ACTIVE"
	StatusMerged           Status = "MERGED"
	StatusConvertedToOrder Status = "CONVERTED_TO_ORDER"
)

// IsTerminal reports whether a cart in this state must not be mutated.
func (s Status) IsTerminal() bool {
	return s == StatusMerged || s == StatusConvertedToOrder
}

// Amount is a monetary value without currency scaling. It is encoded as a
// bare JSON number and decodes from either a number or a numeric string.
type Amount struct {
	decimal.Decimal
}

func NewAmount(v int64) Amount {
	return Amount{decimal.NewFromInt(v)}
}

// MarshalJSON writes the amount as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// Cart is the server's authoritative snapshot of one shopping session.
type Cart struct {
	ID        string     `json:"id"`
	Status    Status     `json:"status"`
	Items     []CartItem `json:"items"`
	Warnings  []string   `json:"warnings,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IsTerminal is false for a nil cart.
func (c *Cart) IsTerminal() bool {
	return c != nil && c.Status.IsTerminal()
}

// Clone returns a deep copy, or nil for a nil cart.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	if c.Items != nil {
		out.Items = append([]CartItem(nil), c.Items...)
	}
	if c.Warnings != nil {
		out.Warnings = append([]string(nil), c.Warnings...)
	}
	return &out
}

// Item returns the line with the given id.
func (c *Cart) Item(itemID string) (CartItem, bool) {
	if c == nil {
		return CartItem{}, false
	}
	for _, item := range c.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return CartItem{}, false
}

// CartItem is one product variant line.
type CartItem struct {
	ID              string `json:"id"`
	ProductID       string `json:"productId"`
	ProductName     string `json:"productName"`
	VariantID       string `json:"variantId"`
	VariantName     string `json:"variantName,omitempty"`
	ImageURL        string `json:"imageUrl,omitempty"`
	Quantity        int    `json:"quantity"`
	StockQuantity   int    `json:"stockQuantity"`
	UnitPriceAmount Amount `json:"unitPriceAmount"`
	InStock         bool   `json:"inStock"`
}

// LineTotal is UnitPriceAmount × Quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPriceAmount.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// itemRequest is the body of add and update calls.
type itemRequest struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}
