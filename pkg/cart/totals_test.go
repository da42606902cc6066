package cart

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id string, price int64, qty int) CartItem {
	return CartItem{ID: id, VariantID: "v-" + id, UnitPriceAmount: NewAmount(price), Quantity: qty}
}

func TestCalculateCartTotal(t *testing.T) {
	tests := []struct {
		name      string
		cart      *Cart
		subtotal  int64
		itemCount int
	}{
		{"nil cart", nil, 0, 0},
		{"empty cart", &Cart{Items: []CartItem{}}, 0, 0},
		{"two lines", &Cart{Items: []CartItem{item("a", 10000, 2), item("b", 5000, 1)}}, 25000, 3},
		{"single unit", &Cart{Items: []CartItem{item("a", 799, 1)}}, 799, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateCartTotal(tt.cart)

			assert.True(t, got.Subtotal.Equal(decimal.NewFromInt(tt.subtotal)), "subtotal %s", got.Subtotal)
			assert.True(t, got.Total.Equal(got.Subtotal.Decimal), "total equals subtotal")
			assert.Equal(t, tt.itemCount, got.ItemCount)
		})
	}
}

func TestCalculateCartTotalFractionalPrices(t *testing.T) {
	c := &Cart{Items: []CartItem{
		{UnitPriceAmount: Amount{decimal.RequireFromString("0.1")}, Quantity: 3},
		{UnitPriceAmount: Amount{decimal.RequireFromString("19.99")}, Quantity: 1},
	}}

	got := CalculateCartTotal(c)
	assert.Equal(t, "20.29", got.Subtotal.String())
	assert.Equal(t, 4, got.ItemCount)
}

func TestAmountJSON(t *testing.T) {
	data, err := json.Marshal(item("a", 10000, 2))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"unitPriceAmount":10000`)

	var decoded CartItem
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","unitPriceAmount":12.5,"quantity":2}`), &decoded))
	assert.Equal(t, "12.5", decoded.UnitPriceAmount.String())
	assert.Equal(t, "25", decoded.LineTotal().String())

	require.NoError(t, json.Unmarshal([]byte(`{"unitPriceAmount":"7"}`), &decoded))
	assert.Equal(t, "7", decoded.UnitPriceAmount.String())
}

func TestCartHelpers(t *testing.T) {
	var nilCart *Cart
	assert.False(t, nilCart.IsTerminal())
	assert.Nil(t, nilCart.Clone())

	c := &Cart{ID: "c1", Status: StatusActive, Items: []CartItem{item("a", 1, 1)}, Warnings: []string{"low stock"}}
	clone := c.Clone()
	clone.Items[0].Quantity = 9
	clone.Warnings[0] = "changed"
	assert.Equal(t, 1, c.Items[0].Quantity)
	assert.Equal(t, "low stock", c.Warnings[0])

	got, ok := c.Item("a")
	assert.True(t, ok)
	assert.Equal(t, "v-a", got.VariantID)
	_, ok = c.Item("missing")
	assert.False(t, ok)

	for status, terminal := range map[Status]bool{
		StatusActive:           false,
		StatusMerged:           true,
		StatusConvertedToOrder: true,
	} {
		assert.Equal(t, terminal, (&Cart{Status: status}).IsTerminal(), status)
	}
}
