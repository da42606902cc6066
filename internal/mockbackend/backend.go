package mockbackend

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/itsneelabh/gocart/pkg/cart"
)

// Error is a backend rejection, rendered as {"message": ..., "code": ...}.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

var (
	errCartNotFound = &Error{Status: http.StatusNotFound, Code: "CART_NOT_FOUND", Message: "Cart not found"}
	errItemNotFound = &Error{Status: http.StatusNotFound, Code: "ITEM_NOT_FOUND", Message: "Cart item not found"}
	errCartClosed   = &Error{Status: http.StatusConflict, Code: "CART_NOT_ACTIVE", Message: "Cart is no longer active"}
	errUnauthorized = &Error{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "Authentication required"}
	errBadQuantity  = &Error{Status: http.StatusBadRequest, Code: "INVALID_QUANTITY", Message: "Quantity must be at least 1"}
)

func errUnknownVariant(id string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "INVALID_VARIANT", Message: fmt.Sprintf("Variant %s does not exist", id)}
}

func errInsufficientStock(v Variant) *Error {
	msg := fmt.Sprintf("Only %d of %s (%s) left in stock", v.Stock, v.ProductName, v.Name)
	if v.Stock == 0 {
		msg = fmt.Sprintf("%s (%s) is out of stock", v.ProductName, v.Name)
	}
	return &Error{Status: http.StatusConflict, Code: "INSUFFICIENT_STOCK", Message: msg}
}

// Caller identifies who is making a request: a guest cart id from the
// X-Cart-ID header and/or a signed-in user from the bearer token.
type Caller struct {
	GuestCartID string
	UserID      string
}

// Backend is an in-memory cart service. Carts belong either to a guest
// (found by cart id) or to a user.
type Backend struct {
	mu        sync.Mutex
	catalog   *Catalog
	carts     map[string]*cart.Cart
	userCarts map[string]string
	now       func() time.Time
}

func NewBackend(catalog *Catalog) *Backend {
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &Backend{
		catalog:   catalog,
		carts:     make(map[string]*cart.Cart),
		userCarts: make(map[string]string),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (b *Backend) Catalog() *Catalog {
	return b.catalog
}

// GetOrCreate returns the caller's cart. A guest whose cart id is unknown or
// closed gets a new cart.
func (b *Backend) GetOrCreate(caller Caller) *cart.Cart {
	b.mu.Lock()
	defer b.mu.Unlock()

	if caller.UserID != "" {
		return b.userCartLocked(caller.UserID).Clone()
	}
	if c, ok := b.carts[caller.GuestCartID]; ok && !c.IsTerminal() {
		return c.Clone()
	}
	return b.newCartLocked().Clone()
}

// AddItem adds quantity units of a variant, creating a cart for a caller
// that has none yet. Adding a variant already in the cart increases that line.
func (b *Backend) AddItem(caller Caller, variantID string, quantity int) (*cart.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var c *cart.Cart
	if caller.UserID != "" || caller.GuestCartID != "" {
		var err error
		if c, err = b.cartForMutationLocked(caller); err != nil {
			return nil, err
		}
	}
	if quantity < 1 {
		return nil, errBadQuantity
	}
	v, ok := b.catalog.Variant(variantID)
	if !ok {
		return nil, errUnknownVariant(variantID)
	}
	if quantity > v.Stock {
		return nil, errInsufficientStock(v)
	}
	// First add for a caller without a cart.
	if c == nil {
		c = b.newCartLocked()
	}

	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			if c.Items[i].Quantity+quantity > v.Stock {
				return nil, errInsufficientStock(v)
			}
			c.Items[i].Quantity += quantity
			b.refreshLocked(c)
			return c.Clone(), nil
		}
	}

	c.Items = append(c.Items, newLine(v, quantity))
	b.refreshLocked(c)
	return c.Clone(), nil
}

// UpdateItem sets a line's quantity and variant. Switching to a variant of a
// different product is rejected; switching to a variant already held by
// another line folds the two lines together.
func (b *Backend) UpdateItem(caller Caller, itemID, variantID string, quantity int) (*cart.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.cartForMutationLocked(caller)
	if err != nil {
		return nil, err
	}
	idx := indexOf(c, itemID)
	if idx < 0 {
		return nil, errItemNotFound
	}
	if quantity < 1 {
		return nil, errBadQuantity
	}
	if variantID == "" {
		variantID = c.Items[idx].VariantID
	}
	v, ok := b.catalog.Variant(variantID)
	if !ok {
		return nil, errUnknownVariant(variantID)
	}
	if v.ProductID != c.Items[idx].ProductID {
		return nil, &Error{Status: http.StatusBadRequest, Code: "INVALID_VARIANT", Message: "Variant belongs to a different product"}
	}

	for j := range c.Items {
		if j != idx && c.Items[j].VariantID == variantID {
			if c.Items[j].Quantity+quantity > v.Stock {
				return nil, errInsufficientStock(v)
			}
			c.Items[j].Quantity += quantity
			c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
			b.refreshLocked(c)
			return c.Clone(), nil
		}
	}

	if quantity > v.Stock {
		return nil, errInsufficientStock(v)
	}
	line := newLine(v, quantity)
	line.ID = c.Items[idx].ID
	c.Items[idx] = line
	b.refreshLocked(c)
	return c.Clone(), nil
}

func (b *Backend) RemoveItem(caller Caller, itemID string) (*cart.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.cartForMutationLocked(caller)
	if err != nil {
		return nil, err
	}
	idx := indexOf(c, itemID)
	if idx < 0 {
		return nil, errItemNotFound
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	b.refreshLocked(c)
	return c.Clone(), nil
}

func (b *Backend) RemoveAll(caller Caller) (*cart.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.cartForMutationLocked(caller)
	if err != nil {
		return nil, err
	}
	c.Items = []cart.CartItem{}
	b.refreshLocked(c)
	return c.Clone(), nil
}

// Merge folds the caller's guest cart into the user's cart and marks the
// guest cart MERGED. Quantities are capped at stock with a warning. Merging
// without a usable guest cart returns the user's cart unchanged.
func (b *Backend) Merge(caller Caller) (*cart.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if caller.UserID == "" {
		return nil, errUnauthorized
	}
	userCart := b.userCartLocked(caller.UserID)

	guest, ok := b.carts[caller.GuestCartID]
	if !ok || guest.IsTerminal() || guest.ID == userCart.ID {
		return userCart.Clone(), nil
	}

	userCart.Warnings = nil
	for _, line := range guest.Items {
		b.foldLineLocked(userCart, line)
	}
	guest.Status = cart.StatusMerged
	guest.UpdatedAt = b.now()
	b.refreshLocked(userCart)
	return userCart.Clone(), nil
}

func (b *Backend) foldLineLocked(dst *cart.Cart, line cart.CartItem) {
	v, ok := b.catalog.Variant(line.VariantID)
	if !ok {
		dst.Warnings = append(dst.Warnings, fmt.Sprintf("%s is no longer available", line.ProductName))
		return
	}

	idx := -1
	for i := range dst.Items {
		if dst.Items[i].VariantID == line.VariantID {
			idx = i
			break
		}
	}

	want := line.Quantity
	if idx >= 0 {
		want += dst.Items[idx].Quantity
	}
	if want > v.Stock {
		dst.Warnings = append(dst.Warnings, fmt.Sprintf("Reduced %s (%s) to %d, the quantity in stock", v.ProductName, v.Name, v.Stock))
		want = v.Stock
	}

	switch {
	case idx >= 0 && want == 0:
		dst.Items = append(dst.Items[:idx], dst.Items[idx+1:]...)
	case idx >= 0:
		dst.Items[idx].Quantity = want
	case want > 0:
		dst.Items = append(dst.Items, newLine(v, want))
	}
}

// Expire deletes a cart, as a backend does when a guest cart times out.
func (b *Backend) Expire(cartID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.carts[cartID]; !ok {
		return false
	}
	delete(b.carts, cartID)
	for user, id := range b.userCarts {
		if id == cartID {
			delete(b.userCarts, user)
		}
	}
	return true
}

// ConvertToOrder marks a cart CONVERTED_TO_ORDER. A user's next request
// gets a fresh cart.
func (b *Backend) ConvertToOrder(cartID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.carts[cartID]
	if !ok {
		return false
	}
	c.Status = cart.StatusConvertedToOrder
	c.UpdatedAt = b.now()
	for user, id := range b.userCarts {
		if id == cartID {
			delete(b.userCarts, user)
		}
	}
	return true
}

// Cart returns a copy of a cart by id.
func (b *Backend) Cart(cartID string) (*cart.Cart, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.carts[cartID]
	return c.Clone(), ok
}

// cartForMutationLocked resolves the cart a mutation applies to.
func (b *Backend) cartForMutationLocked(caller Caller) (*cart.Cart, error) {
	if caller.UserID != "" {
		return b.userCartLocked(caller.UserID), nil
	}
	if caller.GuestCartID == "" {
		return nil, errCartNotFound
	}

	c, ok := b.carts[caller.GuestCartID]
	if !ok {
		return nil, errCartNotFound
	}
	if c.IsTerminal() {
		return nil, errCartClosed
	}
	return c, nil
}

func (b *Backend) userCartLocked(userID string) *cart.Cart {
	if id, ok := b.userCarts[userID]; ok {
		if c, ok := b.carts[id]; ok && !c.IsTerminal() {
			return c
		}
	}
	c := b.newCartLocked()
	b.userCarts[userID] = c.ID
	return c
}

func (b *Backend) newCartLocked() *cart.Cart {
	now := b.now()
	c := &cart.Cart{
		ID:        uuid.New().String(),
		Status:    cart.StatusActive,
		Items:     []cart.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.carts[c.ID] = c
	return c
}

// refreshLocked re-reads stock and price for every line and bumps UpdatedAt.
func (b *Backend) refreshLocked(c *cart.Cart) {
	for i := range c.Items {
		if v, ok := b.catalog.Variant(c.Items[i].VariantID); ok {
			c.Items[i].StockQuantity = v.Stock
			c.Items[i].InStock = v.Stock > 0
			c.Items[i].UnitPriceAmount = cart.Amount{Decimal: v.Price}
		}
	}
	c.UpdatedAt = b.now()
}

func newLine(v Variant, quantity int) cart.CartItem {
	return cart.CartItem{
		ID:              uuid.New().String(),
		ProductID:       v.ProductID,
		ProductName:     v.ProductName,
		VariantID:       v.ID,
		VariantName:     v.Name,
		ImageURL:        v.ImageURL,
		Quantity:        quantity,
		StockQuantity:   v.Stock,
		UnitPriceAmount: cart.Amount{Decimal: v.Price},
		InStock:         v.Stock > 0,
	}
}

func indexOf(c *cart.Cart, itemID string) int {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}
