package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/itsneelabh/gocart/pkg/logger"
)

// API is the backend surface the Store drives. *Client implements it.
type API interface {
	GetOrCreateCart(ctx context.Context) (*Cart, error)
	AddItemToCart(ctx context.Context, variantID string, quantity int) (*Cart, error)
	UpdateCartItem(ctx context.Context, itemID, variantID string, quantity int) (*Cart, error)
	RemoveItemFromCart(ctx context.Context, itemID string) (*Cart, error)
	RemoveAllItems(ctx context.Context) (*Cart, error)
	MergeCart(ctx context.Context) (*Cart, error)
}

// GuestCartIDs is the part of the guest id storage the retry policy needs.
type GuestCartIDs interface {
	Get(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// State is what subscribers observe. Error is empty when the last action
// succeeded.
type State struct {
	Cart    *Cart
	Loading bool
	Error   string
}

// Store is the observable cart state container. The mutex only guards the
// state value; actions themselves are not sequenced, so overlapping actions
// race and the last response to arrive wins.
type Store struct {
	api    API
	guest  GuestCartIDs
	logger logger.Logger

	mu        sync.Mutex
	state     State
	listeners map[int]func(State)
	nextID    int
}

func NewStore(api API, guest GuestCartIDs, log logger.Logger) *Store {
	return &Store{
		api:       api,
		guest:     guest,
		logger:    logger.OrNoOp(log).WithComponent("cart/store"),
		listeners: make(map[int]func(State)),
	}
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every state change.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// ItemCount is recomputed from the current cart on every call.
func (s *Store) ItemCount() int {
	return CalculateCartTotal(s.State().Cart).ItemCount
}

// Total is recomputed from the current cart on every call.
func (s *Store) Total() Amount {
	return CalculateCartTotal(s.State().Cart).Total
}

// FetchCart loads the current cart. Failures are recorded in State().Error
// and the previous cart is kept.
func (s *Store) FetchCart(ctx context.Context) {
	s.begin()

	cart, err := s.api.GetOrCreateCart(ctx)
	if err != nil {
		s.fail(OpGetOrCreateCart, err)
		return
	}
	s.succeed(cart)
}

// AddToCart adds a variant. When the first attempt fails and a guest cart id
// is stored, the id is cleared and the add is attempted once more. If that
// also fails, the error of the first attempt is recorded and returned; the
// retry's error is only logged.
//
// When the current cart is closed and a guest cart id is stored, the id is
// dropped first so the backend starts a fresh cart.
func (s *Store) AddToCart(ctx context.Context, variantID string, quantity int) (*Cart, error) {
	if !s.releaseClosedGuestCart(ctx) {
		if err := s.guardTerminal(OpAddItemToCart); err != nil {
			return nil, err
		}
	}
	s.begin()

	cart, err := s.api.AddItemToCart(ctx, variantID, quantity)
	if err != nil {
		cart, err = s.retryWithoutGuestID(ctx, variantID, quantity, err)
	}
	if err != nil {
		s.fail(OpAddItemToCart, err)
		return nil, err
	}

	s.succeed(cart)
	return cart.Clone(), nil
}

// retryWithoutGuestID is the second step of AddToCart. It returns firstErr
// unchanged when no retry is possible or the retry fails.
func (s *Store) retryWithoutGuestID(ctx context.Context, variantID string, quantity int, firstErr error) (*Cart, error) {
	guestID, err := s.guest.Get(ctx)
	if err != nil || guestID == "" {
		return nil, firstErr
	}

	s.logger.Info("Add to cart failed with a guest cart id, retrying without it", map[string]interface{}{
		"guest_cart_id": guestID,
		"variant_id":    variantID,
		"error":         firstErr,
	})

	if err := s.guest.Clear(ctx); err != nil {
		s.logger.Warn("Failed to clear guest cart id before retry", map[string]interface{}{
			"error": err,
		})
	}

	cart, err := s.api.AddItemToCart(ctx, variantID, quantity)
	if err != nil {
		s.logger.Error("Add to cart retry failed", map[string]interface{}{
			"variant_id":  variantID,
			"retry_error": err,
		})
		return nil, firstErr
	}
	return cart, nil
}

// releaseClosedGuestCart clears the stored guest cart id when the current
// snapshot is MERGED or CONVERTED_TO_ORDER. It reports whether an id was
// cleared.
func (s *Store) releaseClosedGuestCart(ctx context.Context) bool {
	s.mu.Lock()
	current := s.state.Cart
	s.mu.Unlock()
	if !current.IsTerminal() {
		return false
	}

	guestID, err := s.guest.Get(ctx)
	if err != nil || guestID == "" {
		return false
	}
	if err := s.guest.Clear(ctx); err != nil {
		s.logger.Warn("Failed to clear guest cart id of a closed cart", map[string]interface{}{
			"cart_id": current.ID,
			"error":   err,
		})
		return false
	}

	s.logger.Info("Dropped guest cart id of a closed cart", map[string]interface{}{
		"cart_id":       current.ID,
		"status":        string(current.Status),
		"guest_cart_id": guestID,
	})
	return true
}

// UpdateCartItem changes a line's quantity or variant.
func (s *Store) UpdateCartItem(ctx context.Context, itemID, variantID string, quantity int) (*Cart, error) {
	return s.mutate(OpUpdateCartItem, func() (*Cart, error) {
		return s.api.UpdateCartItem(ctx, itemID, variantID, quantity)
	})
}

// RemoveFromCart deletes one line.
func (s *Store) RemoveFromCart(ctx context.Context, itemID string) (*Cart, error) {
	return s.mutate(OpRemoveItemFromCart, func() (*Cart, error) {
		return s.api.RemoveItemFromCart(ctx, itemID)
	})
}

// ClearCart removes every line.
func (s *Store) ClearCart(ctx context.Context) (*Cart, error) {
	return s.mutate(OpRemoveAllItems, func() (*Cart, error) {
		return s.api.RemoveAllItems(ctx)
	})
}

// MergeCart folds the guest cart into the signed-in customer's cart after
// login. Failures are recorded in State().Error but not returned.
func (s *Store) MergeCart(ctx context.Context) {
	s.begin()

	cart, err := s.api.MergeCart(ctx)
	if err != nil {
		s.fail(OpMergeCart, err)
		return
	}
	s.succeed(cart)
}

func (s *Store) mutate(op string, call func() (*Cart, error)) (*Cart, error) {
	if err := s.guardTerminal(op); err != nil {
		return nil, err
	}
	s.begin()

	cart, err := call()
	if err != nil {
		s.fail(op, err)
		return nil, err
	}
	s.succeed(cart)
	return cart.Clone(), nil
}

// guardTerminal rejects mutations of a MERGED or CONVERTED_TO_ORDER cart
// without calling the backend.
func (s *Store) guardTerminal(op string) error {
	s.mu.Lock()
	current := s.state.Cart
	if !current.IsTerminal() {
		s.mu.Unlock()
		return nil
	}
	err := fmt.Errorf("%s on cart %s (%s): %w", op, current.ID, current.Status, ErrCartTerminal)
	s.state.Loading = false
	s.state.Error = ErrorMessage(op, err)
	s.mu.Unlock()

	s.logger.Warn("Refusing to modify a closed cart", map[string]interface{}{
		"operation": op,
		"cart_id":   current.ID,
		"status":    string(current.Status),
	})
	s.notify()
	return err
}

func (s *Store) begin() {
	s.update(func(st *State) {
		st.Loading = true
		st.Error = ""
	})
}

func (s *Store) succeed(cart *Cart) {
	s.update(func(st *State) {
		st.Cart = cart.Clone()
		st.Loading = false
		st.Error = ""
	})
}

func (s *Store) fail(op string, err error) {
	msg := ErrorMessage(op, err)
	s.logger.Warn("Cart action failed", map[string]interface{}{
		"operation": op,
		"message":   msg,
		"error":     err,
	})
	s.update(func(st *State) {
		st.Loading = false
		st.Error = msg
	})
}

func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	s.mu.Unlock()
	s.notify()
}

// notify delivers the current snapshot outside the lock so listeners may
// call back into the store.
func (s *Store) notify() {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	listeners := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

func (s *Store) snapshotLocked() State {
	st := s.state
	st.Cart = s.state.Cart.Clone()
	return st
}
