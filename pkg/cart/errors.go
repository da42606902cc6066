package cart

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrTransport means the request never produced an HTTP response.
	ErrTransport = errors.New("cart: transport failure")
	// ErrBackend means the backend answered with a non-success status.
	ErrBackend          = errors.New("cart: backend rejected request")
	ErrCartNotFound     = errors.New("cart: cart not found")
	ErrCartTerminal     = errors.New("cart: cart is no longer active")
	ErrNotAuthenticated = errors.New("cart: authentication required")
)

// Operation names used in errors, spans and metrics.
const (
	OpGetOrCreateCart    = "GetOrCreateCart"
	OpAddItemToCart      = "AddItemToCart"
	OpUpdateCartItem     = "UpdateCartItem"
	OpRemoveItemFromCart = "RemoveItemFromCart"
	OpRemoveAllItems     = "RemoveAllItems"
	OpMergeCart          = "MergeCart"
)

// fallbackMessages are shown when the backend gave no message of its own.
var fallbackMessages = map[string]string{
	OpGetOrCreateCart:    "Failed to fetch cart",
	OpAddItemToCart:      "Failed to add item to cart",
	OpUpdateCartItem:     "Failed to update cart item",
	OpRemoveItemFromCart: "Failed to remove item from cart",
	OpRemoveAllItems:     "Failed to clear cart",
	OpMergeCart:          "Failed to merge cart",
}

// APIError describes a failed cart call. Err wraps one of the sentinels and,
// for transport failures, the underlying cause.
type APIError struct {
	Op         string
	Method     string
	Path       string
	StatusCode int    // zero when no response was received
	Code       string // backend error code, if any
	Message    string // backend error message, verbatim
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s %s %s: %d: %s", e.Op, e.Method, e.Path, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s %s: %d %s", e.Op, e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": request failed"
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// statusError maps an HTTP status onto a sentinel.
func statusError(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrNotAuthenticated
	case http.StatusNotFound, http.StatusGone:
		return ErrCartNotFound
	default:
		return ErrBackend
	}
}

// ErrorMessage turns err into the human-readable text recorded in the store.
// A backend message is used verbatim; otherwise a per-operation fallback.
func ErrorMessage(op string, err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	switch {
	case errors.Is(err, ErrCartTerminal):
		return "This cart can no longer be changed"
	case errors.Is(err, ErrNotAuthenticated):
		return "You need to sign in first"
	}

	if msg, ok := fallbackMessages[op]; ok {
		return msg
	}
	return "Something went wrong"
}
