package cart

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/gocart/pkg/config"
	"github.com/itsneelabh/gocart/pkg/storage"
	"github.com/itsneelabh/gocart/pkg/telemetry"
)

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

// fakeBackend answers every request with the configured status and body and
// records what it received.
type fakeBackend struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
	ctype    string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   string(data),
	})
	status, body, ctype := f.status, f.body, f.ctype
	f.mu.Unlock()

	if ctype == "" {
		ctype = "application/json"
	}
	w.Header().Set("Content-Type", ctype)
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeBackend) respond(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.body, f.ctype = status, body, ""
}

func (f *fakeBackend) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests, "no request reached the backend")
	return f.requests[len(f.requests)-1]
}

func (f *fakeBackend) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func cartJSON(id string) string {
	return `{"id":"` + id + `","status":"ACTIVE","items":[{"id":"i1","productId":"p1","productName":"Tee","variantId":"v1","quantity":2,"stockQuantity":5,"unitPriceAmount":10000,"inStock":true}],"createdAt":"2024-01-02T03:04:05Z","updatedAt":"2024-01-02T03:04:05Z"}`
}

func newTestClient(t *testing.T, opts ...ClientOption) (*Client, *fakeBackend, *GuestCartIDStore) {
	t.Helper()
	backend := &fakeBackend{body: cartJSON("c1")}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	guest := NewGuestCartIDStore(storage.NewMemoryStorage(nil), DefaultGuestCartKey, nil)
	return NewClient(srv.URL, guest, opts...), backend, guest
}

func guestID(t *testing.T, g *GuestCartIDStore) string {
	t.Helper()
	id, err := g.Get(context.Background())
	require.NoError(t, err)
	return id
}

func TestGetOrCreateCart(t *testing.T) {
	ctx := context.Background()

	t.Run("stores id when none stored", func(t *testing.T) {
		client, backend, guest := newTestClient(t)

		c, err := client.GetOrCreateCart(ctx)
		require.NoError(t, err)

		req := backend.last(t)
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "/api/v1/carts", req.Path)
		assert.Empty(t, req.Header.Get(HeaderCartID))
		assert.NotEmpty(t, req.Header.Get(telemetry.HeaderRequestID))
		assert.Equal(t, "application/json", req.Header.Get("Accept"))

		assert.Equal(t, "c1", c.ID)
		assert.Equal(t, StatusActive, c.Status)
		require.Len(t, c.Items, 1)
		assert.Equal(t, "10000", c.Items[0].UnitPriceAmount.String())
		assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), c.CreatedAt)
		assert.Equal(t, "c1", guestID(t, guest))
	})

	t.Run("keeps existing id", func(t *testing.T) {
		client, backend, guest := newTestClient(t)
		_, err := guest.SetIfAbsent(ctx, "c0")
		require.NoError(t, err)

		c, err := client.GetOrCreateCart(ctx)
		require.NoError(t, err)

		assert.Equal(t, "c0", backend.last(t).Header.Get(HeaderCartID))
		assert.Equal(t, "c1", c.ID)
		assert.Equal(t, "c0", guestID(t, guest), "stored id is not overwritten")
	})

	t.Run("failure leaves id untouched", func(t *testing.T) {
		client, backend, guest := newTestClient(t)
		backend.respond(http.StatusInternalServerError, `{"message":"database down"}`)

		_, err := client.GetOrCreateCart(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBackend)
		assert.Empty(t, guestID(t, guest))
	})
}

func TestAddItemToCart(t *testing.T) {
	ctx := context.Background()
	client, backend, guest := newTestClient(t)

	c, err := client.AddItemToCart(ctx, "v1", 2)
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)

	req := backend.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/v1/carts/items", req.Path)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"variantId":"v1","quantity":2}`, req.Body)
	assert.Equal(t, "c1", guestID(t, guest))

	t.Run("backend validation error passes through", func(t *testing.T) {
		backend.respond(http.StatusConflict, `{"message":"Only 1 left in stock","code":"INSUFFICIENT_STOCK"}`)

		_, err := client.AddItemToCart(ctx, "v1", 5)
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, OpAddItemToCart, apiErr.Op)
		assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
		assert.Equal(t, "INSUFFICIENT_STOCK", apiErr.Code)
		assert.Equal(t, "Only 1 left in stock", apiErr.Message)
		assert.ErrorIs(t, err, ErrBackend)
		assert.Equal(t, "c1", backend.last(t).Header.Get(HeaderCartID))
		assert.Equal(t, "c1", guestID(t, guest), "failures never clear the id")
	})

	t.Run("no local quantity validation", func(t *testing.T) {
		backend.respond(http.StatusBadRequest, `{"error":"quantity must be positive"}`)

		_, err := client.AddItemToCart(ctx, "v1", 0)
		require.Error(t, err)
		assert.JSONEq(t, `{"variantId":"v1","quantity":0}`, backend.last(t).Body)
		assert.Equal(t, "quantity must be positive", ErrorMessage(OpAddItemToCart, err))
	})
}

func TestItemMutations(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		call   func(*Client) (*Cart, error)
		method string
		path   string
		body   string
	}{
		{
			name:   "update quantity",
			call:   func(c *Client) (*Cart, error) { return c.UpdateCartItem(ctx, "i1", "v1", 3) },
			method: http.MethodPut,
			path:   "/api/v1/carts/items/i1",
			body:   `{"variantId":"v1","quantity":3}`,
		},
		{
			name:   "switch variant",
			call:   func(c *Client) (*Cart, error) { return c.UpdateCartItem(ctx, "i1", "v2", 1) },
			method: http.MethodPut,
			path:   "/api/v1/carts/items/i1",
			body:   `{"variantId":"v2","quantity":1}`,
		},
		{
			name:   "remove item",
			call:   func(c *Client) (*Cart, error) { return c.RemoveItemFromCart(ctx, "i1") },
			method: http.MethodDelete,
			path:   "/api/v1/carts/items/i1",
		},
		{
			name:   "remove all",
			call:   func(c *Client) (*Cart, error) { return c.RemoveAllItems(ctx) },
			method: http.MethodDelete,
			path:   "/api/v1/carts/items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, backend, guest := newTestClient(t)
			_, err := guest.SetIfAbsent(ctx, "g1")
			require.NoError(t, err)

			c, err := tt.call(client)
			require.NoError(t, err)
			assert.Equal(t, "c1", c.ID)

			req := backend.last(t)
			assert.Equal(t, tt.method, req.Method)
			assert.Equal(t, tt.path, req.Path)
			assert.Equal(t, "g1", req.Header.Get(HeaderCartID))
			if tt.body != "" {
				assert.JSONEq(t, tt.body, req.Body)
			} else {
				assert.Empty(t, req.Body)
			}
		})
	}
}

func TestItemMutationsDoNotStoreGuestID(t *testing.T) {
	client, _, guest := newTestClient(t)

	_, err := client.RemoveAllItems(context.Background())
	require.NoError(t, err)
	assert.Empty(t, guestID(t, guest))
}

func TestMergeCart(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a token", func(t *testing.T) {
		client, backend, guest := newTestClient(t)
		_, _ = guest.SetIfAbsent(ctx, "g1")

		_, err := client.MergeCart(ctx)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
		assert.Zero(t, backend.count(), "no request without a token")
		assert.Equal(t, "g1", guestID(t, guest))
	})

	t.Run("success clears the id even when the cart id differs", func(t *testing.T) {
		client, backend, guest := newTestClient(t, WithTokenSource(StaticToken("user-1")))
		_, _ = guest.SetIfAbsent(ctx, "g1")
		backend.respond(http.StatusOK, cartJSON("user-cart"))

		c, err := client.MergeCart(ctx)
		require.NoError(t, err)
		assert.Equal(t, "user-cart", c.ID)

		req := backend.last(t)
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/api/v1/carts/merge", req.Path)
		assert.Equal(t, "g1", req.Header.Get(HeaderCartID))
		assert.Equal(t, "Bearer user-1", req.Header.Get("Authorization"))
		assert.Empty(t, req.Body)
		assert.Empty(t, guestID(t, guest))
	})

	t.Run("failure keeps the id", func(t *testing.T) {
		client, backend, guest := newTestClient(t, WithTokenSource(StaticToken("user-1")))
		_, _ = guest.SetIfAbsent(ctx, "g1")
		backend.respond(http.StatusUnauthorized, `{"message":"Session expired"}`)

		_, err := client.MergeCart(ctx)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
		assert.Equal(t, "Session expired", ErrorMessage(OpMergeCart, err))
		assert.Equal(t, "g1", guestID(t, guest))
	})

	t.Run("token source error", func(t *testing.T) {
		client, backend, _ := newTestClient(t, WithTokenSource(TokenFunc(func(context.Context) (string, error) {
			return "", assert.AnError
		})))

		_, err := client.MergeCart(ctx)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Zero(t, backend.count())
	})
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("transport failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		client := NewClient(srv.URL, nil)
		_, err := client.GetOrCreateCart(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTransport)
		assert.Equal(t, "Failed to fetch cart", ErrorMessage(OpGetOrCreateCart, err))
	})

	t.Run("malformed response", func(t *testing.T) {
		client, backend, guest := newTestClient(t)
		backend.respond(http.StatusOK, `{"id":`)

		_, err := client.GetOrCreateCart(ctx)
		assert.ErrorIs(t, err, ErrBackend)
		assert.Empty(t, guestID(t, guest))
	})

	t.Run("not found", func(t *testing.T) {
		client, backend, _ := newTestClient(t)
		backend.respond(http.StatusNotFound, `{"message":"Cart not found"}`)

		_, err := client.RemoveItemFromCart(ctx, "i9")
		assert.ErrorIs(t, err, ErrCartNotFound)
	})

	t.Run("plain text body", func(t *testing.T) {
		client, backend, _ := newTestClient(t)
		backend.mu.Lock()
		backend.status, backend.body, backend.ctype = http.StatusBadRequest, "Invalid variant\n", "text/plain; charset=utf-8"
		backend.mu.Unlock()

		_, err := client.AddItemToCart(ctx, "nope", 1)
		assert.Equal(t, "Invalid variant", ErrorMessage(OpAddItemToCart, err))
	})

	t.Run("empty error body uses fallback", func(t *testing.T) {
		client, backend, _ := newTestClient(t)
		backend.respond(http.StatusBadGateway, "")

		_, err := client.UpdateCartItem(ctx, "i1", "v1", 1)
		assert.Equal(t, "Failed to update cart item", ErrorMessage(OpUpdateCartItem, err))
	})
}

func TestClientPrefixAndCorrelation(t *testing.T) {
	client, backend, _ := newTestClient(t, WithPrefix(""))

	ctx := telemetry.WithCorrelationID(context.Background(), "session-9")
	_, err := client.GetOrCreateCart(ctx)
	require.NoError(t, err)

	req := backend.last(t)
	assert.Equal(t, "/carts", req.Path)
	assert.Equal(t, "session-9", req.Header.Get(telemetry.HeaderCorrelationID))

	client, backend, _ = newTestClient(t, WithPrefix("api/v2/"))
	_, err = client.GetOrCreateCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/api/v2/carts", backend.last(t).Path)
}

func TestNewClientFromConfig(t *testing.T) {
	backend := &fakeBackend{body: cartJSON("c1")}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	cfg := config.APIConfig{BaseURL: srv.URL, Prefix: "/api/v1", Timeout: 2 * time.Second, AuthToken: "tok"}
	client := NewClientFromConfig(cfg, nil, nil)
	assert.Equal(t, 2*time.Second, client.httpClient.Timeout)

	_, err := client.MergeCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", backend.last(t).Header.Get("Authorization"))
}

func TestCartJSONFieldNames(t *testing.T) {
	var c Cart
	require.NoError(t, json.Unmarshal([]byte(cartJSON("c1")), &c))

	data, err := json.Marshal(c)
	require.NoError(t, err)
	for _, field := range []string{`"productId"`, `"variantId"`, `"stockQuantity"`, `"inStock"`, `"createdAt"`} {
		assert.Contains(t, string(data), field)
	}
	assert.NotContains(t, string(data), `"warnings"`, "absent warnings are omitted")
}
