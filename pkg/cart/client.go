package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/itsneelabh/gocart/pkg/config"
	"github.com/itsneelabh/gocart/pkg/logger"
	"github.com/itsneelabh/gocart/pkg/storage"
	"github.com/itsneelabh/gocart/pkg/telemetry"
)

// HeaderCartID carries the guest cart identifier.
const HeaderCartID = "X-Cart-ID"

// DefaultPrefix is the versioned REST prefix of the cart endpoints.
const DefaultPrefix = "/api/v1"

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// TokenSource supplies the bearer token of the signed-in customer. An empty
// token means the caller is anonymous.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Client calls the backend cart endpoints.
type Client struct {
	baseURL    string
	prefix     string
	httpClient *http.Client
	guest      *GuestCartIDStore
	tokens     TokenSource
	logger     logger.Logger
	tracer     trace.Tracer
	metrics    *telemetry.APIMetrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithPrefix overrides DefaultPrefix. An empty prefix is allowed.
func WithPrefix(prefix string) ClientOption {
	return func(c *Client) {
		c.prefix = "/" + strings.Trim(prefix, "/")
		if c.prefix == "/" {
			c.prefix = ""
		}
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithTokenSource(ts TokenSource) ClientOption {
	return func(c *Client) {
		c.tokens = ts
	}
}

func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger.OrNoOp(l).WithComponent("cart/client")
	}
}

func WithTracer(t trace.Tracer) ClientOption {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

func WithMetrics(m *telemetry.APIMetrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a client for the backend at baseURL. A nil guest store
// keeps the guest cart id in memory.
func NewClient(baseURL string, guest *GuestCartIDStore, opts ...ClientOption) *Client {
	if guest == nil {
		guest = NewGuestCartIDStore(storage.NewMemoryStorage(nil), DefaultGuestCartKey, nil)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		prefix:     DefaultPrefix,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		guest:      guest,
		logger:     (&logger.NoOpLogger{}).WithComponent("cart/client"),
		tracer:     otel.Tracer(telemetry.InstrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig creates a client with a traced HTTP transport and the
// configured prefix, timeout and auth token.
func NewClientFromConfig(cfg config.APIConfig, guest *GuestCartIDStore, log logger.Logger, opts ...ClientOption) *Client {
	base := []ClientOption{
		WithPrefix(cfg.Prefix),
		WithHTTPClient(telemetry.NewTracedHTTPClient(nil, cfg.Timeout)),
		WithLogger(log),
	}
	if cfg.AuthToken != "" {
		base = append(base, WithTokenSource(StaticToken(cfg.AuthToken)))
	}
	return NewClient(cfg.BaseURL, guest, append(base, opts...)...)
}

// GetOrCreateCart returns the current cart, creating one lazily on the
// backend. The returned id is stored as the guest cart id if none is stored.
func (c *Client) GetOrCreateCart(ctx context.Context) (*Cart, error) {
	cart, err := c.do(ctx, OpGetOrCreateCart, http.MethodGet, "/carts", nil)
	if err != nil {
		return nil, err
	}
	c.rememberGuestCart(ctx, cart)
	return cart, nil
}

// AddItemToCart adds quantity units of a variant. Stock and variant checks
// are the backend's; its errors are returned unchanged.
func (c *Client) AddItemToCart(ctx context.Context, variantID string, quantity int) (*Cart, error) {
	cart, err := c.do(ctx, OpAddItemToCart, http.MethodPost, "/carts/items", itemRequest{
		VariantID: variantID,
		Quantity:  quantity,
	})
	if err != nil {
		return nil, err
	}
	c.rememberGuestCart(ctx, cart)
	return cart, nil
}

// UpdateCartItem sets a line's quantity, or switches it to another variant
// of the same product.
func (c *Client) UpdateCartItem(ctx context.Context, itemID, variantID string, quantity int) (*Cart, error) {
	return c.do(ctx, OpUpdateCartItem, http.MethodPut, "/carts/items/"+url.PathEscape(itemID), itemRequest{
		VariantID: variantID,
		Quantity:  quantity,
	})
}

func (c *Client) RemoveItemFromCart(ctx context.Context, itemID string) (*Cart, error) {
	return c.do(ctx, OpRemoveItemFromCart, http.MethodDelete, "/carts/items/"+url.PathEscape(itemID), nil)
}

// RemoveAllItems empties the cart.
func (c *Client) RemoveAllItems(ctx context.Context) (*Cart, error) {
	return c.do(ctx, OpRemoveAllItems, http.MethodDelete, "/carts/items", nil)
}

// MergeCart folds the guest cart into the signed-in customer's cart. It
// fails with ErrNotAuthenticated, without a request, when no token is
// available. On success the stored guest cart id is always cleared.
func (c *Client) MergeCart(ctx context.Context) (*Cart, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, &APIError{Op: OpMergeCart, Method: http.MethodPost, Path: "/carts/merge", Err: fmt.Errorf("%w: %w", ErrNotAuthenticated, err)}
	}
	if token == "" {
		return nil, &APIError{Op: OpMergeCart, Method: http.MethodPost, Path: "/carts/merge", Err: ErrNotAuthenticated}
	}

	cart, err := c.do(ctx, OpMergeCart, http.MethodPost, "/carts/merge", nil)
	if err != nil {
		return nil, err
	}

	if err := c.guest.Clear(ctx); err != nil {
		c.logger.Error("Failed to clear guest cart id after merge", map[string]interface{}{
			"cart_id": cart.ID,
			"error":   err,
		})
	}
	return cart, nil
}

func (c *Client) rememberGuestCart(ctx context.Context, cart *Cart) {
	stored, err := c.guest.SetIfAbsent(ctx, cart.ID)
	if err != nil {
		c.logger.Warn("Failed to store guest cart id", map[string]interface{}{
			"cart_id": cart.ID,
			"error":   err,
		})
		return
	}
	if stored {
		c.logger.Info("Associated guest cart", telemetry.EnrichLogFields(ctx, map[string]interface{}{
			"cart_id": cart.ID,
		}))
	}
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	return c.tokens.Token(ctx)
}

// do performs one request and decodes the cart snapshot in the response.
func (c *Client) do(ctx context.Context, op, method, path string, body interface{}) (cart *Cart, err error) {
	ctx, span := c.tracer.Start(ctx, "cart."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cart.operation", op),
			attribute.String("http.method", method),
			attribute.String("http.route", path),
		),
	)
	defer span.End()

	if telemetry.GetRequestID(ctx) == "" {
		ctx, _ = telemetry.WithRequestID(ctx)
	}

	start := time.Now()
	defer func() {
		c.metrics.Record(ctx, op, time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, ErrorMessage(op, err))
		} else {
			span.SetAttributes(attribute.String("cart.id", cart.ID))
			span.SetStatus(codes.Ok, "")
		}
	}()

	req, err := c.newRequest(ctx, op, method, path, body)
	if err != nil {
		return nil, err
	}

	guestID, gerr := c.guest.Get(ctx)
	if gerr != nil {
		c.logger.Warn("Guest cart id unavailable, sending request without it", map[string]interface{}{
			"operation": op,
			"error":     gerr,
		})
	}
	if guestID != "" {
		req.Header.Set(HeaderCartID, guestID)
		span.SetAttributes(attribute.Bool("cart.guest_id_present", true))
	}

	token, terr := c.token(ctx)
	if terr != nil {
		return nil, &APIError{Op: op, Method: method, Path: path, Err: fmt.Errorf("%w: %w", ErrNotAuthenticated, terr)}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	telemetry.InjectCorrelationHeaders(ctx, req.Header)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	c.logger.Debug("Calling cart API", telemetry.EnrichLogFields(ctx, map[string]interface{}{
		"operation": op,
		"method":    method,
		"path":      path,
	}))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Op: op, Method: method, Path: path, Err: fmt.Errorf("%w: %w", ErrTransport, err)}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp)
		apiErr.Op, apiErr.Method, apiErr.Path = op, method, path
		c.logger.Warn("Cart API returned an error", telemetry.EnrichLogFields(ctx, map[string]interface{}{
			"operation":   op,
			"status_code": resp.StatusCode,
			"message":     apiErr.Message,
		}))
		return nil, apiErr
	}

	cart = &Cart{}
	if err := json.NewDecoder(resp.Body).Decode(cart); err != nil {
		return nil, &APIError{
			Op:         op,
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: invalid cart response: %w", ErrBackend, err),
		}
	}
	return cart, nil
}

func (c *Client) newRequest(ctx context.Context, op, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &APIError{Op: op, Method: method, Path: path, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+c.prefix+path, reader)
	if err != nil {
		return nil, &APIError{Op: op, Method: method, Path: path, Err: fmt.Errorf("%w: %w", ErrTransport, err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// errorBody covers the shapes backends use for error responses.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Err:        statusError(resp.StatusCode),
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var body errorBody
	if json.Unmarshal(data, &body) == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
		return apiErr
	}

	// Plain-text bodies such as those written by http.Error.
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
