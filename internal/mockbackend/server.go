// Package mockbackend is an in-memory implementation of the cart REST
// contract for local development and end-to-end tests.
//
// Carts are looked up by the X-Cart-ID header for guests and by the bearer
// token for signed-in users (the token is the user id). Errors are JSON
// {"message": ..., "code": ...} bodies. Admin endpoints arm failures and
// expire or close carts:
//
//	POST /admin/inject-error        {"count": 2, "status": 503}
//	GET  /admin/status
//	POST /admin/reset
//	POST /admin/carts/:id/expire
//	POST /admin/carts/:id/convert
package mockbackend

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/itsneelabh/gocart/pkg/cart"
	"github.com/itsneelabh/gocart/pkg/logger"
	"github.com/itsneelabh/gocart/pkg/telemetry"
)

// Options configures a Server.
type Options struct {
	Prefix      string // defaults to cart.DefaultPrefix
	ServiceName string
	Logger      logger.Logger
}

// Server serves a Backend over HTTP.
type Server struct {
	backend *Backend
	faults  *Faults
	logger  logger.Logger
	handler http.Handler
}

func NewServer(backend *Backend, opts Options) *Server {
	if opts.Prefix == "" {
		opts.Prefix = cart.DefaultPrefix
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "gocart-mock"
	}

	s := &Server{
		backend: backend,
		faults:  &Faults{},
		logger:  logger.OrNoOp(opts.Logger).WithComponent("mockbackend"),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger(), s.faults.Middleware())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": opts.ServiceName})
	})

	admin := engine.Group("/admin")
	{
		admin.POST("/inject-error", s.faults.handleInject)
		admin.GET("/status", s.faults.handleStatus)
		admin.POST("/reset", s.faults.handleReset)
		admin.POST("/carts/:id/expire", s.expireCart)
		admin.POST("/carts/:id/convert", s.convertCart)
	}

	h := &handlers{backend: backend}
	api := engine.Group(opts.Prefix)
	{
		api.GET("/variants", h.listVariants)
		api.GET("/carts", h.getCart)
		api.POST("/carts/merge", h.merge)
		api.POST("/carts/items", h.addItem)
		api.DELETE("/carts/items", h.removeAll)
		api.PUT("/carts/items/:itemId", h.updateItem)
		api.DELETE("/carts/items/:itemId", h.removeItem)
	}

	s.handler = telemetry.TracingMiddleware(opts.ServiceName, "/health")(
		telemetry.CorrelationMiddleware(engine),
	)
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Backend() *Backend {
	return s.backend
}

func (s *Server) Faults() *Faults {
	return s.faults
}

// Serve handles connections on l until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Mock cart backend listening", map[string]interface{}{
			"addr": l.Addr().String(),
		})
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Shutting down mock cart backend", nil)
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

func (s *Server) expireCart(c *gin.Context) {
	if !s.backend.Expire(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Cart not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": c.Param("id")})
}

func (s *Server) convertCart(c *gin.Context) {
	if !s.backend.ConvertToOrder(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Cart not found"})
		return
	}
	snapshot, _ := s.backend.Cart(c.Param("id"))
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug("Handled request", telemetry.EnrichLogFields(c.Request.Context(), map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"has_cart_id": c.GetHeader(cart.HeaderCartID) != "",
		}))
	}
}
