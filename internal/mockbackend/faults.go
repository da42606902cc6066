package mockbackend

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// Faults makes the next N cart requests fail with a chosen status, for
// exercising client error paths.
type Faults struct {
	mu        sync.Mutex
	remaining int
	status    int
	message   string
	injected  int
}

// FaultStatus is the JSON view of the current fault configuration.
type FaultStatus struct {
	Remaining int    `json:"remaining"`
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Injected  int    `json:"injected"`
}

// FailNext arms n failures. A zero status means 500.
func (f *Faults) FailNext(n, status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if status == 0 {
		status = http.StatusInternalServerError
	}
	if message == "" {
		message = "Internal server error (simulated)"
	}
	f.remaining, f.status, f.message = n, status, message
}

func (f *Faults) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remaining, f.injected = 0, 0
}

func (f *Faults) Status() FaultStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FaultStatus{Remaining: f.remaining, Status: f.status, Message: f.message, Injected: f.injected}
}

// take consumes one armed failure.
func (f *Faults) take() (status int, message string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remaining <= 0 {
		return 0, "", false
	}
	f.remaining--
	f.injected++
	return f.status, f.message, true
}

// Middleware fails armed requests before they reach a handler. Admin and
// health endpoints are never failed.
func (f *Faults) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/admin") || path == "/health" {
			c.Next()
			return
		}

		if status, message, ok := f.take(); ok {
			c.AbortWithStatusJSON(status, gin.H{
				"message": message,
				"code":    "INJECTED_FAULT",
			})
			return
		}
		c.Next()
	}
}

type injectRequest struct {
	Count   int    `json:"count" binding:"required,min=1"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (f *Faults) handleInject(c *gin.Context) {
	var req injectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request: " + err.Error()})
		return
	}
	if req.Status != 0 && (req.Status < 400 || req.Status > 599) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "status must be a 4xx or 5xx code"})
		return
	}

	f.FailNext(req.Count, req.Status, req.Message)
	c.JSON(http.StatusOK, f.Status())
}

func (f *Faults) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, f.Status())
}

func (f *Faults) handleReset(c *gin.Context) {
	f.Reset()
	c.JSON(http.StatusOK, f.Status())
}
