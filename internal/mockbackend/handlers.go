package mockbackend

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/itsneelabh/gocart/pkg/cart"
)

type handlers struct {
	backend *Backend
}

type itemInput struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

// callerFrom reads the guest cart id and the bearer token. The mock treats
// the token itself as the user id.
func callerFrom(c *gin.Context) Caller {
	caller := Caller{GuestCartID: strings.TrimSpace(c.GetHeader(cart.HeaderCartID))}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		caller.UserID = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return caller
}

func respond(c *gin.Context, snapshot *cart.Cart, err error) {
	if err != nil {
		var be *Error
		if errors.As(err, &be) {
			c.JSON(be.Status, gin.H{"message": be.Message, "code": be.Code})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func bindItem(c *gin.Context) (itemInput, bool) {
	var in itemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body", "code": "INVALID_BODY"})
		return in, false
	}
	return in, true
}

// GET /carts
func (h *handlers) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, h.backend.GetOrCreate(callerFrom(c)))
}

// POST /carts/items
func (h *handlers) addItem(c *gin.Context) {
	in, ok := bindItem(c)
	if !ok {
		return
	}
	snapshot, err := h.backend.AddItem(callerFrom(c), in.VariantID, in.Quantity)
	respond(c, snapshot, err)
}

// PUT /carts/items/:itemId
func (h *handlers) updateItem(c *gin.Context) {
	in, ok := bindItem(c)
	if !ok {
		return
	}
	snapshot, err := h.backend.UpdateItem(callerFrom(c), c.Param("itemId"), in.VariantID, in.Quantity)
	respond(c, snapshot, err)
}

// DELETE /carts/items/:itemId
func (h *handlers) removeItem(c *gin.Context) {
	snapshot, err := h.backend.RemoveItem(callerFrom(c), c.Param("itemId"))
	respond(c, snapshot, err)
}

// DELETE /carts/items
func (h *handlers) removeAll(c *gin.Context) {
	snapshot, err := h.backend.RemoveAll(callerFrom(c))
	respond(c, snapshot, err)
}

// POST /carts/merge
func (h *handlers) merge(c *gin.Context) {
	snapshot, err := h.backend.Merge(callerFrom(c))
	respond(c, snapshot, err)
}

// GET /variants
func (h *handlers) listVariants(c *gin.Context) {
	c.JSON(http.StatusOK, h.backend.Catalog().List())
}
