package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/itsneelabh/gocart/pkg/logger"
	"github.com/itsneelabh/gocart/pkg/storage"
)

// DefaultGuestCartKey is the well-known storage key of the guest cart id.
const DefaultGuestCartKey = "guestCartId"

// GuestCartIDStore persists the guest cart identifier. It does no locking
// across processes; concurrent writers race and the last write wins.
type GuestCartIDStore struct {
	storage storage.Storage
	key     string
	logger  logger.Logger
}

func NewGuestCartIDStore(s storage.Storage, key string, log logger.Logger) *GuestCartIDStore {
	if key == "" {
		key = DefaultGuestCartKey
	}
	return &GuestCartIDStore{
		storage: s,
		key:     key,
		logger:  logger.OrNoOp(log).WithComponent("cart/guest"),
	}
}

// Get returns the stored identifier, or "" when none is stored.
func (g *GuestCartIDStore) Get(ctx context.Context) (string, error) {
	id, err := g.storage.Get(ctx, g.key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read guest cart id: %w", err)
	}
	return id, nil
}

// SetIfAbsent stores id unless an identifier is already present. It reports
// whether id was written.
func (g *GuestCartIDStore) SetIfAbsent(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}

	current, err := g.Get(ctx)
	if err != nil {
		return false, err
	}
	if current != "" {
		return false, nil
	}

	if err := g.storage.Set(ctx, g.key, id, 0); err != nil {
		return false, fmt.Errorf("write guest cart id: %w", err)
	}
	g.logger.Debug("Stored guest cart id", map[string]interface{}{
		"cart_id": id,
	})
	return true, nil
}

// Clear removes the stored identifier.
func (g *GuestCartIDStore) Clear(ctx context.Context) error {
	if err := g.storage.Delete(ctx, g.key); err != nil {
		return fmt.Errorf("clear guest cart id: %w", err)
	}
	g.logger.Debug("Cleared guest cart id", nil)
	return nil
}
