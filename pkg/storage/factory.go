package storage

import (
	"fmt"

	"github.com/itsneelabh/gocart/pkg/config"
	"github.com/itsneelabh/gocart/pkg/logger"
)

// New builds the Storage selected by cfg.Provider.
func New(cfg config.StorageConfig, log logger.Logger) (Storage, error) {
	log = logger.OrNoOp(log)

	switch cfg.Provider {
	case "", "memory":
		return NewMemoryStorage(log), nil
	case "file":
		return NewFileStorage(cfg.Path, log)
	case "redis":
		store, err := NewRedisStorage(cfg.RedisURL, cfg.Namespace, log)
		if err != nil {
			return nil, err
		}
		log.Info("Using Redis storage", map[string]interface{}{
			"namespace": store.namespace,
		})
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage provider %q", config.ErrInvalidConfiguration, cfg.Provider)
	}
}
