// Package storage provides the small key/value persistence layer gocart uses
// for client-side state such as the guest cart identifier.
//
// # Storage Interface
//
//	type Storage interface {
//	    Get(ctx context.Context, key string) (string, error)
//	    Set(ctx context.Context, key, value string, ttl time.Duration) error
//	    Delete(ctx context.Context, key string) error
//	    Exists(ctx context.Context, key string) (bool, error)
//	    Close() error
//	}
//
// Get on a missing or expired key returns ErrNotFound.
//
// # Backends
//
// MemoryStorage keeps values in process memory and is the default for tests.
//
// FileStorage persists values as a JSON object on disk, so a guest cart
// survives between CLI invocations the way browser local storage survives
// page reloads.
//
// RedisStorage stores values under namespaced keys ("<namespace>:<key>") and
// lets several processes share one guest session.
//
// Use New to build the backend selected in config.StorageConfig:
//
//	store, err := storage.New(cfg.Storage, log)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
// None of the backends coordinate writers across processes. Concurrent
// writers of the same key see last-write-wins behaviour.
package storage
