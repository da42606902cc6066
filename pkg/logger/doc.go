// Package logger provides structured logging for gocart components.
//
// Every component in the module accepts a Logger and logs with a message plus
// a map of structured fields:
//
//	log.Info("Cart fetched", map[string]interface{}{
//	    "cart_id":    cart.ID,
//	    "item_count": len(cart.Items),
//	})
//
// # Implementations
//
// New returns a Logger backed by log/slog. The output format is selected with
// Options.Format:
//   - "json": one JSON object per line (default, suited to log aggregation)
//   - "text": key=value pairs for local development
//
// NoOpLogger discards everything and is the default when a component is
// constructed without a logger.
//
// # Child loggers
//
// WithField, WithFields and WithComponent return child loggers that carry
// persistent fields:
//
//	storeLog := log.WithComponent("cart/store")
//	storeLog.Debug("Action started", map[string]interface{}{"action": "add_to_cart"})
//
// # Levels
//
// Supported levels in order of severity: debug, info, warn, error. Unknown
// values fall back to info. SetLevel changes the level of a logger and every
// child created from it.
package logger
