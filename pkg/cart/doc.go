// Package cart is the storefront side of the shopping cart: an HTTP client
// for the backend cart endpoints, the guest cart identifier kept in local
// storage, and an observable Store that UI code drives.
//
// # Client
//
// Client wraps the backend contract. Every request carries the stored guest
// cart identifier in the X-Cart-ID header. GetOrCreateCart and AddItemToCart
// store the returned cart id when none is stored yet; MergeCart clears it.
// The client never retries and never hides errors.
//
//	guest := cart.NewGuestCartIDStore(store, cart.DefaultGuestCartKey, log)
//	client := cart.NewClient("https://shop.example.com", guest,
//	    cart.WithPrefix("/api/v1"),
//	    cart.WithTokenSource(cart.StaticToken(token)),
//	)
//	c, err := client.AddItemToCart(ctx, "variant-1", 2)
//
// # Store
//
// Store holds {Cart, Loading, Error} and notifies subscribers after every
// change. Actions run concurrently without sequencing, so the last response
// to arrive wins. AddToCart retries once without the guest identifier when
// the first attempt fails. FetchCart and MergeCart only record failures in
// State().Error; the other actions also return them.
//
//	s := cart.NewStore(client, guest, log)
//	unsubscribe := s.Subscribe(func(st cart.State) { render(st) })
//	defer unsubscribe()
//	s.FetchCart(ctx)
//
// # Totals
//
// CalculateCartTotal is pure: subtotal is the sum of unit price times
// quantity, total equals subtotal, and item count is the sum of quantities.
package cart
