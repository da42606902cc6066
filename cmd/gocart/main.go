// Command gocart drives a storefront cart from the terminal.
//
//	gocart [flags] fetch
//	gocart [flags] add <variantId> [quantity]
//	gocart [flags] update <itemId> <variantId> <quantity>
//	gocart [flags] remove <itemId>
//	gocart [flags] clear
//	gocart [flags] merge
//	gocart [flags] total
//
// The guest cart id is kept in the configured storage between runs, so a
// sequence of commands works on the same cart.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/itsneelabh/gocart/internal/shutdown"
)

func main() {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "gocart:", err)
		cancel()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, errUsage) {
		return 2
	}
	return 1
}
