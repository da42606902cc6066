package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/itsneelabh/gocart/internal/version"
	"github.com/itsneelabh/gocart/pkg/cart"
	"github.com/itsneelabh/gocart/pkg/config"
	"github.com/itsneelabh/gocart/pkg/logger"
	"github.com/itsneelabh/gocart/pkg/storage"
	"github.com/itsneelabh/gocart/pkg/telemetry"
)

var errUsage = errors.New("usage: gocart [flags] <fetch|add|update|remove|clear|merge|total> [args]")

// output is what every command prints on success.
type output struct {
	Cart   *cart.Cart  `json:"cart"`
	Totals cart.Totals `json:"totals"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("gocart", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configFile  = fs.String("config", "", "JSON or YAML config file")
		apiURL      = fs.String("api", "", "cart backend base URL")
		token       = fs.String("token", "", "bearer token of the signed-in customer")
		storageKind = fs.String("storage", "", "guest id storage: memory, file or redis")
		location    = fs.String("storage-location", "", "file path or Redis URL for -storage")
		logLevel    = fs.String("log-level", "", "debug, info, warn or error")
		trace       = fs.Bool("trace", false, "print spans to stderr")
		showVersion = fs.Bool("version", false, "print version and exit")
	)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *showVersion {
		fmt.Fprintln(stdout, "gocart", version.String())
		return nil
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, errUsage)
		return errUsage
	}

	var opts []config.Option
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	if *apiURL != "" {
		opts = append(opts, config.WithAPIURL(*apiURL))
	}
	if *token != "" {
		opts = append(opts, config.WithAuthToken(*token))
	}
	if *storageKind != "" {
		opts = append(opts, config.WithStorage(*storageKind, *location))
	}
	if *logLevel != "" {
		opts = append(opts, config.WithLogLevel(*logLevel))
	}
	if *trace {
		opts = append(opts, config.WithTelemetry("stdout", ""))
	}

	cfg, err := config.NewConfig(opts...)
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Service: cfg.Logging.Service,
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  stderr,
	})

	provider, err := telemetry.Setup(ctx, cfg.Telemetry, stderr)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to flush telemetry", map[string]interface{}{"error": err})
		}
	}()

	metrics, err := telemetry.NewAPIMetrics(provider.Meter)
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.Storage, log)
	if err != nil {
		return err
	}
	defer store.Close()

	guest := cart.NewGuestCartIDStore(store, cfg.Storage.GuestCartKey, log)
	client := cart.NewClientFromConfig(cfg.API, guest, log,
		cart.WithTracer(provider.Tracer),
		cart.WithMetrics(metrics),
	)
	cartStore := cart.NewStore(client, guest, log)

	snapshot, err := dispatch(ctx, cartStore, fs.Arg(0), fs.Args()[1:])
	if err != nil {
		if msg := cartStore.State().Error; msg != "" {
			log.Debug("Command failed", map[string]interface{}{"command": fs.Arg(0), "error": err})
			return errors.New(msg)
		}
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output{Cart: snapshot, Totals: cart.CalculateCartTotal(snapshot)})
}

// dispatch runs one command against the store. FetchCart and MergeCart do
// not return errors, so their outcome is read back from the store state.
func dispatch(ctx context.Context, s *cart.Store, cmd string, args []string) (*cart.Cart, error) {
	switch cmd {
	case "fetch", "total":
		if len(args) != 0 {
			return nil, errUsage
		}
		s.FetchCart(ctx)
		return fromState(s)

	case "merge":
		if len(args) != 0 {
			return nil, errUsage
		}
		s.MergeCart(ctx)
		return fromState(s)

	case "add":
		if len(args) < 1 || len(args) > 2 {
			return nil, errUsage
		}
		qty := 1
		if len(args) == 2 {
			n, err := parseQuantity(args[1])
			if err != nil {
				return nil, err
			}
			qty = n
		}
		return s.AddToCart(ctx, args[0], qty)

	case "update":
		if len(args) != 3 {
			return nil, errUsage
		}
		qty, err := parseQuantity(args[2])
		if err != nil {
			return nil, err
		}
		return s.UpdateCartItem(ctx, args[0], args[1], qty)

	case "remove":
		if len(args) != 1 {
			return nil, errUsage
		}
		return s.RemoveFromCart(ctx, args[0])

	case "clear":
		if len(args) != 0 {
			return nil, errUsage
		}
		return s.ClearCart(ctx)
	}
	return nil, fmt.Errorf("unknown command %q: %w", cmd, errUsage)
}

func fromState(s *cart.Store) (*cart.Cart, error) {
	state := s.State()
	if state.Error != "" {
		return nil, errors.New(state.Error)
	}
	return state.Cart, nil
}

func parseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	return n, nil
}
