// Command gocart-mock serves an in-memory cart backend for local
// development.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/itsneelabh/gocart/internal/mockbackend"
	"github.com/itsneelabh/gocart/internal/port"
	"github.com/itsneelabh/gocart/internal/shutdown"
	"github.com/itsneelabh/gocart/pkg/config"
	"github.com/itsneelabh/gocart/pkg/logger"
	"github.com/itsneelabh/gocart/pkg/telemetry"
)

func main() {
	listenPort := flag.Int("port", 0, "listen port (default from GOCART_MOCK_PORT or 8089)")
	configFile := flag.String("config", "", "JSON or YAML config file")
	flag.Parse()

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := run(ctx, *configFile, *listenPort); err != nil {
		fmt.Fprintln(os.Stderr, "gocart-mock:", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile string, listenPort int) error {
	var opts []config.Option
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if listenPort != 0 {
		opts = append(opts, config.WithMockBackendPort(listenPort))
	}

	cfg, err := config.NewConfig(opts...)
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Service: "gocart-mock",
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
	})

	provider, err := telemetry.Setup(ctx, cfg.Telemetry, os.Stderr)
	if err != nil {
		return err
	}
	defer provider.Shutdown(context.Background())

	gin.SetMode(gin.ReleaseMode)

	catalog := mockbackend.NewCatalog()
	if cfg.MockBackend.SeedCatalog {
		catalog = mockbackend.SeedCatalog()
	}

	srv := mockbackend.NewServer(mockbackend.NewBackend(catalog), mockbackend.Options{
		Prefix:      cfg.API.Prefix,
		ServiceName: "gocart-mock",
		Logger:      log,
	})
	ports := port.NewManager(port.Options{Port: cfg.MockBackend.Port}, log)
	l, err := ports.Listen()
	if err != nil {
		return err
	}
	log.Info("Mock cart backend ready", map[string]interface{}{
		"url":    ports.PublicURL(l.Addr().(*net.TCPAddr).Port) + cfg.API.Prefix,
		"prefix": cfg.API.Prefix,
	})
	return srv.Serve(ctx, l)
}
