// Package config holds the configuration for gocart clients, storage, logging,
// telemetry and the mock backend.
//
// Configuration is resolved in three layers, lowest priority first:
//  1. Default values (DefaultConfig)
//  2. Environment variables (LoadFromEnv)
//  3. Functional options, including WithConfigFile
//
// NewConfig applies the layers in order and validates the result:
//
//	cfg, err := config.NewConfig(
//	    config.WithAPIURL("https://shop.example.com"),
//	    config.WithStorage("file", "/home/me/.gocart/state.json"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")
)

// ConfigError describes a configuration problem. It wraps one of the
// sentinel errors above so callers can use errors.Is.
type ConfigError struct {
	Op      string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Config is the root configuration.
type Config struct {
	API         APIConfig         `json:"api" yaml:"api"`
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
	Telemetry   TelemetryConfig   `json:"telemetry" yaml:"telemetry"`
	MockBackend MockBackendConfig `json:"mock_backend" yaml:"mock_backend"`
}

// APIConfig describes how to reach the cart backend.
type APIConfig struct {
	BaseURL   string        `json:"base_url" yaml:"base_url" env:"GOCART_API_URL"`
	Prefix    string        `json:"prefix" yaml:"prefix" env:"GOCART_API_PREFIX" default:"/api/v1"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout" env:"GOCART_API_TIMEOUT" default:"15s"`
	AuthToken string        `json:"auth_token" yaml:"auth_token" env:"GOCART_AUTH_TOKEN"`
}

// StorageConfig selects where the guest cart identifier is persisted.
// Provider is one of "memory", "file" or "redis".
type StorageConfig struct {
	Provider     string `json:"provider" yaml:"provider" env:"GOCART_STORAGE" default:"file"`
	Path         string `json:"path" yaml:"path" env:"GOCART_STORAGE_PATH"`
	RedisURL     string `json:"redis_url" yaml:"redis_url" env:"GOCART_REDIS_URL,REDIS_URL"`
	Namespace    string `json:"namespace" yaml:"namespace" env:"GOCART_STORAGE_NAMESPACE" default:"gocart"`
	GuestCartKey string `json:"guest_cart_key" yaml:"guest_cart_key" default:"guestCartId"`
}

type LoggingConfig struct {
	Level   string `json:"level" yaml:"level" env:"GOCART_LOG_LEVEL" default:"info"`
	Format  string `json:"format" yaml:"format" env:"GOCART_LOG_FORMAT" default:"json"`
	Service string `json:"service" yaml:"service" default:"gocart"`
}

// TelemetryConfig controls tracing export. Exporter is "otlp" or "stdout".
type TelemetryConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled" env:"GOCART_TELEMETRY_ENABLED" default:"false"`
	Exporter     string  `json:"exporter" yaml:"exporter" env:"GOCART_TELEMETRY_EXPORTER" default:"otlp"`
	Endpoint     string  `json:"endpoint" yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string  `json:"service_name" yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	SamplingRate float64 `json:"sampling_rate" yaml:"sampling_rate" default:"1.0"`
	Insecure     bool    `json:"insecure" yaml:"insecure" default:"true"`
}

type MockBackendConfig struct {
	Port        int  `json:"port" yaml:"port" env:"GOCART_MOCK_PORT" default:"8089"`
	SeedCatalog bool `json:"seed_catalog" yaml:"seed_catalog" default:"true"`
}

// Option is a functional option applied on top of defaults and environment.
type Option func(*Config) error

// DefaultConfig returns a configuration with defaults filled in. The file
// storage path defaults to ~/.gocart/storage.json.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8089",
			Prefix:  "/api/v1",
			Timeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			Provider:     "file",
			Path:         defaultStoragePath(),
			Namespace:    "gocart",
			GuestCartKey: "guestCartId",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "json",
			Service: "gocart",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			Exporter:     "otlp",
			SamplingRate: 1.0,
			Insecure:     true,
		},
		MockBackend: MockBackendConfig{
			Port:        8089,
			SeedCatalog: true,
		},
	}
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "gocart", "storage.json")
	}
	return filepath.Join(home, ".gocart", "storage.json")
}

// LoadFromEnv overrides fields from environment variables. Unparseable
// numeric or duration values are reported as errors.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("GOCART_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("GOCART_API_PREFIX"); v != "" {
		c.API.Prefix = v
	}
	if v := os.Getenv("GOCART_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &ConfigError{Op: "LoadFromEnv", Message: fmt.Sprintf("invalid GOCART_API_TIMEOUT %q", v), Err: ErrInvalidConfiguration}
		}
		c.API.Timeout = d
	}
	if v := os.Getenv("GOCART_AUTH_TOKEN"); v != "" {
		c.API.AuthToken = v
	}

	if v := os.Getenv("GOCART_STORAGE"); v != "" {
		c.Storage.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("GOCART_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("GOCART_REDIS_URL"); v != "" {
		c.Storage.RedisURL = v
	} else if v := os.Getenv("REDIS_URL"); v != "" {
		c.Storage.RedisURL = v
	}
	if v := os.Getenv("GOCART_STORAGE_NAMESPACE"); v != "" {
		c.Storage.Namespace = v
	}

	if v := os.Getenv("GOCART_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GOCART_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv("GOCART_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := os.Getenv("GOCART_TELEMETRY_EXPORTER"); v != "" {
		c.Telemetry.Exporter = strings.ToLower(v)
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true // an endpoint implies export
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	}

	if v := os.Getenv("GOCART_MOCK_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Op: "LoadFromEnv", Message: fmt.Sprintf("invalid GOCART_MOCK_PORT %q", v), Err: ErrInvalidConfiguration}
		}
		c.MockBackend.Port = port
	}

	return nil
}

// LoadFromFile merges a JSON or YAML file into the configuration. Durations
// in YAML are written as strings ("15s"); in JSON as nanoseconds.
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return &ConfigError{Op: "LoadFromFile", Message: fmt.Sprintf("unsupported config file extension %q", ext), Err: ErrInvalidConfiguration}
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 -- operator supplied path
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return &ConfigError{Op: "LoadFromFile", Message: fmt.Sprintf("failed to parse JSON config: %v", err), Err: ErrInvalidConfiguration}
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return &ConfigError{Op: "LoadFromFile", Message: fmt.Sprintf("failed to parse YAML config: %v", err), Err: ErrInvalidConfiguration}
		}
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return &ConfigError{Op: "Config.Validate", Message: "api base URL is required", Err: ErrMissingConfiguration}
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Op: "Config.Validate", Message: fmt.Sprintf("invalid api base URL %q", c.API.BaseURL), Err: ErrInvalidConfiguration}
	}
	if c.API.Timeout < 0 {
		return &ConfigError{Op: "Config.Validate", Message: "api timeout must not be negative", Err: ErrInvalidConfiguration}
	}

	switch c.Storage.Provider {
	case "memory":
	case "file":
		if c.Storage.Path == "" {
			return &ConfigError{Op: "Config.Validate", Message: "storage path is required for file storage", Err: ErrMissingConfiguration}
		}
	case "redis":
		if c.Storage.RedisURL == "" {
			return &ConfigError{Op: "Config.Validate", Message: "redis URL is required for redis storage", Err: ErrMissingConfiguration}
		}
	default:
		return &ConfigError{Op: "Config.Validate", Message: fmt.Sprintf("unknown storage provider %q", c.Storage.Provider), Err: ErrInvalidConfiguration}
	}
	if c.Storage.GuestCartKey == "" {
		return &ConfigError{Op: "Config.Validate", Message: "guest cart key is required", Err: ErrMissingConfiguration}
	}

	if c.Telemetry.Enabled {
		switch c.Telemetry.Exporter {
		case "stdout":
		case "otlp":
			if c.Telemetry.Endpoint == "" {
				return &ConfigError{Op: "Config.Validate", Message: "telemetry endpoint is required for the otlp exporter", Err: ErrMissingConfiguration}
			}
		default:
			return &ConfigError{Op: "Config.Validate", Message: fmt.Sprintf("unknown telemetry exporter %q", c.Telemetry.Exporter), Err: ErrInvalidConfiguration}
		}
		if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
			return &ConfigError{Op: "Config.Validate", Message: "telemetry sampling rate must be within [0, 1]", Err: ErrInvalidConfiguration}
		}
	}

	if c.MockBackend.Port < 1 || c.MockBackend.Port > 65535 {
		return &ConfigError{Op: "Config.Validate", Message: fmt.Sprintf("invalid mock backend port: %d", c.MockBackend.Port), Err: ErrInvalidConfiguration}
	}

	return nil
}

// parseBool accepts "true", "1", "yes" and "on" (case-insensitive).
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WithAPIURL sets the backend base URL, e.g. "https://shop.example.com".
func WithAPIURL(baseURL string) Option {
	return func(c *Config) error {
		c.API.BaseURL = strings.TrimRight(baseURL, "/")
		return nil
	}
}

// WithAPIPrefix sets the versioned REST prefix. An empty prefix is allowed.
func WithAPIPrefix(prefix string) Option {
	return func(c *Config) error {
		c.API.Prefix = prefix
		return nil
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout < 0 {
			return &ConfigError{Op: "WithTimeout", Message: "timeout must not be negative", Err: ErrInvalidConfiguration}
		}
		c.API.Timeout = timeout
		return nil
	}
}

// WithAuthToken sets the bearer token attached to backend requests.
func WithAuthToken(token string) Option {
	return func(c *Config) error {
		c.API.AuthToken = token
		return nil
	}
}

// WithStorage selects the storage provider. location is the file path for
// "file", the Redis URL for "redis" and ignored for "memory".
func WithStorage(provider, location string) Option {
	return func(c *Config) error {
		c.Storage.Provider = strings.ToLower(provider)
		switch c.Storage.Provider {
		case "file":
			c.Storage.Path = location
		case "redis":
			c.Storage.RedisURL = location
		}
		return nil
	}
}

func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

// WithTelemetry enables trace export. exporter is "otlp" or "stdout".
func WithTelemetry(exporter, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = true
		c.Telemetry.Exporter = strings.ToLower(exporter)
		c.Telemetry.Endpoint = endpoint
		return nil
	}
}

func WithMockBackendPort(port int) Option {
	return func(c *Config) error {
		if port < 1 || port > 65535 {
			return &ConfigError{Op: "WithMockBackendPort", Message: fmt.Sprintf("invalid port: %d", port), Err: ErrInvalidConfiguration}
		}
		c.MockBackend.Port = port
		return nil
	}
}

// WithConfigFile merges a JSON or YAML file. Options listed after it win.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// NewConfig builds a validated configuration from defaults, environment and opts.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.Logging.Service
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
