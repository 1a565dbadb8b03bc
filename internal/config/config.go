// Package config loads the service configuration from environment variables,
// applies defaults and validates everything on startup.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"5m"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 5m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"5m"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers are
	// honored. Empty trusts the headers of every peer.
	TrustedProxies string `env:"SERVER_TRUSTED_PROXIES"`
}

// DatabaseConfig holds catalog database settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds validation run settings.
type ImportConfig struct {
	// EntityType is the entity whose attributes the product-type cache serves (default: catalog_product)
	EntityType string `env:"IMPORT_ENTITY_TYPE" default:"catalog_product"`

	// MultiValueSeparator splits multiselect cells (default: |)
	MultiValueSeparator string `env:"IMPORT_MULTI_VALUE_SEPARATOR" default:"|"`

	// EmptyValue marks a cell as explicitly empty (default: __EMPTY__VALUE__)
	EmptyValue string `env:"IMPORT_EMPTY_VALUE" default:"__EMPTY__VALUE__"`

	// OptionSortOrder is the sort order of created options (default: 100)
	OptionSortOrder int `env:"IMPORT_OPTION_SORT_ORDER" default:"100"`

	// MaxConcurrentRuns caps open runs (default: 10)
	MaxConcurrentRuns int `env:"IMPORT_MAX_CONCURRENT_RUNS" default:"10"`

	// MaxWaitTime is how long starting a run waits for a slot (default: 5s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"5s"`

	// RunTTL is how long an idle run is kept (default: 30m)
	RunTTL time.Duration `env:"IMPORT_RUN_TTL" default:"30m"`

	// ReapInterval is how often idle runs are checked (default: 1m)
	ReapInterval time.Duration `env:"IMPORT_REAP_INTERVAL" default:"1m"`

	// MaxFeedSize is the largest accepted request body in bytes (default: 50MB)
	MaxFeedSize int64 `env:"IMPORT_MAX_FEED_SIZE" default:"52428800"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
