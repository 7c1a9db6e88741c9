package jobrepo

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for a jobrepo deployment.
type Config struct {
	// OperationTimeout bounds every repository operation. Zero disables
	// the bound and leaves deadlines to the caller's context.
	OperationTimeout time.Duration `yaml:"operation_timeout"`

	// Backend selects and addresses the persistence backend.
	Backend BackendConfig `yaml:"backend"`

	// API configures the read-only inspection server.
	API APIConfig `yaml:"api"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`
}

// BackendConfig addresses a persistence backend.
type BackendConfig struct {
	// Driver is one of memory, mongo, postgres, bun, sqlite, redis.
	Driver string `yaml:"driver"`

	// DSN is the driver-specific connection string.
	DSN string `yaml:"dsn"`

	// Database names the mongo database. Ignored by other drivers.
	Database string `yaml:"database"`

	// ConnectAttempts is how many times the CLI tries to reach an
	// unavailable backend before giving up.
	ConnectAttempts int `yaml:"connect_attempts"`
}

// APIConfig configures the HTTP inspection server.
type APIConfig struct {
	Addr string `yaml:"addr"`

	// RateLimit is the sustained request rate per second. Zero disables it.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		OperationTimeout: 10 * time.Second,
		Backend: BackendConfig{
			Driver:          "memory",
			Database:        "jobrepo",
			ConnectAttempts: 5,
		},
		API: APIConfig{
			Addr:      ":8080",
			RateLimit: 50,
			Burst:     100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig. An empty path returns
// the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("jobrepo: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("jobrepo: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for values no backend can accept.
func (c Config) Validate() error {
	switch c.Backend.Driver {
	case "memory":
	case "mongo", "postgres", "bun", "sqlite", "redis":
		if c.Backend.DSN == "" {
			return fmt.Errorf("%w: backend %s requires a dsn", ErrInvalidArgument, c.Backend.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown backend driver %q", ErrInvalidArgument, c.Backend.Driver)
	}
	if c.OperationTimeout < 0 {
		return fmt.Errorf("%w: operation_timeout must not be negative", ErrInvalidArgument)
	}
	return nil
}
