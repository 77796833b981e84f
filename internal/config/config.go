package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const minSessionSecret = 32

// Config holds all service configuration.
type Config struct {
	Server  ServerConfig
	Logger  LoggerConfig
	Catalog CatalogConfig
	Session SessionConfig
	Metrics MetricsConfig
	Limit   RateLimitConfig
}

type ServerConfig struct {
	Port int
}

type LoggerConfig struct {
	Level string
}

// CatalogConfig points at the upstream drink catalog.
type CatalogConfig struct {
	BaseURL    string
	Ingredient string
	Timeout    time.Duration
}

type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

type MetricsConfig struct {
	Enabled bool
	Token   string
}

// RateLimitConfig bounds how often one client may hit the product listing,
// which fans out to the upstream catalog on every call.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("PORT", 8080),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Catalog: CatalogConfig{
			BaseURL:    getEnv("CATALOG_URL", "https://www.thecocktaildb.com/api/json/v1/1"),
			Ingredient: getEnv("CATALOG_INGREDIENT", "lemon"),
			Timeout:    getEnvAsDuration("CATALOG_TIMEOUT", 10*time.Second),
		},
		Session: SessionConfig{
			Secret: os.Getenv("SESSION_SECRET"),
			TTL:    getEnvAsDuration("SESSION_TTL", 2*time.Hour),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Token:   os.Getenv("METRICS_TOKEN"),
		},
		Limit: RateLimitConfig{
			Requests: getEnvAsInt("RATE_LIMIT", 30),
			Window:   getEnvAsDuration("RATE_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks ranges and required values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Catalog.BaseURL == "" {
		return errors.New("catalog url is required")
	}
	if c.Catalog.Ingredient == "" {
		return errors.New("catalog ingredient is required")
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("invalid catalog timeout: %s", c.Catalog.Timeout)
	}

	if len(c.Session.Secret) < minSessionSecret {
		return fmt.Errorf("SESSION_SECRET is required and must be at least %d chars", minSessionSecret)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("invalid session ttl: %s", c.Session.TTL)
	}

	if c.Limit.Requests < 1 {
		return errors.New("rate limit must be at least 1")
	}
	if c.Limit.Window <= 0 {
		return fmt.Errorf("invalid rate window: %s", c.Limit.Window)
	}

	return nil
}

// Address returns the listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
