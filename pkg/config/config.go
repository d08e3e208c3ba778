// Package config loads service configuration from LATTICE_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/lattice/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Store         StoreConfig
	Sessions      SessionConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// StoreConfig selects and configures the graph store backend.
type StoreConfig struct {
	// Type is one of "memory", "postgres" or "surreal".
	Type string

	PostgresURL      string
	PostgresMaxConns int
	PostgresTimeout  time.Duration

	SurrealURL       string
	SurrealUser      string
	SurrealPassword  string
	SurrealNamespace string
	SurrealDatabase  string
}

// SessionConfig configures session storage and lifetime.
type SessionConfig struct {
	// Backend is "memory" or "redis".
	Backend       string
	RedisURL      string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	SweepSchedule string
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	BcryptCost int

	// RequireSourceView makes workspace copy demand view access to the
	// source workspace.
	RequireSourceView bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("LATTICE_HOST", "0.0.0.0"),
			Port:            getEnv("LATTICE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("LATTICE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("LATTICE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("LATTICE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("LATTICE_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodyBytes:    getEnvInt64("LATTICE_MAX_BODY_BYTES", 1<<20),
			HealthPort:      getEnv("LATTICE_HEALTH_PORT", "9090"),
		},
		Store: StoreConfig{
			Type:             getEnv("LATTICE_STORE_TYPE", "memory"),
			PostgresURL:      getEnv("LATTICE_POSTGRES_URL", ""),
			PostgresMaxConns: getEnvInt("LATTICE_POSTGRES_MAX_CONNS", 25),
			PostgresTimeout:  getEnvDuration("LATTICE_POSTGRES_TIMEOUT", 30*time.Second),
			SurrealURL:       getEnv("LATTICE_SURREAL_URL", ""),
			SurrealUser:      getEnv("LATTICE_SURREAL_USER", "root"),
			SurrealPassword:  getEnv("LATTICE_SURREAL_PASSWORD", ""),
			SurrealNamespace: getEnv("LATTICE_SURREAL_NAMESPACE", "lattice"),
			SurrealDatabase:  getEnv("LATTICE_SURREAL_DATABASE", "lattice"),
		},
		Sessions: SessionConfig{
			Backend:       getEnv("LATTICE_SESSION_BACKEND", "memory"),
			RedisURL:      getEnv("LATTICE_REDIS_URL", ""),
			RedisPassword: getEnv("LATTICE_REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("LATTICE_REDIS_DB", -1),
			TTL:           getEnvDuration("LATTICE_SESSION_TTL", 24*time.Hour),
			SweepSchedule: getEnv("LATTICE_SESSION_SWEEP_SCHEDULE", "@every 10m"),
		},
		Auth: AuthConfig{
			BcryptCost:        getEnvInt("LATTICE_BCRYPT_COST", 12),
			RequireSourceView: getEnvBool("LATTICE_COPY_REQUIRE_SOURCE_VIEW", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("LATTICE_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("LATTICE_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Store.Type {
	case "memory":
	case "postgres":
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres store")
		}
	case "surreal":
		if c.Store.SurrealURL == "" {
			return fmt.Errorf("surreal URL is required for surreal store")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be memory, postgres, or surreal)", c.Store.Type)
	}

	switch c.Sessions.Backend {
	case "memory":
	case "redis":
		if c.Sessions.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis session backend")
		}
	default:
		return fmt.Errorf("invalid session backend: %s (must be memory or redis)", c.Sessions.Backend)
	}
	if c.Sessions.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
