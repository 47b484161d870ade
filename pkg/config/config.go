// Package config loads application configuration from environment variables.
//
// Secrets (Stripe keys, JWT signing secret, database URL) are required: the
// process must fail fast at startup rather than run with webhook verification
// or token signing silently disabled.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Stripe        StripeConfig
	Auth          AuthConfig
	Redis         RedisConfig
	Observability ObservabilityConfig

	// ClientURL is the public URL of the dashboard frontend, used to build
	// checkout success/cancel and billing portal return URLs.
	ClientURL string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// StripeConfig holds payment provider credentials
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// AuthConfig holds session token configuration
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// RedisConfig holds the optional webhook dedup cache configuration.
// An empty URL disables the cache entirely.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	DedupTTL time.Duration
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       string
	LogJSON        bool
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("VFIN_HOST", "0.0.0.0"),
			Port:            getEnv("VFIN_PORT", "8080"),
			ReadTimeout:     getEnvDuration("VFIN_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("VFIN_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("VFIN_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("VFIN_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("VFIN_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:         getEnv("VFIN_POSTGRES_URL", ""),
			MaxConns:    getEnvInt("VFIN_POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("VFIN_POSTGRES_MIN_CONNS", 2),
			Timeout:     getEnvDuration("VFIN_POSTGRES_TIMEOUT", 10*time.Second),
			MaxLifetime: getEnvDuration("VFIN_POSTGRES_MAX_LIFETIME", 30*time.Minute),
			MaxIdleTime: getEnvDuration("VFIN_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("VFIN_JWT_SECRET", ""),
			TokenTTL:  getEnvDuration("VFIN_TOKEN_TTL", 168*time.Hour),
		},
		Redis: RedisConfig{
			URL:      getEnv("VFIN_REDIS_URL", ""),
			Password: getEnv("VFIN_REDIS_PASSWORD", ""),
			DB:       getEnvInt("VFIN_REDIS_DB", 0),
			DedupTTL: getEnvDuration("VFIN_WEBHOOK_DEDUP_TTL", 24*time.Hour),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("VFIN_LOG_LEVEL", "info"),
			LogJSON:        getEnvBool("VFIN_LOG_JSON", true),
			MetricsEnabled: getEnvBool("VFIN_METRICS_ENABLED", true),
		},
		ClientURL: getEnv("VFIN_CLIENT_URL", ""),
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

	// Every secret below gates a security boundary. Starting without one
	// would mean unverifiable webhooks or unsigned session tokens.
	if c.Database.URL == "" {
		return fmt.Errorf("VFIN_POSTGRES_URL is required")
	}
	if c.Stripe.SecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("VFIN_JWT_SECRET is required")
	}
	if c.ClientURL == "" {
		return fmt.Errorf("VFIN_CLIENT_URL is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
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

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
