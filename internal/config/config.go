package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	Guardrail     GuardrailConfig
	Idempotency   IdempotencyConfig
	ActorCache    ActorCacheConfig
	RateLimit     RateLimitConfig
	Auth          AuthConfig
	Platform      PlatformConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	APIVersion   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// GuardrailConfig holds the validation pipeline configuration
type GuardrailConfig struct {
	Mode             string // warn or enforce
	SmartCodePattern string // empty uses the built-in grammar
}

// IdempotencyConfig holds idempotent-write configuration
type IdempotencyConfig struct {
	TTL time.Duration
}

// ActorCacheConfig holds the actor-context (membership) cache configuration
type ActorCacheConfig struct {
	TTL          time.Duration
	MaxCostBytes int64
}

// RateLimitConfig holds per-operation-class rate limits, requests per minute
type RateLimitConfig struct {
	ReadPerMinute      int
	WritePerMinute     int
	FinancialPerMinute int
	Burst              int
}

// AuthConfig holds actor-token verification configuration. Tokens are
// issued by the external identity provider; this service only verifies.
type AuthConfig struct {
	TokenSecret string
	TokenIssuer string
}

// PlatformConfig holds the well-known platform tenant identifier
type PlatformConfig struct {
	OrgID uuid.UUID
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	platformOrgID, err := uuid.Parse(getEnv("PLATFORM_ORG_ID", "00000000-0000-0000-0000-000000000000"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM_ORG_ID: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			APIVersion:   getEnv("API_VERSION", "v1"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "heracore"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "heracore"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "heracore"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		Guardrail: GuardrailConfig{
			Mode:             getEnv("GUARDRAIL_MODE", "enforce"),
			SmartCodePattern: getEnv("SMART_CODE_PATTERN", ""),
		},
		Idempotency: IdempotencyConfig{
			TTL: time.Duration(parseInt("IDEMPOTENCY_TTL_SECONDS", 86400)) * time.Second,
		},
		ActorCache: ActorCacheConfig{
			TTL:          time.Duration(parseInt("ACTOR_CACHE_TTL_SECONDS", 300)) * time.Second,
			MaxCostBytes: int64(parseInt("ACTOR_CACHE_MAX_BYTES", 16<<20)),
		},
		RateLimit: RateLimitConfig{
			ReadPerMinute:      parseInt("RATELIMIT_READ_RPM", 600),
			WritePerMinute:     parseInt("RATELIMIT_WRITE_RPM", 120),
			FinancialPerMinute: parseInt("RATELIMIT_FINANCIAL_RPM", 60),
			Burst:              parseInt("RATELIMIT_BURST", 20),
		},
		Auth: AuthConfig{
			TokenSecret: getEnv("AUTH_TOKEN_SECRET", ""),
			TokenIssuer: getEnv("AUTH_TOKEN_ISSUER", "heracore-identity"),
		},
		Platform: PlatformConfig{
			OrgID: platformOrgID,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("AUTH_TOKEN_SECRET is required")
	}
	if c.Guardrail.Mode != "warn" && c.Guardrail.Mode != "enforce" {
		return fmt.Errorf("GUARDRAIL_MODE must be warn or enforce, got %q", c.Guardrail.Mode)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
