package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Authz         AuthzConfig
	Redis         RedisConfig
	Crypto        CryptoConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	JWTSecret    string
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

// AuthzConfig holds access evaluator and decision cache configuration
type AuthzConfig struct {
	// CacheBackend selects the decision cache: "memory" or "redis".
	CacheBackend string
	CacheTTL     time.Duration
	CacheSize    int
}

// RedisConfig holds the shared decision cache backend configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CryptoConfig holds tenant boundary key material
type CryptoConfig struct {
	// MasterKey is the hex-encoded deployment master key for per-tenant
	// key derivation. At least 32 bytes once decoded.
	MasterKey string
	// TenantIDSecret keys the organization -> tenant id derivation.
	TenantIDSecret string
}

// AuditConfig holds audit trail retention configuration
type AuditConfig struct {
	Retention    time.Duration
	CleanupCron  string
	ReportWindow time.Duration
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
			JWTSecret:    getEnv("SERVER_JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "lexcore"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "lexcore"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Authz: AuthzConfig{
			CacheBackend: getEnv("AUTHZ_CACHE_BACKEND", "memory"),
			CacheTTL:     parseDuration("AUTHZ_CACHE_TTL", "15m"),
			CacheSize:    parseInt("AUTHZ_CACHE_SIZE", 65536),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt("REDIS_DB", 0),
		},
		Crypto: CryptoConfig{
			MasterKey:      getEnv("CRYPTO_MASTER_KEY", ""),
			TenantIDSecret: getEnv("CRYPTO_TENANT_ID_SECRET", ""),
		},
		Audit: AuditConfig{
			Retention:    parseDuration("AUDIT_RETENTION", "2160h"),
			CleanupCron:  getEnv("AUDIT_CLEANUP_CRON", "0 3 * * *"),
			ReportWindow: parseDuration("AUDIT_REPORT_WINDOW", "720h"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "lexcore"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 10)),
			Burst:             parseInt("RATELIMIT_BURST", 20),
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
	if c.Server.JWTSecret == "" {
		return fmt.Errorf("SERVER_JWT_SECRET is required")
	}
	if len(c.Server.JWTSecret) < 32 {
		return fmt.Errorf("SERVER_JWT_SECRET must be at least 32 bytes")
	}
	if c.Crypto.TenantIDSecret == "" {
		return fmt.Errorf("CRYPTO_TENANT_ID_SECRET is required")
	}
	if _, err := c.MasterKey(); err != nil {
		return err
	}
	switch c.Authz.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("AUTHZ_CACHE_BACKEND must be memory or redis, got %q", c.Authz.CacheBackend)
	}
	return nil
}

// MasterKey decodes the deployment master key.
func (c *Config) MasterKey() ([]byte, error) {
	if c.Crypto.MasterKey == "" {
		return nil, fmt.Errorf("CRYPTO_MASTER_KEY is required")
	}
	key, err := hex.DecodeString(c.Crypto.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("CRYPTO_MASTER_KEY must be hex encoded: %w", err)
	}
	if len(key) < 32 {
		return nil, fmt.Errorf("CRYPTO_MASTER_KEY must decode to at least 32 bytes")
	}
	return key, nil
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
