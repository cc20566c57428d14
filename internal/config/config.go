package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Authentication mode constants
const (
	AuthModeLocal   = "local"
	AuthModeHTTPAPI = "http_api"
)

// Cache backend constants
const (
	CacheBackendMemory     = "memory"
	CacheBackendRedis      = "redis"
	CacheBackendRedisAside = "redis_aside"
)

type Config struct {
	// Server settings
	ServerAddr string
	BaseURL    string

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string // Database connection string (DSN or path)

	// Token lifetimes
	AuthCodeTTL       time.Duration // authorization code lifetime (default: 10m)
	AccessTokenTTL    time.Duration // access token lifetime (default: 1h)
	RefreshTokenGrace time.Duration // how long expired access tokens with a
	// refresh token survive the sweep; zero disables refresh expiry entirely
	SweepInterval time.Duration // how often the expiry sweep runs (default: 1h)

	// Authentication
	AuthMode string // "local" or "http_api"

	// HTTP API Authentication
	HTTPAPIURL                string
	HTTPAPITimeout            time.Duration
	HTTPAPIInsecureSkipVerify bool
	HTTPAPIAuthMode           string // Authentication mode: "none", "simple", or "hmac"
	HTTPAPIAuthSecret         string // Shared secret for authentication
	HTTPAPIAuthHeader         string // Custom header name for simple mode (default: "X-API-Secret")
	HTTPAPIMaxRetries         int    // Maximum retry attempts (default: 3)
	HTTPAPIRetryDelay         time.Duration
	HTTPAPIMaxRetryDelay      time.Duration

	// Application cache
	CacheBackend  string // "memory", "redis", or "redis_aside"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	AppCacheTTL   time.Duration // how long resolved applications stay cached

	// Metrics
	MetricsEnabled bool
	MetricsToken   string // bearer token protecting /metrics; empty disables auth

	// Rate limiting
	RateLimitEnabled bool
	RateLimitPeriod  time.Duration
	RateLimitBurst   int64
	RateLimitRedis   bool // back the limiter with Redis instead of memory
}

// Load reads configuration from the environment, applying defaults.
// Malformed durations and unknown mode values are returned as errors so
// the process fails at startup instead of running with silently wrong
// token lifetimes.
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Determine database driver and DSN
	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "partnergate.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	cfg := &Config{
		ServerAddr:     getEnv("SERVER_ADDR", ":8080"),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseDriver: driver,
		DatabaseDSN:    dsn,

		// Authentication
		AuthMode: getEnv("AUTH_MODE", AuthModeLocal),

		// HTTP API Authentication
		HTTPAPIURL:                getEnv("HTTP_API_URL", ""),
		HTTPAPIInsecureSkipVerify: getEnvBool("HTTP_API_INSECURE_SKIP_VERIFY", false),
		HTTPAPIAuthMode:           getEnv("HTTP_API_AUTH_MODE", "none"),
		HTTPAPIAuthSecret:         getEnv("HTTP_API_AUTH_SECRET", ""),
		HTTPAPIAuthHeader:         getEnv("HTTP_API_AUTH_HEADER", "X-API-Secret"),
		HTTPAPIMaxRetries:         getEnvInt("HTTP_API_MAX_RETRIES", 3),

		// Application cache
		CacheBackend:  getEnv("CACHE_BACKEND", CacheBackendMemory),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// Metrics
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		MetricsToken:   getEnv("METRICS_TOKEN", ""),

		// Rate limiting
		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitBurst:   int64(getEnvInt("RATE_LIMIT_BURST", 60)),
		RateLimitRedis:   getEnvBool("RATE_LIMIT_REDIS", false),
	}

	// Durations parse strictly. A typo in a token lifetime must not fall
	// back to a default.
	var err error
	if cfg.AuthCodeTTL, err = getEnvDuration("AUTH_CODE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AccessTokenTTL, err = getEnvDuration("ACCESS_TOKEN_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenGrace, err = getEnvDuration("REFRESH_TOKEN_GRACE", 0); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getEnvDuration("SWEEP_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.HTTPAPITimeout, err = getEnvDuration("HTTP_API_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPAPIRetryDelay, err = getEnvDuration("HTTP_API_RETRY_DELAY", 1*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPAPIMaxRetryDelay, err = getEnvDuration("HTTP_API_MAX_RETRY_DELAY", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.AppCacheTTL, err = getEnvDuration("APP_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitPeriod, err = getEnvDuration("RATE_LIMIT_PERIOD", time.Minute); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that Load's per-field parsing
// cannot catch.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}

	switch c.AuthMode {
	case AuthModeLocal:
	case AuthModeHTTPAPI:
		if c.HTTPAPIURL == "" {
			return fmt.Errorf("AUTH_MODE=http_api requires HTTP_API_URL")
		}
	default:
		return fmt.Errorf("unsupported auth mode %q", c.AuthMode)
	}

	switch c.CacheBackend {
	case CacheBackendMemory, CacheBackendRedis, CacheBackendRedisAside:
	default:
		return fmt.Errorf("unsupported cache backend %q", c.CacheBackend)
	}

	if c.AuthCodeTTL <= 0 {
		return fmt.Errorf("AUTH_CODE_TTL must be positive, got %s", c.AuthCodeTTL)
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive, got %s", c.AccessTokenTTL)
	}
	if c.RefreshTokenGrace < 0 {
		return fmt.Errorf("REFRESH_TOKEN_GRACE must not be negative, got %s", c.RefreshTokenGrace)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q", key, value)
	}
	return d, nil
}
