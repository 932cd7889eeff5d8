package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides the application configuration loaded from the environment.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewEntitlementConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Observability ObservabilityConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	SnowflakeNode int64

	Cache     CacheConfig
	RateLimit RateLimitConfig
	Bootstrap BootstrapConfig
}

// ObservabilityConfig controls logging, tracing and OTLP metrics export.
type ObservabilityConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OTLPEndpoint  string
	OTLPProtocol  string
	SamplingRatio float64
}

// CacheConfig controls the plan catalog cache.
type CacheConfig struct {
	PlanTTLSeconds int
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
}

// RateLimitConfig throttles the public pricing endpoints per organization.
// It shares the Redis connection configured in CacheConfig.
type RateLimitConfig struct {
	Enabled    bool
	QuoteRate  float64
	QuoteBurst int
}

// BootstrapConfig controls startup seeding.
type BootstrapConfig struct {
	SeedDefaultPlans bool
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:           getenv("APP_SERVICE", "pgbilling"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "pgbilling"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		SnowflakeNode:     getenvInt64("SNOWFLAKE_NODE", 1),
		Observability: ObservabilityConfig{
			LogLevel:      strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:     strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:   getenvBool("OTEL_ENABLED", false),
			OTLPEndpoint:  strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
			OTLPProtocol:  strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		Cache: CacheConfig{
			PlanTTLSeconds: getenvInt("PLAN_CACHE_TTL_SECONDS", 300),
			RedisAddr:      strings.TrimSpace(getenv("REDIS_ADDR", "")),
			RedisPassword:  strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			RedisDB:        getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:    getenvBool("RATE_LIMIT_ENABLED", false),
			QuoteRate:  getenvFloat("RATE_LIMIT_QUOTE_RATE", 5),
			QuoteBurst: getenvInt("RATE_LIMIT_QUOTE_BURST", 20),
		},
		Bootstrap: BootstrapConfig{
			SeedDefaultPlans: getenvBool("BOOTSTRAP_SEED_PLANS", true),
		},
	}
}

// IsProduction reports whether the service runs in a production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
