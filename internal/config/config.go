package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Common
	Environment string
	LogLevel    string

	// Backing stores
	Redis    RedisConfig
	Database DatabaseConfig

	// Services
	Sync     SyncConfig
	Presence PresenceConfig
	API      APIConfig
	Gateway  GatewayConfig
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// DatabaseConfig holds Postgres configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ListConfig holds per-list synchronizer configuration
type ListConfig struct {
	PollInterval    time.Duration
	Debounce        time.Duration
	PageSize        int
	InitialWindow   int
	PatchFromEvents bool
}

// Ranked list source kinds
const (
	SourceRedis    = "redis"
	SourcePostgres = "postgres"
)

// SyncConfig holds synchronizer configuration for the built-in lists
type SyncConfig struct {
	SourceKind string // SourceRedis or SourcePostgres
	Trending   ListConfig
	Explore    ListConfig
	Streams    ListConfig
}

// PresenceConfig holds room presence configuration
type PresenceConfig struct {
	ResyncInterval time.Duration
	MemberTTL      time.Duration
}

// APIConfig holds REST API configuration
type APIConfig struct {
	Port            int
	HealthCheckPort int
	RateLimitRPS    int
	RateLimitBurst  int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

// GatewayConfig holds WebSocket gateway configuration
type GatewayConfig struct {
	Port            int
	HealthCheckPort int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	MaxConnections  int
	JWTSecret       string
}

// Load loads configuration from environment variables
// It automatically loads .env file if it exists in the current directory or parent directories
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "sparklerog"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Sync: SyncConfig{
			SourceKind: getEnv("SYNC_SOURCE_KIND", "redis"),
			// trending churns every few seconds; a short interval bounds
			// staleness even when the change feed is unreliable
			Trending: ListConfig{
				PollInterval:    getEnvAsDuration("SYNC_TRENDING_POLL_INTERVAL", 3*time.Second),
				Debounce:        getEnvAsDuration("SYNC_TRENDING_DEBOUNCE", 250*time.Millisecond),
				PageSize:        getEnvAsInt("SYNC_TRENDING_PAGE_SIZE", 100),
				InitialWindow:   getEnvAsInt("SYNC_TRENDING_INITIAL_WINDOW", 30),
				PatchFromEvents: getEnvAsBool("SYNC_TRENDING_PATCH_FROM_EVENTS", false),
			},
			Explore: ListConfig{
				PollInterval:    getEnvAsDuration("SYNC_EXPLORE_POLL_INTERVAL", 30*time.Second),
				Debounce:        getEnvAsDuration("SYNC_EXPLORE_DEBOUNCE", 1*time.Second),
				PageSize:        getEnvAsInt("SYNC_EXPLORE_PAGE_SIZE", 100),
				InitialWindow:   getEnvAsInt("SYNC_EXPLORE_INITIAL_WINDOW", 30),
				PatchFromEvents: getEnvAsBool("SYNC_EXPLORE_PATCH_FROM_EVENTS", false),
			},
			Streams: ListConfig{
				PollInterval:    getEnvAsDuration("SYNC_STREAMS_POLL_INTERVAL", 5*time.Second),
				Debounce:        getEnvAsDuration("SYNC_STREAMS_DEBOUNCE", 250*time.Millisecond),
				PageSize:        getEnvAsInt("SYNC_STREAMS_PAGE_SIZE", 50),
				InitialWindow:   getEnvAsInt("SYNC_STREAMS_INITIAL_WINDOW", 20),
				PatchFromEvents: getEnvAsBool("SYNC_STREAMS_PATCH_FROM_EVENTS", true),
			},
		},
		Presence: PresenceConfig{
			ResyncInterval: getEnvAsDuration("PRESENCE_RESYNC_INTERVAL", 30*time.Second),
			MemberTTL:      getEnvAsDuration("PRESENCE_MEMBER_TTL", 2*time.Minute),
		},
		API: APIConfig{
			Port:            getEnvAsInt("API_PORT", 8090),
			HealthCheckPort: getEnvAsInt("API_HEALTH_PORT", 8091),
			RateLimitRPS:    getEnvAsInt("API_RATE_LIMIT_RPS", 100),
			RateLimitBurst:  getEnvAsInt("API_RATE_LIMIT_BURST", 200),
			ReadTimeout:     getEnvAsDuration("API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("API_WRITE_TIMEOUT", 15*time.Second),
		},
		Gateway: GatewayConfig{
			Port:            getEnvAsInt("GATEWAY_PORT", 8088),
			HealthCheckPort: getEnvAsInt("GATEWAY_HEALTH_PORT", 8089),
			ReadTimeout:     getEnvAsDuration("GATEWAY_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:    getEnvAsDuration("GATEWAY_WRITE_TIMEOUT", 10*time.Second),
			PingInterval:    getEnvAsDuration("GATEWAY_PING_INTERVAL", 30*time.Second),
			MaxConnections:  getEnvAsInt("GATEWAY_MAX_CONNECTIONS", 1000),
			JWTSecret:       getEnv("GATEWAY_JWT_SECRET", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.Sync.SourceKind != SourceRedis && c.Sync.SourceKind != SourcePostgres {
		return fmt.Errorf("SYNC_SOURCE_KIND must be \"redis\" or \"postgres\"")
	}
	if c.Sync.SourceKind == SourcePostgres && c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required for the postgres source")
	}
	if c.Sync.Trending.PollInterval <= 0 || c.Sync.Explore.PollInterval <= 0 || c.Sync.Streams.PollInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
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

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
