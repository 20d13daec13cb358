package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Catalog   CatalogConfig
	Cache     CacheConfig
	Snapshot  SnapshotConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type CatalogConfig struct {
	BaseURL     string
	PageSize    int
	PageTimeout time.Duration
	MaxPages    int
	Paginate    bool
	UserAgent   string
}

type CacheConfig struct {
	Duration        time.Duration
	RefreshInterval time.Duration
}

type SnapshotConfig struct {
	Backend  string // file, redis or postgres
	File     string
	RedisKey string
	Name     string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns the redis host:port
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type JWTConfig struct {
	Secret       string
	RefreshRoles []string
}

type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

const (
	SnapshotBackendFile     = "file"
	SnapshotBackendRedis    = "redis"
	SnapshotBackendPostgres = "postgres"
)

// IsDevelopment reports whether the server runs in the development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// NeedsRedis reports whether any component uses redis
func (c *Config) NeedsRedis() bool {
	return c.Snapshot.Backend == SnapshotBackendRedis || c.RateLimit.Enabled
}

// Validate reports settings the service cannot start with
func (c *Config) Validate() error {
	switch c.Snapshot.Backend {
	case SnapshotBackendFile, SnapshotBackendRedis, SnapshotBackendPostgres:
	default:
		return fmt.Errorf("unknown snapshot backend %q", c.Snapshot.Backend)
	}
	if c.Cache.Duration <= 0 {
		return fmt.Errorf("cache duration must be positive, got %s", c.Cache.Duration)
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("rate limit needs positive requests and window")
	}
	return nil
}

func Load() *Config {
	// .env.local is exported into the environment so it overrides .env
	if err := godotenv.Load(".env.local"); err == nil {
		log.Printf("Loaded overrides from .env.local")
	}

	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("CATALOG_BASE_URL", "https://www.dennis-snkrs.com")
	v.SetDefault("CATALOG_PAGE_SIZE", 250)
	v.SetDefault("CATALOG_PAGE_TIMEOUT", "30s")
	v.SetDefault("CATALOG_MAX_PAGES", 0)
	v.SetDefault("CATALOG_PAGINATE", true)
	v.SetDefault("CATALOG_USER_AGENT", "wtb-catalog/1.0")
	v.SetDefault("CACHE_DURATION", "1h")
	v.SetDefault("CACHE_REFRESH_INTERVAL", "")
	v.SetDefault("SNAPSHOT_BACKEND", SnapshotBackendFile)
	v.SetDefault("SNAPSHOT_FILE", "products_cache.json")
	v.SetDefault("SNAPSHOT_REDIS_KEY", "wtb:catalog:snapshot")
	v.SetDefault("SNAPSHOT_NAME", "products")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REFRESH_ROLES", "admin,moderator")
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_REQUESTS", 60)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	cacheDuration := v.GetDuration("CACHE_DURATION")
	if cacheDuration <= 0 {
		cacheDuration = time.Hour
	}
	refreshInterval := v.GetDuration("CACHE_REFRESH_INTERVAL")
	if refreshInterval <= 0 {
		refreshInterval = cacheDuration
	}

	return &Config{
		Server: ServerConfig{
			Port:     v.GetString("SERVER_PORT"),
			Env:      v.GetString("SERVER_ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Catalog: CatalogConfig{
			BaseURL:     v.GetString("CATALOG_BASE_URL"),
			PageSize:    v.GetInt("CATALOG_PAGE_SIZE"),
			PageTimeout: v.GetDuration("CATALOG_PAGE_TIMEOUT"),
			MaxPages:    v.GetInt("CATALOG_MAX_PAGES"),
			Paginate:    v.GetBool("CATALOG_PAGINATE"),
			UserAgent:   v.GetString("CATALOG_USER_AGENT"),
		},
		Cache: CacheConfig{
			Duration:        cacheDuration,
			RefreshInterval: refreshInterval,
		},
		Snapshot: SnapshotConfig{
			Backend:  strings.ToLower(v.GetString("SNAPSHOT_BACKEND")),
			File:     v.GetString("SNAPSHOT_FILE"),
			RedisKey: v.GetString("SNAPSHOT_REDIS_KEY"),
			Name:     v.GetString("SNAPSHOT_NAME"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_DATABASE"),
			Schema:   v.GetString("DB_SCHEMA"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:       v.GetString("JWT_SECRET"),
			RefreshRoles: splitList(v.GetString("REFRESH_ROLES")),
		},
		RateLimit: RateLimitConfig{
			Enabled:  v.GetBool("RATE_LIMIT_ENABLED"),
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
	}
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
