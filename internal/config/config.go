package config

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Import    ImportConfig    `yaml:"import"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"   env:"SERVER_MAX_BODY_BYTES"   env-default:"10485760"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	AutoMigrate     bool          `yaml:"auto_migrate"       env:"DATABASE_AUTO_MIGRATE"       env-default:"false"`
}

// ImportConfig holds settings of the import pipeline.
type ImportConfig struct {
	MaxItems             int           `yaml:"max_items"             env:"IMPORT_MAX_ITEMS"             env-default:"10000"`
	SerializationRetries uint64        `yaml:"serialization_retries" env:"IMPORT_SERIALIZATION_RETRIES" env-default:"5"`
	RetryBaseDelay       time.Duration `yaml:"retry_base_delay"      env:"IMPORT_RETRY_BASE_DELAY"      env-default:"20ms"`
}

// CacheConfig holds the Redis tree cache settings. The cache is optional.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"    env:"CACHE_ENABLED"    env-default:"false"`
	RedisAddr string        `yaml:"redis_addr" env:"CACHE_REDIS_ADDR" env-default:"localhost:6379"`
	Password  string        `yaml:"password"   env:"CACHE_PASSWORD"`
	DB        int           `yaml:"db"         env:"CACHE_DB"         env-default:"0"`
	TTL       time.Duration `yaml:"ttl"        env:"CACHE_TTL"        env-default:"10m"`
	KeyPrefix string        `yaml:"key_prefix" env:"CACHE_KEY_PREFIX" env-default:"catalog"`
}

// LogConfig holds logging settings. When File is set, logs are written to a
// rotating file instead of stderr.
type LogConfig struct {
	Level      string `yaml:"level"        env:"LOG_LEVEL"        env-default:"info"`
	Format     string `yaml:"format"       env:"LOG_FORMAT"       env-default:"json"`
	File       string `yaml:"file"         env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb"  env:"LOG_MAX_SIZE_MB"  env-default:"100"`
	MaxBackups int    `yaml:"max_backups"  env:"LOG_MAX_BACKUPS"  env-default:"5"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS" env-default:"28"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins   string `yaml:"allowed_origins"   env:"CORS_ALLOWED_ORIGINS"   env-default:"*"`
	AllowedMethods   string `yaml:"allowed_methods"   env:"CORS_ALLOWED_METHODS"   env-default:"GET,POST,DELETE,OPTIONS"`
	AllowedHeaders   string `yaml:"allowed_headers"   env:"CORS_ALLOWED_HEADERS"   env-default:"Content-Type,X-Request-Id"`
	AllowCredentials bool   `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS" env-default:"false"`
	MaxAge           int    `yaml:"max_age"           env:"CORS_MAX_AGE"           env-default:"86400"`
}

// RateLimitConfig holds the per-client limiter applied to the write endpoints.
// A zero RequestsPerSecond disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"RATE_LIMIT_RPS"          env-default:"50"`
	Burst             int           `yaml:"burst"               env:"RATE_LIMIT_BURST"        env-default:"100"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"    env:"RATE_LIMIT_CLEANUP"      env-default:"5m"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
	Path    string `yaml:"path"    env:"METRICS_PATH"    env-default:"/metrics"`
}

// SplitList splits a comma-separated setting, dropping blanks.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
