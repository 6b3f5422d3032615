package config

import (
	"fmt"
	"strings"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port)
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) must not exceed max_conns (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Import.MaxItems <= 0 {
		return fmt.Errorf("import.max_items must be > 0 (got %d)", c.Import.MaxItems)
	}
	if c.Import.RetryBaseDelay <= 0 {
		return fmt.Errorf("import.retry_base_delay must be > 0 (got %s)", c.Import.RetryBaseDelay)
	}

	if c.Cache.Enabled {
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required when the cache is enabled")
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be > 0 (got %s)", c.Cache.TTL)
		}
	}

	if err := c.Log.validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be >= 0")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.burst must be > 0 when limiting is enabled")
	}
	if c.RateLimit.CleanupInterval < 0 {
		return fmt.Errorf("rate_limit.cleanup_interval must be >= 0 (got %s)", c.RateLimit.CleanupInterval)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with / (got %q)", c.Metrics.Path)
	}

	return nil
}

func (l LogConfig) validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error (got %q)", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("format must be json or text (got %q)", l.Format)
	}
	return nil
}
