// Package config loads the storefront configuration from an optional YAML file
// and NOVAMART_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/novamart-client/pkg/logging"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid configuration")

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NOVAMART_"

// Config is the complete storefront configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Cache    CacheConfig    `yaml:"cache"`
	Resolver ResolverConfig `yaml:"resolver"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// APIConfig configures the Product API client.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	UserAgent      string        `yaml:"user_agent"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	RateLimit      bool          `yaml:"rate_limit"`
}

// CacheConfig selects and sizes the cache backend.
type CacheConfig struct {
	Namespace  string      `yaml:"namespace"`
	Backend    string      `yaml:"backend"`
	QuotaBytes int         `yaml:"quota_bytes"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig is used when Backend is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ResolverConfig bounds upstream parallelism.
type ResolverConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// ServerConfig configures the storefront proxy.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// StatsSchedule is a cron spec for the cache statistics report, e.g. "@every 5m".
	// Empty disables the report.
	StatsSchedule string `yaml:"stats_schedule"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TracingConfig toggles the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:        "https://dummyjson.com/products",
			UserAgent:      "novamart-client/0.1.0",
			Timeout:        10 * time.Second,
			MaxRetries:     3,
			InitialBackoff: 1 * time.Second,
			RateLimit:      true,
		},
		Cache: CacheConfig{
			Namespace:  "novaMart",
			Backend:    BackendMemory,
			QuotaBytes: 5 * 1024 * 1024,
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Resolver: ResolverConfig{
			MaxConcurrency: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			StatsSchedule:   "@every 5m",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then environment overrides. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides cfg from NOVAMART_* variables.
func applyEnv(cfg *Config) error {
	cfg.API.BaseURL = getEnv("API_BASE_URL", cfg.API.BaseURL)
	cfg.API.UserAgent = getEnv("USER_AGENT", cfg.API.UserAgent)
	cfg.Cache.Namespace = getEnv("CACHE_NAMESPACE", cfg.Cache.Namespace)
	cfg.Cache.Backend = getEnv("CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.Redis.Addr = getEnv("REDIS_ADDR", cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Cache.Redis.Password)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Server.Addr = getEnv("ADDR", cfg.Server.Addr)
	cfg.Server.StatsSchedule = getEnv("STATS_SCHEDULE", cfg.Server.StatsSchedule)

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	collect(envDuration("API_TIMEOUT", &cfg.API.Timeout))
	collect(envInt("API_MAX_RETRIES", &cfg.API.MaxRetries))
	collect(envBool("API_RATE_LIMIT", &cfg.API.RateLimit))
	collect(envInt("CACHE_QUOTA_BYTES", &cfg.Cache.QuotaBytes))
	collect(envInt("REDIS_DB", &cfg.Cache.Redis.DB))
	collect(envInt("RESOLVER_CONCURRENCY", &cfg.Resolver.MaxConcurrency))
	collect(envBool("LOG_PRETTY", &cfg.Logging.Pretty))
	collect(envBool("TRACING_ENABLED", &cfg.Tracing.Enabled))

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, dst *int) error {
	raw := os.Getenv(EnvPrefix + key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = v
	return nil
}

func envBool(key string, dst *bool) error {
	raw := os.Getenv(EnvPrefix + key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = v
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	raw := os.Getenv(EnvPrefix + key)
	if raw == "" {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = v
	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("api.base_url must be an absolute URL (got %q)", c.API.BaseURL)
	}
	if c.API.UserAgent == "" {
		add("api.user_agent is required")
	}
	if c.API.Timeout <= 0 {
		add("api.timeout must be > 0 (got %s)", c.API.Timeout)
	}
	if c.API.MaxRetries < 1 {
		add("api.max_retries must be >= 1 (got %d)", c.API.MaxRetries)
	}
	if c.API.InitialBackoff < 0 {
		add("api.initial_backoff must be >= 0 (got %s)", c.API.InitialBackoff)
	}

	if c.Cache.Namespace == "" || strings.ContainsAny(c.Cache.Namespace, " \t\n*?[]") {
		add("cache.namespace must be non-empty without whitespace or glob characters (got %q)", c.Cache.Namespace)
	}
	switch c.Cache.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Cache.Redis.Addr == "" {
			add("cache.redis.addr is required for the redis backend")
		}
	default:
		add("cache.backend must be %q or %q (got %q)", BackendMemory, BackendRedis, c.Cache.Backend)
	}
	if c.Cache.QuotaBytes < 0 {
		add("cache.quota_bytes must be >= 0 (got %d)", c.Cache.QuotaBytes)
	}

	if c.Resolver.MaxConcurrency < 1 {
		add("resolver.max_concurrency must be >= 1 (got %d)", c.Resolver.MaxConcurrency)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level: %v", err)
	}

	if c.Server.Addr == "" {
		add("server.addr is required")
	}
	if c.Server.StatsSchedule != "" {
		if _, err := cron.ParseStandard(c.Server.StatsSchedule); err != nil {
			add("server.stats_schedule: %v", err)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
