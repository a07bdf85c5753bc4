package config

import (
	"net/url"
	"strings"
	"time"
)

// Default configuration values.
const (
	defaultServiceName  = "offline-gateway"
	defaultServicePort  = 8094
	defaultVersion      = "0.1.0"
	defaultCacheBackend = "memory"
	defaultGeneration   = "v1"
	defaultRedisAddress = "localhost:6379"
	defaultLoggingLevel = "info"
	defaultLoggingFmt   = "json"
)

// Config holds the application configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `env:"OFFLINE_GATEWAY_PORT" yaml:"port"`
	Debug   bool   `env:"APP_DEBUG"            yaml:"debug"`
}

// UpstreamConfig holds the origin the gateway fronts.
type UpstreamConfig struct {
	// BaseURL is the published dashboard origin, e.g. https://example.github.io/shortalert.
	BaseURL string `env:"UPSTREAM_BASE_URL" yaml:"base_url"`
	// Timeout bounds a single origin fetch. Zero means no timeout; latency is
	// then governed entirely by the transport.
	Timeout time.Duration `env:"UPSTREAM_TIMEOUT" yaml:"timeout"`
}

// CacheConfig holds the response cache configuration.
type CacheConfig struct {
	// Backend selects the store implementation: "memory" or "redis".
	Backend string `env:"CACHE_BACKEND" yaml:"backend"`
	// Generation names the one store that is current. Bumping it invalidates
	// everything: stores under any other name are purged at activation.
	Generation string `env:"CACHE_GENERATION" yaml:"generation"`
	// Precache lists URLs (paths relative to the upstream) to eagerly
	// populate at install time. May be empty. Failures are best-effort.
	Precache []string `env:"CACHE_PRECACHE" yaml:"precache"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"  yaml:"address"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB"       yaml:"db"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	return loadWithDefaults[Config](path, setDefaults)
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = defaultServiceName
	}
	if cfg.Service.Version == "" {
		cfg.Service.Version = defaultVersion
	}
	if cfg.Service.Port == 0 {
		cfg.Service.Port = defaultServicePort
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = defaultCacheBackend
	}
	if cfg.Cache.Generation == "" {
		cfg.Cache.Generation = defaultGeneration
	}
	if cfg.Cache.Redis.Address == "" {
		cfg.Cache.Redis.Address = defaultRedisAddress
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaultLoggingFmt
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if c.Upstream.BaseURL == "" {
		return &ValidationError{Field: "upstream.base_url", Message: "is required"}
	}
	if _, err := url.Parse(c.Upstream.BaseURL); err != nil {
		return &ValidationError{Field: "upstream.base_url", Message: "must be a valid URL"}
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return &ValidationError{Field: "cache.backend", Message: "must be one of: memory, redis"}
	}
	if c.Cache.Generation == "" {
		return &ValidationError{Field: "cache.generation", Message: "is required"}
	}
	// The redis backend embeds the generation in its key layout
	if strings.ContainsAny(c.Cache.Generation, ": \t") {
		return &ValidationError{Field: "cache.generation", Message: "must not contain colons or whitespace"}
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Address == "" {
		return &ValidationError{Field: "cache.redis.address", Message: "is required"}
	}
	return validateLogLevel(c.Logging.Level)
}
