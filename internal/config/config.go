// Package config loads orchestrator configuration from a YAML file
// with environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/resumeforge/orchestrator/internal/tracing"
)

const defaultConfigPath = "config/orchestrator.yaml"

// ServiceConfig covers the service surface.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	HTTPPort    int    `mapstructure:"http_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	// AuthToken guards the run API when set; empty disables auth
	// (local development).
	AuthToken string `mapstructure:"auth_token"`
}

// RedisConfig covers the intermediate result cache backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CollaboratorsConfig points at the external services steps dispatch to.
type CollaboratorsConfig struct {
	LLMServiceURL        string  `mapstructure:"llm_service_url"`
	ToolsURL             string  `mapstructure:"tools_url"`
	RetrievalURL         string  `mapstructure:"retrieval_url"`
	CompressionURL       string  `mapstructure:"compression_url"`
	TimeoutSeconds       int     `mapstructure:"timeout_seconds"`
	LLMRequestsPerSecond float64 `mapstructure:"llm_requests_per_second"`
	RetrievalTopK        int     `mapstructure:"retrieval_top_k"`
}

// CacheConfig covers intermediate result caching.
type CacheConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	TTLSeconds int  `mapstructure:"ttl_seconds"`
}

// DatabaseConfig covers the token usage audit store.
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// StreamingConfig covers step event streaming.
type StreamingConfig struct {
	ReplayCapacity int `mapstructure:"replay_capacity"`
}

// LoggingConfig covers the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the full orchestrator configuration.
type Config struct {
	Service       ServiceConfig       `mapstructure:"service"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Collaborators CollaboratorsConfig `mapstructure:"collaborators"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Streaming     StreamingConfig     `mapstructure:"streaming"`
	Tracing       tracing.Config      `mapstructure:"tracing"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// CacheTTL returns the configured cache TTL.
func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// CollaboratorTimeout returns the shared collaborator request timeout.
func (c *Config) CollaboratorTimeout() time.Duration {
	if c.Collaborators.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Collaborators.TimeoutSeconds) * time.Second
}

// Load reads the config file at path, or CONFIG_PATH, or the default
// location. Secrets may be supplied via REDIS_PASSWORD and
// DATABASE_DSN instead of the file.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = defaultConfigPath
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "resumeforge-orchestrator")
	v.SetDefault("service.http_port", 8085)
	v.SetDefault("service.metrics_port", 9095)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("collaborators.timeout_seconds", 120)
	v.SetDefault("collaborators.retrieval_top_k", 5)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl_seconds", 3600)
	v.SetDefault("streaming.replay_capacity", 256)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func (c *Config) validate() error {
	if c.Collaborators.LLMServiceURL == "" {
		return fmt.Errorf("collaborators.llm_service_url is required")
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when database.enabled")
	}
	return nil
}
