// Package config loads the collector's settings from an optional YAML file and BEACON_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "BEACON"

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	App            AppConfig           `mapstructure:"app"`
	OTLP           OTLPConfig          `mapstructure:"otlp"`
	Query          QueryConfig         `mapstructure:"query"`
	Elasticsearch  ElasticsearchConfig `mapstructure:"elasticsearch"`
	Cache          CacheConfig         `mapstructure:"cache"`
	Sketch         SketchConfig        `mapstructure:"sketch"`
	DefaultProject string              `mapstructure:"default_project"`
}

type AppConfig struct {
	LogLevel    string `mapstructure:"log_level"`
	Development bool   `mapstructure:"development"`
}

// OTLPConfig is the gRPC listener for the OTLP trace service.
type OTLPConfig struct {
	Address string `mapstructure:"address"`
}

// QueryConfig is the HTTP listener for the query and evaluation API.
type QueryConfig struct {
	Address         string `mapstructure:"address"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

type ElasticsearchConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Addresses   []string `mapstructure:"addresses"`
	FlushSize   int      `mapstructure:"flush_size"`
	RefreshRate string   `mapstructure:"refresh_rate"`
}

// CacheConfig sizes the evaluation export cache. Cost is counted in exported rows.
type CacheConfig struct {
	NumCounters int64 `mapstructure:"num_counters"`
	MaxCost     int64 `mapstructure:"max_cost"`
}

type SketchConfig struct {
	RelativeAccuracy float64 `mapstructure:"relative_accuracy"`
}

// GetShutdownTimeout parses the configured shutdown timeout into a time.Duration.
func (c *QueryConfig) GetShutdownTimeout() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Load reads path when it is non-empty, then applies defaults and environment overrides such
// as BEACON_QUERY_ADDRESS.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.development", false)
	v.SetDefault("otlp.address", ":4317")
	v.SetDefault("query.address", ":6006")
	v.SetDefault("query.shutdown_timeout", "10s")
	v.SetDefault("elasticsearch.enabled", false)
	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.flush_size", 30)
	v.SetDefault("elasticsearch.refresh_rate", "false")
	v.SetDefault("cache.num_counters", 10000)
	v.SetDefault("cache.max_cost", 1000000)
	v.SetDefault("sketch.relative_accuracy", 0.01)
	v.SetDefault("default_project", "default")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Sketch.RelativeAccuracy <= 0 || c.Sketch.RelativeAccuracy >= 1 {
		return fmt.Errorf("%w: sketch.relative_accuracy must be in (0, 1), got %v", ErrInvalidConfig, c.Sketch.RelativeAccuracy)
	}
	if c.DefaultProject == "" {
		return fmt.Errorf("%w: default_project must not be empty", ErrInvalidConfig)
	}
	if c.Elasticsearch.Enabled && len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("%w: elasticsearch.addresses must not be empty when enabled", ErrInvalidConfig)
	}
	if c.Cache.NumCounters <= 0 || c.Cache.MaxCost <= 0 {
		return fmt.Errorf("%w: cache sizes must be positive", ErrInvalidConfig)
	}
	return nil
}
