// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends recognized in storage.backend.
const (
	BackendFS  = "fs"
	BackendGCS = "gcs"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CrawlerConfig governs batch scheduling and the per-fetch protocol.
type CrawlerConfig struct {
	// ChunkSize is the number of domains crawled concurrently before the
	// next chunk starts.
	ChunkSize int `mapstructure:"chunk_size"`
	// TimeoutMs is the per-fetch deadline in milliseconds.
	TimeoutMs int `mapstructure:"timeout_ms"`
	// Limit truncates the domain list to the first N entries; 0 means all.
	Limit int `mapstructure:"limit"`
	// MaxBodyBytes caps how large a stored ads.txt file may be.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
	// OutDir is where discovered files are written with the fs backend.
	OutDir string `mapstructure:"out_dir"`
}

// ServerConfig controls the optional ops HTTP listener.
type ServerConfig struct {
	// MetricsAddr enables /healthz, /metrics and /progress when non-empty.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// StorageConfig selects and parameterizes the sink backend.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls the optional Postgres crawl ledger.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for the optional found-file notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ADSTXT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.chunk_size", 50)
	v.SetDefault("crawler.timeout_ms", 1000)
	v.SetDefault("crawler.limit", 0)
	v.SetDefault("crawler.max_body_bytes", 1<<20)
	v.SetDefault("crawler.out_dir", "data/adstxt")
	v.SetDefault("server.metrics_addr", "")
	v.SetDefault("storage.backend", BackendFS)
	v.SetDefault("storage.prefix", "adstxt")
	v.SetDefault("db.table", "crawl_results")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.ChunkSize <= 0 {
		return fmt.Errorf("crawler.chunk_size must be > 0")
	}
	if c.Crawler.TimeoutMs < 0 {
		return fmt.Errorf("crawler.timeout_ms must be >= 0")
	}
	if c.Crawler.Limit < 0 {
		return fmt.Errorf("crawler.limit must be >= 0")
	}
	switch c.Storage.Backend {
	case BackendFS:
		if c.Crawler.OutDir == "" {
			return fmt.Errorf("crawler.out_dir is required with the fs backend")
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required with the gcs backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// Timeout converts the millisecond knob into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutMs) * time.Millisecond
}
