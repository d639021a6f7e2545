// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Catalog, Pipeline, Search, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Search   SearchConfig   `yaml:"search"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// CatalogConfig locates the source file and index artifact and controls the
// staleness policy applied at startup.
type CatalogConfig struct {
	SourcePath   string        `yaml:"sourcePath"`
	IndexPath    string        `yaml:"indexPath"`
	MaxAge       time.Duration `yaml:"maxAge"`
	MinIndexSize int64         `yaml:"minIndexSize"`
	ReadOnly     bool          `yaml:"readOnly"`
}

// PipelineConfig controls ingestion batching and per-record limits.
type PipelineConfig struct {
	ChunkSize            int `yaml:"chunkSize"`
	Workers              int `yaml:"workers"`
	MaxImages            int `yaml:"maxImages"`
	MaxDescriptionLength int `yaml:"maxDescriptionLength"`
}

// SearchConfig controls fuzzy matching and result limits.
type SearchConfig struct {
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
	DefaultLimit        int     `yaml:"defaultLimit"`
	MaxLimit            int     `yaml:"maxLimit"`
	SuggestLimit        int     `yaml:"suggestLimit"`
}

// WatcherConfig controls the optional source-file watcher that triggers
// rebuilds while the server is running.
type WatcherConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus scrape endpoint. When Port is set
// the endpoint is served on its own listener instead of the API server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Catalog: CatalogConfig{
			SourcePath:   "data/products.csv",
			IndexPath:    "data/index.json",
			MaxAge:       24 * time.Hour,
			MinIndexSize: 64,
			ReadOnly:     false,
		},
		Pipeline: PipelineConfig{
			ChunkSize:            2000,
			Workers:              4,
			MaxImages:            3,
			MaxDescriptionLength: 500,
		},
		Search: SearchConfig{
			SimilarityThreshold: 0.35,
			DefaultLimit:        20,
			MaxLimit:            100,
			SuggestLimit:        10,
		},
		Watcher: WatcherConfig{
			Enabled:  false,
			Debounce: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func (c *Config) validate() error {
	if c.Pipeline.ChunkSize < 1 {
		return fmt.Errorf("pipeline.chunkSize must be positive, got %d", c.Pipeline.ChunkSize)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Search.SimilarityThreshold <= 0 || c.Search.SimilarityThreshold >= 1 {
		return fmt.Errorf("search.similarityThreshold must be in (0,1), got %v", c.Search.SimilarityThreshold)
	}
	if c.Search.DefaultLimit < 1 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search limits misconfigured: default=%d max=%d", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	return nil
}

// applyEnvOverrides reads CS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CS_CATALOG_SOURCE_PATH"); v != "" {
		cfg.Catalog.SourcePath = v
	}
	if v := os.Getenv("CS_CATALOG_INDEX_PATH"); v != "" {
		cfg.Catalog.IndexPath = v
	}
	if v := os.Getenv("CS_CATALOG_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Catalog.MaxAge = d
		}
	}
	if v := os.Getenv("CS_CATALOG_READ_ONLY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Catalog.ReadOnly = b
		}
	}
	if v := os.Getenv("CS_PIPELINE_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.ChunkSize = n
		}
	}
	if v := os.Getenv("CS_PIPELINE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("CS_SEARCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("CS_WATCHER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Watcher.Enabled = b
		}
	}
	if v := os.Getenv("CS_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
	if v := os.Getenv("CS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
