// Package config loads ragsync configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Config file (~/.ragsync/config.yaml, or the path given with --config)
//  3. Environment variables
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Sync      SyncConfig      `yaml:"sync"`
	Runtime   RuntimeConfig   `yaml:"runtime"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// QdrantConfig configures the vector store connection.
type QdrantConfig struct {
	// Host of the Qdrant instance.
	Host string `yaml:"host"`
	// Port of the REST API.
	Port int `yaml:"port"`
	// APIKey is sent in the api-key header when non-empty.
	APIKey string `yaml:"api_key"`
	// Timeout per call. Large upserts are legitimately slow.
	Timeout time.Duration `yaml:"timeout"`
}

// URL returns the base URL of the Qdrant REST API.
func (q QdrantConfig) URL() string {
	return fmt.Sprintf("http://%s:%d", q.Host, q.Port)
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// Model is the embedding model name. A "/" in the name selects the
	// hosted open-model provider; otherwise the first-party provider.
	Model string `yaml:"model"`
	// APIToken authenticates against the provider.
	APIToken string `yaml:"api_token"`
	// BaseURL overrides the provider endpoint (mainly for tests).
	BaseURL string `yaml:"base_url"`
}

// SyncConfig carries the concurrency and batching bounds of the pipeline.
type SyncConfig struct {
	// HashWorkers is the size of the file-hashing pool.
	HashWorkers int `yaml:"hash_workers"`
	// ChunkWorkers is the size of the chunking pool.
	ChunkWorkers int `yaml:"chunk_workers"`
	// MaxPending bounds submitted-but-incomplete chunking tasks.
	MaxPending int `yaml:"max_pending"`
	// UploadThreshold is the accumulator size that triggers a flush.
	UploadThreshold int `yaml:"upload_threshold"`
	// EmbedBatch is the number of texts per embedding call.
	EmbedBatch int `yaml:"embed_batch"`
	// UpsertBatch is the number of points per upsert call.
	UpsertBatch int `yaml:"upsert_batch"`
	// DeleteBatch is the number of files per delete call.
	DeleteBatch int `yaml:"delete_batch"`
	// JobTimeout is the deadline for a whole sync.
	JobTimeout time.Duration `yaml:"job_timeout"`
}

// RuntimeConfig selects where sync jobs execute.
type RuntimeConfig struct {
	// Kind is "local" or "docker".
	Kind string `yaml:"kind"`
	// WorkDir holds per-job directories for the local runtime.
	WorkDir string `yaml:"work_dir"`
	// Image is the container image for the docker runtime.
	Image string `yaml:"image"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
}

// MetricsConfig configures the optional Prometheus listener.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the listener.
	Addr string `yaml:"addr"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Qdrant: QdrantConfig{
			Host:    "localhost",
			Port:    6333,
			Timeout: 300 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Model: "text-embedding-3-small",
		},
		Sync: SyncConfig{
			HashWorkers:     16,
			ChunkWorkers:    4,
			MaxPending:      100,
			UploadThreshold: 500,
			EmbedBatch:      10,
			UpsertBatch:     100,
			DeleteBatch:     100,
			JobTimeout:      time.Hour,
		},
		Runtime: RuntimeConfig{
			Kind:    "local",
			WorkDir: filepath.Join(os.TempDir(), "ragsync-jobs"),
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// DefaultPath returns the default config file location (~/.ragsync/config.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".ragsync", "config.yaml")
	}
	return filepath.Join(home, ".ragsync", "config.yaml")
}

// Load builds the effective configuration. An empty path means the default
// location; a missing file at the default location is fine, a missing file
// at an explicit path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// Defaults only
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variables, the highest-precedence
// configuration source.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("QDRANT_HOST"); v != "" {
		c.Qdrant.Host = v
	}
	if v := os.Getenv("QDRANT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Qdrant.Port = port
		}
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		c.Qdrant.APIKey = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("EMBEDDING_API_TOKEN"); v != "" {
		c.Embedding.APIToken = v
	}
	if v := os.Getenv("RAGSYNC_RUNTIME"); v != "" {
		c.Runtime.Kind = v
	}
	if v := os.Getenv("RAGSYNC_WORKER_IMAGE"); v != "" {
		c.Runtime.Image = v
	}
	if v := os.Getenv("RAGSYNC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Qdrant.Host == "" {
		return fmt.Errorf("qdrant.host must not be empty")
	}
	if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("qdrant.port out of range: %d", c.Qdrant.Port)
	}
	if c.Sync.HashWorkers <= 0 {
		return fmt.Errorf("sync.hash_workers must be positive")
	}
	if c.Sync.ChunkWorkers <= 0 {
		return fmt.Errorf("sync.chunk_workers must be positive")
	}
	if c.Sync.MaxPending <= 0 {
		return fmt.Errorf("sync.max_pending must be positive")
	}
	if c.Sync.UploadThreshold <= 0 {
		return fmt.Errorf("sync.upload_threshold must be positive")
	}
	if c.Sync.EmbedBatch <= 0 || c.Sync.UpsertBatch <= 0 || c.Sync.DeleteBatch <= 0 {
		return fmt.Errorf("sync batch sizes must be positive")
	}
	switch c.Runtime.Kind {
	case "local", "docker":
	default:
		return fmt.Errorf("runtime.kind must be local or docker, got %q", c.Runtime.Kind)
	}
	return nil
}
