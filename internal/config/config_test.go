package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6333, cfg.Qdrant.Port)
	assert.Equal(t, 300*time.Second, cfg.Qdrant.Timeout)
	assert.Equal(t, 16, cfg.Sync.HashWorkers)
	assert.Equal(t, 4, cfg.Sync.ChunkWorkers)
	assert.Equal(t, 100, cfg.Sync.MaxPending)
	assert.Equal(t, 500, cfg.Sync.UploadThreshold)
	assert.Equal(t, 10, cfg.Sync.EmbedBatch)
	assert.Equal(t, 100, cfg.Sync.UpsertBatch)
	assert.Equal(t, time.Hour, cfg.Sync.JobTimeout)
	assert.Equal(t, "local", cfg.Runtime.Kind)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromFile(t *testing.T) {
	// Given: a config file overriding a few fields
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
qdrant:
  host: qdrant.internal
  port: 7000
sync:
  hash_workers: 8
embedding:
  model: BAAI/bge-large-en-v1.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// When: loaded
	cfg, err := Load(path)

	// Then: file values override defaults, untouched fields keep defaults
	require.NoError(t, err)
	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, 7000, cfg.Qdrant.Port)
	assert.Equal(t, 8, cfg.Sync.HashWorkers)
	assert.Equal(t, "BAAI/bge-large-en-v1.5", cfg.Embedding.Model)
	assert.Equal(t, 4, cfg.Sync.ChunkWorkers)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("qdrant:\n  host: from-file\n"), 0o644))
	t.Setenv("QDRANT_HOST", "from-env")
	t.Setenv("QDRANT_PORT", "9999")
	t.Setenv("EMBEDDING_API_TOKEN", "tok-123")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Qdrant.Host)
	assert.Equal(t, 9999, cfg.Qdrant.Port)
	assert.Equal(t, "tok-123", cfg.Embedding.APIToken)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("qdrant: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty host", func(c *Config) { c.Qdrant.Host = "" }},
		{"bad port", func(c *Config) { c.Qdrant.Port = -1 }},
		{"zero hash workers", func(c *Config) { c.Sync.HashWorkers = 0 }},
		{"zero chunk workers", func(c *Config) { c.Sync.ChunkWorkers = 0 }},
		{"zero max pending", func(c *Config) { c.Sync.MaxPending = 0 }},
		{"zero threshold", func(c *Config) { c.Sync.UploadThreshold = 0 }},
		{"zero embed batch", func(c *Config) { c.Sync.EmbedBatch = 0 }},
		{"bad runtime", func(c *Config) { c.Runtime.Kind = "k8s" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestQdrantURL(t *testing.T) {
	q := QdrantConfig{Host: "example.com", Port: 6333}
	assert.Equal(t, "http://example.com:6333", q.URL())
}
