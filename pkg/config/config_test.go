package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadClean(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadClean(t)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "bolt://localhost:7687", cfg.Graph.URI)
	assert.Equal(t, "chunks", cfg.Vector.ChunkTable)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)

	assert.Equal(t, 10, cfg.Retrieval.BeamWidth)
	assert.Equal(t, 3, cfg.Retrieval.BeamMaxDepth)
	assert.Equal(t, 100, cfg.Retrieval.TopK)
	assert.True(t, cfg.Retrieval.ShareResults)

	assert.Equal(t, 3, cfg.EntityContext.MaxDepth)
	assert.Equal(t, 5, cfg.EntityContext.MaxContexts)
	assert.InDelta(t, 0.2, cfg.EntityContext.MinScoreFactor, 1e-9)
	assert.InDelta(t, 1.0, cfg.EntityContext.MaxScoreFactor, 1e-9)
	assert.False(t, cfg.EntityContext.EnrichQuery)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("NEO4J_URI", "bolt://graph:7687")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("PGVECTOR_DSN", "postgres://vector:5432/kb")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SERVER_PORT", "9090")

	cfg := loadClean(t)

	assert.Equal(t, "bolt://graph:7687", cfg.Graph.URI)
	assert.Equal(t, "secret", cfg.Graph.Password)
	assert.Equal(t, "postgres://vector:5432/kb", cfg.Vector.DSN)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadIgnoresMalformedPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")

	cfg := loadClean(t)
	assert.Equal(t, 8080, cfg.Server.Port)
}
