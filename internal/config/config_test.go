package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.GenerationModel)
	assert.Equal(t, 30*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 3, cfg.GenerationRetries)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 1536, cfg.EmbeddingDimension)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, 0.30, cfg.MinSimilarity)
	assert.Equal(t, 20, cfg.SessionMaxMessages)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 12000, cfg.PromptCharBudget)
	assert.Equal(t, 1500, cfg.PromptContextFloor)
	assert.Equal(t, BackendMemory, cfg.IndexBackend)
	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.MCPStdio)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("GENERATION_MODEL", "gpt-4o-mini")
	t.Setenv("GENERATION_TIMEOUT", "10s")
	t.Setenv("EMBEDDING_DIMENSION", "512")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("TOP_K", "5")
	t.Setenv("MIN_SIMILARITY", "0.5")
	t.Setenv("INDEX_BACKEND", "qdrant")
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("MCP_STDIO", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.GenerationModel)
	assert.Equal(t, 10*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 512, cfg.EmbeddingDimension)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 0.5, cfg.MinSimilarity)
	assert.Equal(t, BackendQdrant, cfg.IndexBackend)
	assert.Equal(t, "qdrant.internal", cfg.QdrantHost)
	assert.True(t, cfg.MCPStdio)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"zero chunk size", "CHUNK_SIZE", "0", "CHUNK_SIZE"},
		{"overlap too large", "CHUNK_OVERLAP", "1000", "CHUNK_OVERLAP"},
		{"zero top k", "TOP_K", "0", "TOP_K"},
		{"similarity out of range", "MIN_SIMILARITY", "2.0", "MIN_SIMILARITY"},
		{"zero session max", "SESSION_MAX_MESSAGES", "0", "SESSION_MAX_MESSAGES"},
		{"unknown backend", "INDEX_BACKEND", "redis", "INDEX_BACKEND"},
		{"negative dimension", "EMBEDDING_DIMENSION", "-1", "EMBEDDING_DIMENSION"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "test-key")
			t.Setenv(tc.key, tc.val)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_MalformedNumbersFallBack(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("TOP_K", "many")
	t.Setenv("GENERATION_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, 30*time.Second, cfg.GenerationTimeout)
}
