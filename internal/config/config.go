// Package config loads and validates the service configuration from the
// environment. A single immutable Config is built at startup and passed
// explicitly into each component's constructor.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Index backend selection values for INDEX_BACKEND.
const (
	BackendMemory = "memory"
	BackendQdrant = "qdrant"
)

// Config holds every tunable the service reads from the environment.
type Config struct {
	// Generation backend
	OpenAIAPIKey      string
	OpenAIBaseURL     string // empty means the default OpenAI endpoint
	GenerationModel   string
	GenerationTimeout time.Duration
	GenerationRetries int

	// Embedding
	EmbeddingModel     string
	EmbeddingDimension int
	EmbeddingBatchSize int

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Retrieval
	TopK          int
	MinSimilarity float64

	// Sessions
	SessionMaxMessages int
	SessionTTL         time.Duration

	// Prompt budgeting
	PromptCharBudget   int
	PromptContextFloor int

	// Index
	IndexBackend     string
	IndexPath        string // optional snapshot file for the memory backend
	QdrantHost       string
	QdrantPort       int
	QdrantCollection string

	// Serving
	Port     string
	MCPStdio bool
}

// Load reads configuration from the environment, applying defaults, and
// validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		GenerationModel:   getEnv("GENERATION_MODEL", "gpt-4o"),
		GenerationTimeout: getEnvDuration("GENERATION_TIMEOUT", 30*time.Second),
		GenerationRetries: getEnvInt("GENERATION_RETRIES", 3),

		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimension: getEnvInt("EMBEDDING_DIMENSION", 1536),
		EmbeddingBatchSize: getEnvInt("EMBEDDING_BATCH_SIZE", 500),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),

		TopK:          getEnvInt("TOP_K", 3),
		MinSimilarity: getEnvFloat("MIN_SIMILARITY", 0.30),

		SessionMaxMessages: getEnvInt("SESSION_MAX_MESSAGES", 20),
		SessionTTL:         getEnvDuration("SESSION_TTL", time.Hour),

		PromptCharBudget:   getEnvInt("PROMPT_CHAR_BUDGET", 12000),
		PromptContextFloor: getEnvInt("PROMPT_CONTEXT_FLOOR", 1500),

		IndexBackend:     getEnv("INDEX_BACKEND", BackendMemory),
		IndexPath:        os.Getenv("INDEX_PATH"),
		QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:       getEnvInt("QDRANT_PORT", 6334),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "chunks"),

		Port:     getEnv("PORT", "8080"),
		MCPStdio: getEnv("MCP_STDIO", "false") == "true",
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.EmbeddingDimension)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	}
	if c.MinSimilarity < -1 || c.MinSimilarity > 1 {
		return fmt.Errorf("MIN_SIMILARITY must be in [-1, 1], got %g", c.MinSimilarity)
	}
	if c.SessionMaxMessages <= 0 {
		return fmt.Errorf("SESSION_MAX_MESSAGES must be positive, got %d", c.SessionMaxMessages)
	}
	if c.PromptCharBudget <= 0 {
		return fmt.Errorf("PROMPT_CHAR_BUDGET must be positive, got %d", c.PromptCharBudget)
	}
	if c.PromptContextFloor < 0 || c.PromptContextFloor > c.PromptCharBudget {
		return fmt.Errorf("PROMPT_CONTEXT_FLOOR must be in [0, PROMPT_CHAR_BUDGET], got %d", c.PromptContextFloor)
	}
	switch c.IndexBackend {
	case BackendMemory, BackendQdrant:
	default:
		return fmt.Errorf("INDEX_BACKEND must be %q or %q, got %q", BackendMemory, BackendQdrant, c.IndexBackend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
