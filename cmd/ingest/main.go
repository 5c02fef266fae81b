// Package main provides the ingestion CLI for building the document index.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ragkit/ragserver/internal/chunker"
	"github.com/ragkit/ragserver/internal/config"
	"github.com/ragkit/ragserver/internal/embedding"
	"github.com/ragkit/ragserver/internal/index"
	"github.com/ragkit/ragserver/internal/ingest"
	"github.com/ragkit/ragserver/internal/source"
)

var savePath string

var rootCmd = &cobra.Command{
	Use:   "rag-ingest",
	Short: "Document ingestion tool",
	Long:  "CLI tool for chunking, embedding, and indexing documents",
}

var dirCmd = &cobra.Command{
	Use:   "dir <path>",
	Short: "Ingest every text document under a local directory",
	Long: `Walks a directory tree, ingests every .txt/.md/.markdown file, and
indexes the resulting chunks. Re-running over the same tree replaces
prior chunks instead of duplicating them.

Environment variables:
  OPENAI_API_KEY OpenAI API key for embeddings (required)
  INDEX_BACKEND  memory or qdrant (default: memory)
  INDEX_PATH     snapshot file to load before ingesting (memory backend)`,
	Args: cobra.ExactArgs(1),
	RunE: runDir,
}

var githubCmd = &cobra.Command{
	Use:   "github <owner> <repo> <path>",
	Short: "Ingest documentation from a GitHub repository",
	Long: `Fetches every text document under a repository path and indexes the
resulting chunks.

Environment variables:
  OPENAI_API_KEY OpenAI API key for embeddings (required)
  GITHUB_TOKEN   GitHub token for higher rate limits (optional)
  INDEX_BACKEND  memory or qdrant (default: memory)`,
	Args: cobra.ExactArgs(3),
	RunE: runGitHub,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&savePath, "save", "",
		"write an index snapshot to this file after ingesting (memory backend only)")
	rootCmd.AddCommand(dirCmd)
	rootCmd.AddCommand(githubCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDir(cmd *cobra.Command, args []string) error {
	fmt.Printf("Reading documents from %s...\n", args[0])
	docs, err := source.ReadDir(args[0])
	if err != nil {
		return fmt.Errorf("read directory: %w", err)
	}
	fmt.Printf("Found %d documents\n", len(docs))

	return run(cmd.Context(), docs)
}

func runGitHub(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	owner, repo, basePath := args[0], args[1], args[2]

	fetcher, err := source.NewGitHub(owner, repo, basePath)
	if err != nil {
		return fmt.Errorf("create GitHub client: %w", err)
	}

	if sha, err := fetcher.LatestCommitSHA(ctx); err == nil {
		fmt.Printf("Fetching %s/%s at %s...\n", owner, repo, sha[:min(12, len(sha))])
	} else {
		fmt.Printf("Fetching %s/%s...\n", owner, repo)
	}

	docs, err := fetcher.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch documents: %w", err)
	}
	fmt.Printf("Found %d documents\n", len(docs))

	return run(ctx, docs)
}

// run builds the pipeline from the environment configuration and ingests
// the documents.
func run(ctx context.Context, docs []ingest.RawDocument) error {
	start := time.Now()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	openaiClient := embedding.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	engine := embedding.NewEngine(openaiClient, cfg.EmbeddingModel, cfg.EmbeddingDimension, cfg.EmbeddingBatchSize)

	var store index.Store
	var mem *index.Memory
	switch cfg.IndexBackend {
	case config.BackendQdrant:
		fmt.Printf("Connecting to Qdrant at %s:%d...\n", cfg.QdrantHost, cfg.QdrantPort)
		qdrantStore, err := index.NewQdrant(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, cfg.EmbeddingDimension)
		if err != nil {
			return fmt.Errorf("connect to qdrant: %w", err)
		}
		defer qdrantStore.Close()
		store = qdrantStore
	default:
		mem = index.NewMemory(cfg.EmbeddingDimension)
		if cfg.IndexPath != "" {
			if err := mem.Load(cfg.IndexPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load index snapshot: %w", err)
			}
		}
		store = mem
	}

	pipeline := ingest.NewPipeline(
		chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		chunker.NewMarkdown(),
		engine,
		store,
		slog.Default(),
	)

	fmt.Println()
	fmt.Println("Ingesting...")
	result, err := pipeline.Ingest(ctx, docs)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Documents: %d/%d\n", result.Documents, len(docs))
	fmt.Printf("  Chunks: %d\n", result.Chunks)
	fmt.Printf("  Index version: %d\n", result.IndexVersion)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.Failed) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range result.Failed {
			fmt.Printf("  - %s: %s\n", failed.Source, failed.Reason)
		}
	}

	if savePath != "" {
		if mem == nil {
			return fmt.Errorf("--save requires INDEX_BACKEND=memory")
		}
		if err := mem.Save(savePath); err != nil {
			return fmt.Errorf("save index snapshot: %w", err)
		}
		fmt.Printf("\nSnapshot written to %s\n", savePath)
	}

	fmt.Printf("\nTotal time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}
