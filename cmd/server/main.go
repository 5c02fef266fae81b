// Package main runs the answering service: HTTP API plus MCP tool surface.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ragkit/ragserver/internal/agent"
	"github.com/ragkit/ragserver/internal/chunker"
	"github.com/ragkit/ragserver/internal/config"
	"github.com/ragkit/ragserver/internal/embedding"
	"github.com/ragkit/ragserver/internal/generation"
	"github.com/ragkit/ragserver/internal/index"
	"github.com/ragkit/ragserver/internal/ingest"
	mcpserver "github.com/ragkit/ragserver/internal/mcp"
	"github.com/ragkit/ragserver/internal/prompt"
	"github.com/ragkit/ragserver/internal/retriever"
	"github.com/ragkit/ragserver/internal/server"
	"github.com/ragkit/ragserver/internal/session"
)

func main() {
	// Load .env if present (local development), ignore if missing.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger := slog.Default()

	openaiClient := embedding.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	engine := embedding.NewEngine(openaiClient, cfg.EmbeddingModel, cfg.EmbeddingDimension, cfg.EmbeddingBatchSize)

	var store index.Store
	switch cfg.IndexBackend {
	case config.BackendQdrant:
		qdrantStore, err := index.NewQdrant(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, cfg.EmbeddingDimension)
		if err != nil {
			log.Fatalf("failed to connect to qdrant: %v", err)
		}
		defer qdrantStore.Close()
		store = qdrantStore
	default:
		mem := index.NewMemory(cfg.EmbeddingDimension)
		if cfg.IndexPath != "" {
			if err := mem.Load(cfg.IndexPath); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					logger.Info("no index snapshot found, starting empty", "path", cfg.IndexPath)
				} else {
					log.Fatalf("failed to load index snapshot: %v", err)
				}
			} else {
				n, _ := mem.Count(ctx)
				logger.Info("loaded index snapshot", "path", cfg.IndexPath, "entries", n)
			}
		}
		store = mem
	}

	sessions := session.New(cfg.SessionMaxMessages, cfg.SessionTTL)
	go sweepSessions(ctx, sessions, cfg.SessionTTL, logger)

	genClient := generation.New(openaiClient, cfg.GenerationModel, cfg.GenerationTimeout, cfg.GenerationRetries)

	svc := agent.New(agent.Config{
		Retriever:        retriever.New(engine, store, cfg.TopK, cfg.MinSimilarity, logger),
		Builder:          prompt.NewBuilder(cfg.PromptCharBudget, cfg.PromptContextFloor),
		Generator:        genClient,
		Sessions:         sessions,
		Logger:           logger,
		EmbeddingHealth:  engine,
		IndexHealth:      store,
		GenerationHealth: genClient,
	})

	pipeline := ingest.NewPipeline(
		chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		chunker.NewMarkdown(),
		engine,
		store,
		logger,
	)

	mux := server.New(svc, pipeline, logger).Mux()

	mcpSrv := mcpserver.NewServer(&mcpserver.Config{
		Agent:    svc,
		Embedder: engine,
		Store:    store,
	})
	mux.Handle("/mcp", mcpSrv.HTTPHandler(true))

	httpServer := &http.Server{
		Addr:    "0.0.0.0:" + cfg.Port,
		Handler: mux,
	}

	if cfg.MCPStdio {
		// Stdio mode for local MCP clients; the HTTP API stays up in the
		// background for health checks and ingestion.
		go func() {
			logger.Info("starting HTTP server", "addr", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		logger.Info("starting MCP server (stdio mode)")
		if err := mcpSrv.Run(ctx); err != nil {
			logger.Error("mcp server error", "error", err)
			os.Exit(1)
		}
		return
	}

	go func() {
		logger.Info("starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// sweepSessions evicts idle sessions on a timer until ctx is cancelled.
func sweepSessions(ctx context.Context, sessions *session.Store, ttl time.Duration, logger *slog.Logger) {
	if ttl <= 0 {
		return
	}
	interval := ttl / 2
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				logger.Info("evicted idle sessions", "count", n)
			}
		}
	}
}
