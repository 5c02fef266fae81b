// Package retriever embeds a question and fetches the top-k candidate
// chunks above the similarity threshold.
package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ragkit/ragserver/internal/index"
)

// Embedder is the slice of the embedding engine the retriever needs.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Retriever orchestrates query embedding and nearest-neighbor search.
type Retriever struct {
	embedder Embedder
	store    index.Store
	topK     int
	minScore float64
	logger   *slog.Logger
}

// New creates a Retriever. Candidates scoring below minScore are discarded
// even if fewer than topK remain; retrieving nothing is a valid outcome that
// downstream components handle by answering without grounding.
func New(embedder Embedder, store index.Store, topK int, minScore float64, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		topK:     topK,
		minScore: minScore,
		logger:   logger,
	}
}

// Retrieve returns the ranked chunks relevant to the question, highest
// similarity first. An empty result means nothing in the index passed the
// threshold.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]index.Scored, error) {
	vector, err := r.embedder.EmbedOne(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if vector == nil {
		return nil, nil
	}

	candidates, err := r.store.Query(ctx, vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	results := candidates[:0:0]
	for _, c := range candidates {
		if c.Score >= r.minScore {
			results = append(results, c)
		}
	}
	r.logger.Debug("retrieved chunks",
		"candidates", len(candidates),
		"above_threshold", len(results),
	)
	return results, nil
}
