// Package agent orchestrates a question through retrieval, prompt assembly,
// and generation, and owns all writes to session memory.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ragkit/ragserver/internal/index"
	"github.com/ragkit/ragserver/internal/prompt"
	"github.com/ragkit/ragserver/internal/session"
)

// ErrInvalidInput rejects an empty question before retrieval.
var ErrInvalidInput = errors.New("question must not be empty")

// snippetLen bounds the attribution snippet carried in responses.
const snippetLen = 200

// Source attributes part of an answer to a chunk that was in the prompt.
type Source struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
}

// Answer is the result of one Ask request. Grounded is true when at least
// one retrieved chunk above the similarity threshold made it into the
// prompt.
type Answer struct {
	Text      string   `json:"answer"`
	Sources   []Source `json:"sources"`
	Grounded  bool     `json:"grounded"`
	SessionID string   `json:"session_id"`
}

// Retriever returns ranked chunks for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]index.Scored, error)
}

// Generator produces answer text for an assembled prompt.
type Generator interface {
	Complete(ctx context.Context, p prompt.Prompt) (string, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Service wires the pipeline together. It is the single component that
// appends to session memory.
type Service struct {
	retriever Retriever
	builder   *prompt.Builder
	generator Generator
	sessions  *session.Store
	logger    *slog.Logger

	embeddingHealth  HealthChecker
	indexHealth      HealthChecker
	generationHealth HealthChecker
}

// Config holds the Service dependencies.
type Config struct {
	Retriever Retriever
	Builder   *prompt.Builder
	Generator Generator
	Sessions  *session.Store
	Logger    *slog.Logger

	EmbeddingHealth  HealthChecker
	IndexHealth      HealthChecker
	GenerationHealth HealthChecker
}

// New creates a Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		retriever:        cfg.Retriever,
		builder:          cfg.Builder,
		generator:        cfg.Generator,
		sessions:         cfg.Sessions,
		logger:           logger,
		embeddingHealth:  cfg.EmbeddingHealth,
		indexHealth:      cfg.IndexHealth,
		generationHealth: cfg.GenerationHealth,
	}
}

// Ask answers a question within a session. A blank session id starts a new
// session. On any failure the session is left untouched; a turn is recorded
// only after a complete answer is assembled, and only if the request has
// not been aborted.
func (s *Service) Ask(ctx context.Context, question, sessionID string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrInvalidInput
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	start := time.Now()
	history := s.sessions.History(sessionID, 0)

	chunks, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	p := s.builder.Build(question, chunks, history)

	text, err := s.generator.Complete(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	answer := &Answer{
		Text:      text,
		Sources:   make([]Source, 0, len(p.Included)),
		Grounded:  p.Grounded,
		SessionID: sessionID,
	}
	sourceIDs := make([]string, 0, len(p.Included))
	for _, c := range p.Included {
		answer.Sources = append(answer.Sources, Source{
			ChunkID:    c.Chunk.ID,
			DocumentID: c.Chunk.DocumentID,
			Snippet:    snippet(c.Chunk.Text),
			Score:      c.Score,
		})
		sourceIDs = append(sourceIDs, c.Chunk.ID)
	}

	// An aborted request discards its result instead of recording a turn.
	if ctx.Err() == nil {
		now := time.Now()
		s.sessions.Append(sessionID,
			session.Message{Role: session.RoleQuestion, Text: question, Time: now},
			session.Message{Role: session.RoleAnswer, Text: text, Time: now, SourceIDs: sourceIDs},
		)
	}

	s.logger.Info("answered question",
		"session", sessionID,
		"grounded", answer.Grounded,
		"sources", len(answer.Sources),
		"duration", time.Since(start),
	)
	return answer, nil
}

// Health reports reachability of each external dependency. No side effects.
type Health struct {
	Embedding  string `json:"embedding"`
	Index      string `json:"index"`
	Generation string `json:"generation"`
	OK         bool   `json:"-"`
}

// Health checks every dependency and reports per-component status.
func (s *Service) Health(ctx context.Context) Health {
	h := Health{OK: true}
	h.Embedding = checkStatus(ctx, s.embeddingHealth, &h.OK)
	h.Index = checkStatus(ctx, s.indexHealth, &h.OK)
	h.Generation = checkStatus(ctx, s.generationHealth, &h.OK)
	return h
}

func checkStatus(ctx context.Context, hc HealthChecker, ok *bool) string {
	if hc == nil {
		return "unconfigured"
	}
	if err := hc.Health(ctx); err != nil {
		*ok = false
		return "unreachable"
	}
	return "ok"
}

func snippet(text string) string {
	if len(text) <= snippetLen {
		return text
	}
	return text[:snippetLen] + "..."
}
