// Package server exposes the ask/ingest/health operations over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ragkit/ragserver/internal/agent"
	"github.com/ragkit/ragserver/internal/embedding"
	"github.com/ragkit/ragserver/internal/generation"
	"github.com/ragkit/ragserver/internal/ingest"
)

// Asker is the agent surface the HTTP layer consumes.
type Asker interface {
	Ask(ctx context.Context, question, sessionID string) (*agent.Answer, error)
	Health(ctx context.Context) agent.Health
}

// Ingester accepts document batches.
type Ingester interface {
	Ingest(ctx context.Context, docs []ingest.RawDocument) (*ingest.Result, error)
}

// Handler bundles the HTTP endpoints.
type Handler struct {
	asker    Asker
	ingester Ingester
	logger   *slog.Logger
}

// New creates the HTTP handler set.
func New(asker Asker, ingester Ingester, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{asker: asker, ingester: ingester, logger: logger}
}

// Mux returns a ServeMux with all routes registered.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ask", h.handleAsk)
	mux.HandleFunc("POST /ingest", h.handleIngest)
	mux.HandleFunc("GET /health", h.handleHealth)
	return mux
}

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
		return
	}

	answer, err := h.asker.Ask(r.Context(), req.Question, req.SessionID)
	if err != nil {
		status, kind := classify(err)
		h.logger.Warn("ask failed", "kind", kind, "error", err)
		writeError(w, status, kind, err.Error())
		return
	}
	if answer.Sources == nil {
		answer.Sources = []agent.Source{}
	}
	writeJSON(w, http.StatusOK, answer)
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var docs []ingest.RawDocument
	if err := json.NewDecoder(r.Body).Decode(&docs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
		return
	}
	if len(docs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "empty document batch")
		return
	}

	result, err := h.ingester.Ingest(r.Context(), docs)
	if err != nil {
		status, kind := classify(err)
		h.logger.Warn("ingest failed", "kind", kind, "error", err)
		writeError(w, status, kind, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	health := h.asker.Health(ctx)
	status := http.StatusOK
	if !health.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, struct {
		Status string `json:"status"`
		agent.Health
		Timestamp string `json:"timestamp"`
	}{
		Status:    map[bool]string{true: "healthy", false: "unhealthy"}[health.OK],
		Health:    health,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// classify maps the error taxonomy onto HTTP status codes.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, agent.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, generation.ErrProtocol):
		return http.StatusBadGateway, "generation_protocol_error"
	case errors.Is(err, generation.ErrUnavailable):
		return http.StatusServiceUnavailable, "generation_unavailable"
	case errors.Is(err, embedding.ErrUnavailable):
		return http.StatusServiceUnavailable, "embedding_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}
