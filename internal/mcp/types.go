// Package mcp exposes the answering pipeline as MCP tools.
package mcp

import "github.com/ragkit/ragserver/internal/agent"

// AskInput defines the input parameters for the ask_question tool.
type AskInput struct {
	// Question is the natural-language question to answer.
	Question string `json:"question" jsonschema:"required,description=The natural-language question to answer"`
	// SessionID continues an existing conversation; empty starts a new one.
	SessionID string `json:"session_id,omitempty" jsonschema:"description=Session id for conversation continuity; empty starts a new session"`
}

// AskOutput contains the generated answer with attribution.
type AskOutput struct {
	Answer    string         `json:"answer"`
	Sources   []agent.Source `json:"sources"`
	Grounded  bool           `json:"grounded"`
	SessionID string         `json:"session_id"`
}

// SearchInput defines the input parameters for the search_chunks tool.
type SearchInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The semantic search query"`
	// MaxResults is the maximum number of chunks to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of chunks to return"`
	// MinScore is the minimum cosine similarity threshold. A pointer so an
	// explicit 0 (no filtering) is distinguishable from unset (default 0.3).
	MinScore *float64 `json:"min_score,omitempty" jsonschema:"minimum=0,maximum=1,default=0.3,description=Minimum similarity score threshold (0-1)"`
}

// SearchResult is one matching chunk.
type SearchResult struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Section    string  `json:"section,omitempty"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// SearchOutput contains the search results.
type SearchOutput struct {
	Results []SearchResult `json:"results"`
	// Message provides informational context when nothing matched.
	Message string `json:"message,omitempty"`
}
