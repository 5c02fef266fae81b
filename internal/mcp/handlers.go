package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ragkit/ragserver/internal/agent"
	"github.com/ragkit/ragserver/internal/index"
	"github.com/ragkit/ragserver/internal/retriever"
)

// makeAskHandler creates the ask_question tool handler, delegating to the
// same agent the HTTP layer uses.
func makeAskHandler(svc *agent.Service) func(
	context.Context, *mcp.CallToolRequest, AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, AskOutput, error,
	) {
		answer, err := svc.Ask(ctx, input.Question, input.SessionID)
		if err != nil {
			return nil, AskOutput{}, fmt.Errorf("ask failed: %w", err)
		}

		sources := answer.Sources
		if sources == nil {
			sources = []agent.Source{}
		}
		return nil, AskOutput{
			Answer:    answer.Text,
			Sources:   sources,
			Grounded:  answer.Grounded,
			SessionID: answer.SessionID,
		}, nil
	}
}

// makeSearchHandler creates the search_chunks tool handler. Search flow:
// embed the query, rank against the index, drop results below the score
// threshold.
func makeSearchHandler(embedder retriever.Embedder, store index.Store) func(
	context.Context, *mcp.CallToolRequest, SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
		*mcp.CallToolResult, SearchOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = 5
		}
		minScore := 0.3
		if input.MinScore != nil {
			minScore = *input.MinScore
		}

		vector, err := embedder.EmbedOne(ctx, input.Query)
		if err != nil {
			return nil, SearchOutput{}, fmt.Errorf("failed to embed query: %w", err)
		}
		if vector == nil {
			return nil, SearchOutput{Results: []SearchResult{}, Message: "Empty query."}, nil
		}

		scored, err := store.Query(ctx, vector, maxResults)
		if err != nil {
			return nil, SearchOutput{}, fmt.Errorf("search failed: %w", err)
		}

		results := make([]SearchResult, 0, len(scored))
		for _, s := range scored {
			if s.Score < minScore {
				continue
			}
			results = append(results, SearchResult{
				ChunkID:    s.Chunk.ID,
				DocumentID: s.Chunk.DocumentID,
				Section:    s.Chunk.Section,
				Text:       s.Chunk.Text,
				Score:      s.Score,
			})
		}

		if len(results) == 0 {
			return nil, SearchOutput{
				Results: []SearchResult{},
				Message: "No matching chunks found. Try broader search terms.",
			}, nil
		}
		return nil, SearchOutput{Results: results}, nil
	}
}
