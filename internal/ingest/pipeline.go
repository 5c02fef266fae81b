// Package ingest turns raw documents into embedded index entries.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ragkit/ragserver/internal/chunker"
	"github.com/ragkit/ragserver/internal/index"
)

// RawDocument is an ingestion input. Source is the stable identity of the
// document: re-ingesting the same Source replaces its prior chunks instead
// of duplicating them.
type RawDocument struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Embedder is the slice of the embedding engine the pipeline needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// FailedDoc records a document that could not be ingested.
type FailedDoc struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// Result contains statistics about one ingestion run.
type Result struct {
	Documents    int           `json:"documents"`
	Chunks       int           `json:"chunks"`
	Failed       []FailedDoc   `json:"failed,omitempty"`
	IndexVersion uint64        `json:"index_version"`
	Duration     time.Duration `json:"-"`
}

// Pipeline orchestrates chunking, embedding, and index replacement.
type Pipeline struct {
	chunker  *chunker.Chunker
	markdown *chunker.Markdown
	embedder Embedder
	store    index.Store
	logger   *slog.Logger
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(ch *chunker.Chunker, md *chunker.Markdown, embedder Embedder, store index.Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		chunker:  ch,
		markdown: md,
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Ingest processes a batch of documents. A document that fails is recorded
// and skipped; the rest of the batch continues.
func (p *Pipeline) Ingest(ctx context.Context, docs []RawDocument) (*Result, error) {
	start := time.Now()
	result := &Result{}

	for _, doc := range docs {
		n, err := p.ingestDocument(ctx, doc)
		if err != nil {
			p.logger.Warn("failed to ingest document", "source", doc.Source, "error", err)
			result.Failed = append(result.Failed, FailedDoc{Source: doc.Source, Reason: err.Error()})
			continue
		}
		result.Documents++
		result.Chunks += n
	}

	version, err := p.store.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("index version: %w", err)
	}
	result.IndexVersion = version
	result.Duration = time.Since(start)

	p.logger.Info("ingestion complete",
		"documents", result.Documents,
		"failed", len(result.Failed),
		"chunks", result.Chunks,
		"index_version", result.IndexVersion,
		"duration", result.Duration,
	)
	return result, nil
}

// ingestDocument chunks, embeds, and stores one document. Returns the
// number of chunks indexed.
func (p *Pipeline) ingestDocument(ctx context.Context, doc RawDocument) (int, error) {
	if doc.Source == "" {
		return 0, fmt.Errorf("document has no source")
	}

	// The document id is derived from the source so a re-ingested document
	// replaces its own generation of chunks.
	docID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(doc.Source)).String()

	chunks, err := p.chunkDocument(docID, doc)
	if err != nil {
		return 0, fmt.Errorf("chunk: %w", err)
	}
	if len(chunks) == 0 {
		// Empty document: drop any prior generation and index nothing.
		return 0, p.store.Replace(ctx, docID, nil)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}

	entries := make([]index.Entry, 0, len(chunks))
	for i, c := range chunks {
		if vectors[i] == nil {
			continue
		}
		entries = append(entries, index.Entry{Chunk: c, Vector: vectors[i]})
	}

	if err := p.store.Replace(ctx, docID, entries); err != nil {
		return 0, fmt.Errorf("store: %w", err)
	}

	p.logger.Debug("ingested document", "source", doc.Source, "chunks", len(entries))
	return len(entries), nil
}

// chunkDocument splits a document into chunks. Markdown sources are first
// split into titled sections so chunks never straddle an H1/H2 boundary and
// carry their section for attribution.
func (p *Pipeline) chunkDocument(docID string, doc RawDocument) ([]index.Chunk, error) {
	type region struct {
		title string
		start int
		end   int
	}

	var regions []region
	if isMarkdown(doc.Source) && p.markdown != nil {
		sections, err := p.markdown.Sections([]byte(doc.Text))
		if err != nil {
			return nil, err
		}
		for _, s := range sections {
			regions = append(regions, region{title: s.Title, start: s.Start, end: s.End})
		}
	} else if len(doc.Text) > 0 {
		regions = append(regions, region{start: 0, end: len(doc.Text)})
	}

	var chunks []index.Chunk
	for _, r := range regions {
		for _, span := range p.chunker.Split(doc.Text[r.start:r.end]) {
			start := r.start + span.Start
			end := r.start + span.End
			chunks = append(chunks, index.Chunk{
				ID:         uuid.New().String(),
				DocumentID: docID,
				Seq:        len(chunks),
				Start:      start,
				End:        end,
				Section:    r.title,
				Text:       doc.Text[start:end],
			})
		}
	}
	return chunks, nil
}

func isMarkdown(source string) bool {
	s := strings.ToLower(source)
	return strings.HasSuffix(s, ".md") || strings.HasSuffix(s, ".markdown")
}
