// Package index stores chunk embeddings and answers nearest-neighbor
// queries. Two backends implement Store: an in-process index with snapshot
// persistence, and a Qdrant-backed index for larger deployments.
package index

import (
	"context"
	"time"
)

// Document is a source document as ingested. Documents are immutable;
// re-ingesting the same Source supersedes the prior generation of chunks.
type Document struct {
	ID         string // UUID
	Source     string // path or URI the text came from
	Text       string
	IngestedAt time.Time
}

// Chunk is a bounded span of a document's text, the unit of retrieval.
// Text is the exact substring [Start, End) of the parent document.
type Chunk struct {
	ID         string // UUID
	DocumentID string
	Seq        int    // position within the document (0, 1, 2...)
	Start      int    // byte offset into the document text
	End        int
	Section    string // markdown header hierarchy, "" for plain text
	Text       string
}

// Entry pairs a chunk with its embedding vector.
type Entry struct {
	Chunk  Chunk
	Vector []float32
}

// Scored is a query result: a chunk with its cosine similarity to the query.
type Scored struct {
	Chunk Chunk
	Score float64
}

// Store is the vector index contract shared by the memory and qdrant
// backends. Query returns the k entries most similar to the vector, ordered
// by descending cosine similarity with ties broken by insertion order
// (earlier first); k is clamped to the index size and an empty index yields
// an empty result. Replace swaps in a new generation of entries for one
// document, so re-ingestion never duplicates chunks once it returns. The
// memory backend swaps atomically; the qdrant backend upserts the new
// generation before deleting the old, so a concurrent query may transiently
// see both generations but never a gap.
type Store interface {
	Replace(ctx context.Context, documentID string, entries []Entry) error
	Query(ctx context.Context, vector []float32, k int) ([]Scored, error)
	Count(ctx context.Context) (int, error)
	Version(ctx context.Context) (uint64, error)
	Health(ctx context.Context) error
}
