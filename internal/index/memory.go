package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

// snapshot is an immutable generation of the index. Queries read one
// snapshot end to end; writers build a new snapshot and swap the pointer,
// so a query never observes a half-built index.
type snapshot struct {
	entries []Entry // insertion order; vectors L2-normalized
	version uint64
}

// Memory is the in-process Store: exact brute-force cosine similarity over
// L2-normalized vectors, copy-on-write snapshots for atomic rebuilds.
type Memory struct {
	dimension int

	mu   sync.Mutex // serializes writers only
	snap atomic.Pointer[snapshot]
}

// NewMemory creates an empty in-memory index for vectors of the given
// dimension.
func NewMemory(dimension int) *Memory {
	m := &Memory{dimension: dimension}
	m.snap.Store(&snapshot{})
	return m
}

// Replace swaps in a new generation of entries for one document. Entries of
// other documents are retained in their original insertion order; the
// replaced document's entries are appended, so a re-ingested document ranks
// as freshly inserted on score ties.
func (m *Memory) Replace(_ context.Context, documentID string, entries []Entry) error {
	for i, e := range entries {
		if len(e.Vector) != m.dimension {
			return fmt.Errorf("%w: entry %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(e.Vector), m.dimension)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.snap.Load()
	next := make([]Entry, 0, len(cur.entries)+len(entries))
	for _, e := range cur.entries {
		if e.Chunk.DocumentID != documentID {
			next = append(next, e)
		}
	}
	for _, e := range entries {
		e.Vector = normalize(e.Vector)
		next = append(next, e)
	}

	m.snap.Store(&snapshot{entries: next, version: cur.version + 1})
	return nil
}

// Query returns the k entries with highest cosine similarity to vector,
// descending, ties broken by insertion order. An empty index returns an
// empty result; k larger than the index is clamped.
func (m *Memory) Query(_ context.Context, vector []float32, k int) ([]Scored, error) {
	snap := m.snap.Load()
	if len(snap.entries) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vector) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), m.dimension)
	}

	q := normalize(vector)
	scores := make([]float64, len(snap.entries))
	for i, e := range snap.entries {
		scores[i] = dot(e.Vector, q)
	}

	order := make([]int, len(snap.entries))
	for i := range order {
		order[i] = i
	}
	// Stable sort keeps insertion order among equal scores.
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}
	results := make([]Scored, 0, k)
	for _, idx := range order[:k] {
		results = append(results, Scored{Chunk: snap.entries[idx].Chunk, Score: scores[idx]})
	}
	return results, nil
}

// Count returns the number of entries in the current snapshot.
func (m *Memory) Count(_ context.Context) (int, error) {
	return len(m.snap.Load().entries), nil
}

// Version returns the rebuild generation, starting at 0 for an empty index
// and incrementing on every Replace.
func (m *Memory) Version(_ context.Context) (uint64, error) {
	return m.snap.Load().version, nil
}

// Health always succeeds for the in-process backend.
func (m *Memory) Health(_ context.Context) error { return nil }

// Dimension returns the configured vector size.
func (m *Memory) Dimension() int { return m.dimension }

// normalize returns an L2-normalized copy of v. A zero vector is returned
// unchanged so it scores 0 against everything.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
