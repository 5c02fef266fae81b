//go:build integration

package index

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupQdrant connects to a local Qdrant with a throwaway collection.
// Skips the test if Qdrant is not running.
func setupQdrant(t *testing.T) *Qdrant {
	t.Helper()
	q, err := NewQdrant("localhost", 6334, "test-"+uuid.New().String(), 3)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func qdrantEntry(docID string, seq int, vector []float32) Entry {
	return Entry{
		Chunk: Chunk{
			ID:         uuid.New().String(),
			DocumentID: docID,
			Seq:        seq,
			Text:       "some chunk text",
		},
		Vector: vector,
	}
}

func TestQdrant_ReplaceSupersedesPriorGeneration(t *testing.T) {
	q := setupQdrant(t)
	ctx := context.Background()
	docID := uuid.New().String()

	first := []Entry{
		qdrantEntry(docID, 0, []float32{1, 0, 0}),
		qdrantEntry(docID, 1, []float32{0, 1, 0}),
	}
	require.NoError(t, q.Replace(ctx, docID, first))

	second := []Entry{
		qdrantEntry(docID, 0, []float32{0, 0, 1}),
	}
	require.NoError(t, q.Replace(ctx, docID, second))

	// Only the new generation survives; the old chunk ids are gone.
	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := q.Query(ctx, []float32{0, 0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, second[0].Chunk.ID, results[0].Chunk.ID)
	assert.Equal(t, docID, results[0].Chunk.DocumentID)
}

func TestQdrant_ReplaceWithNilClearsDocument(t *testing.T) {
	q := setupQdrant(t)
	ctx := context.Background()
	docID := uuid.New().String()

	require.NoError(t, q.Replace(ctx, docID, []Entry{
		qdrantEntry(docID, 0, []float32{1, 0, 0}),
	}))
	require.NoError(t, q.Replace(ctx, docID, nil))

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestQdrant_ReplaceKeepsOtherDocuments(t *testing.T) {
	q := setupQdrant(t)
	ctx := context.Background()
	docA := uuid.New().String()
	docB := uuid.New().String()

	require.NoError(t, q.Replace(ctx, docA, []Entry{
		qdrantEntry(docA, 0, []float32{1, 0, 0}),
	}))
	require.NoError(t, q.Replace(ctx, docB, []Entry{
		qdrantEntry(docB, 0, []float32{0, 1, 0}),
	}))
	require.NoError(t, q.Replace(ctx, docA, []Entry{
		qdrantEntry(docA, 0, []float32{0, 0, 1}),
	}))

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := q.Query(ctx, []float32{0, 1, 0}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, docB, results[0].Chunk.DocumentID)
}
