package index

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Qdrant is the remote Store backend. It keeps the same contract as Memory;
// ranking is delegated to Qdrant's cosine distance over the same normalized
// vectors.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	dimension  int
	version    atomic.Uint64
}

// NewQdrant connects to a Qdrant instance, verifies health with retry, and
// ensures the collection exists with cosine distance vectors of the given
// dimension.
func NewQdrant(host string, port int, collection string, dimension int) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	q := &Qdrant{
		client:     client,
		collection: collection,
		dimension:  dimension,
	}

	ctx := context.Background()
	if err := q.healthWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if err := q.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return q, nil
}

func (q *Qdrant) healthWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return q.Health(ctx)
	}, backoff.WithContext(b, ctx))
}

// Health performs a single health check against Qdrant.
func (q *Qdrant) Health(ctx context.Context) error {
	result, err := q.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// ensureCollection creates the collection and payload indexes if missing.
// Idempotent.
func (q *Qdrant) ensureCollection(ctx context.Context) error {
	collections, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range collections {
		if name == q.collection {
			return nil
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	// Replace filters points by these fields, so they need indexes.
	for _, field := range []string{"document_id", "generation"} {
		_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("create %s index: %w", field, err)
		}
	}
	return nil
}

// Replace upserts the new generation of the document's points under a fresh
// generation tag, then deletes every older generation. Qdrant has no atomic
// multi-point swap, so a concurrent query may transiently see both
// generations (duplicates), but never a gap where the document is absent.
func (q *Qdrant) Replace(ctx context.Context, documentID string, entries []Entry) error {
	for i, e := range entries {
		if len(e.Vector) != q.dimension {
			return fmt.Errorf("%w: entry %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(e.Vector), q.dimension)
		}
	}

	generation := uuid.New().String()

	batchSize := 100
	for i := 0; i < len(entries); i += batchSize {
		end := min(i+batchSize, len(entries))
		batch := entries[i:end]

		points := make([]*qdrant.PointStruct, len(batch))
		for j, e := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(e.Chunk.ID),
				Vectors: qdrant.NewVectors(e.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"document_id": e.Chunk.DocumentID,
					"generation":  generation,
					"seq":         e.Chunk.Seq,
					"start":       e.Chunk.Start,
					"end":         e.Chunk.End,
					"section":     e.Chunk.Section,
					"text":        e.Chunk.Text,
				}),
			}
		}
		if err := q.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", i, end, err)
		}
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", documentID),
			},
			MustNot: []*qdrant.Condition{
				qdrant.NewMatch("generation", generation),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("delete stale generations: %w", err)
	}

	q.version.Add(1)
	return nil
}

func (q *Qdrant) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	}, backoff.WithContext(b, ctx))
}

// Query performs vector similarity search and returns scored chunks in
// Qdrant's descending score order.
func (q *Qdrant) Query(ctx context.Context, vector []float32, k int) ([]Scored, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(vector) != q.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), q.dimension)
	}

	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	scored := make([]Scored, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		scored = append(scored, Scored{
			Chunk: Chunk{
				ID:         result.Id.GetUuid(),
				DocumentID: payload["document_id"].GetStringValue(),
				Seq:        int(payload["seq"].GetIntegerValue()),
				Start:      int(payload["start"].GetIntegerValue()),
				End:        int(payload["end"].GetIntegerValue()),
				Section:    payload["section"].GetStringValue(),
				Text:       payload["text"].GetStringValue(),
			},
			Score: float64(result.Score),
		})
	}
	return scored, nil
}

// Count returns the number of points in the collection.
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	collection, err := q.client.GetCollectionInfo(ctx, q.collection)
	if err != nil {
		return 0, fmt.Errorf("get collection: %w", err)
	}
	return int(collection.GetPointsCount()), nil
}

// Version counts Replace calls made through this client. It is process-local;
// Qdrant itself is the source of truth across processes.
func (q *Qdrant) Version(_ context.Context) (uint64, error) {
	return q.version.Load(), nil
}

// Close closes the underlying client connection.
func (q *Qdrant) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}
