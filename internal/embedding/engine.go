package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

// DefaultBatchSize balances requests-per-minute vs tokens-per-minute rate
// limits. The API accepts up to 2048 inputs per call.
const DefaultBatchSize = 500

// Engine generates embeddings with batching and exponential backoff on
// transient backend errors. It is stateless: a given text and model always
// produce the same vector regardless of batching.
type Engine struct {
	client    *openai.Client
	model     string
	dimension int
	batchSize int
}

// NewEngine creates an Engine for the given model and output dimension.
// batchSize <= 0 selects DefaultBatchSize.
func NewEngine(client *openai.Client, model string, dimension, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Engine{
		client:    client,
		model:     model,
		dimension: dimension,
		batchSize: batchSize,
	}
}

// Dimension returns the configured output vector size.
func (e *Engine) Dimension() int { return e.dimension }

// Embed returns one vector per input text, preserving order. Blank inputs
// yield a nil vector at their position rather than failing the batch.
// Transient backend failures surface ErrUnavailable after bounded retries.
func (e *Engine) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	// Skip blank entries; remember where the rest belong.
	var pending []string
	var positions []int
	for i, t := range texts {
		if t == "" {
			continue
		}
		pending = append(pending, t)
		positions = append(positions, i)
	}

	for i := 0; i < len(pending); i += e.batchSize {
		end := min(i+e.batchSize, len(pending))
		batch := pending[i:end]

		embedded, err := e.embedBatchWithRetry(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		for j, v := range embedded {
			vectors[positions[i+j]] = v
		}
	}
	return vectors, nil
}

// EmbedOne embeds a single query string. Blank input yields a nil vector.
func (e *Engine) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Health verifies the backend is reachable without side effects.
func (e *Engine) Health(ctx context.Context) error {
	_, err := e.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// embedBatchWithRetry embeds one batch, retrying rate-limit and server
// errors with exponential backoff. Other API errors fail immediately.
func (e *Engine) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	operation := func() error {
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model:      openai.EmbeddingModel(e.model),
			Dimensions: openai.Int(int64(e.dimension)),
		})
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts)))
		}

		embeddings = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			if len(data.Embedding) != e.dimension {
				return backoff.Permanent(fmt.Errorf("embedding %d has %d dimensions, expected %d",
					i, len(data.Embedding), e.dimension))
			}
			embeddings[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		if isRetryable(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return embeddings, nil
}

// isRetryable reports whether the error is a transient backend condition:
// rate limiting, server errors, or a network failure.
func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	// Non-API errors from the transport are network-level.
	return !errors.Is(err, context.Canceled)
}

// toFloat32 converts the API's float64 vectors to the float32 the index
// stores.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
