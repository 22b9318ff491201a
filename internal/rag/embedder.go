package rag

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// embedBatchSize bounds how many texts go to the model per call, keeping
// peak memory flat for large documents.
const embedBatchSize = 32

// EmbedClient is the slice of the model client the embedder needs.
// *ollama.Client satisfies it.
type EmbedClient interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// Embedder turns text into fixed-dimension vectors using a model client.
// Batches are split internally; the composed result is positionally
// identical to a single call.
type Embedder struct {
	client EmbedClient
	model  string
	dim    int
}

// NewEmbedder creates an Embedder for the given model. dim is the expected
// vector dimension; vectors of any other length are rejected. Pass 0 to
// skip dimension checks.
func NewEmbedder(client EmbedClient, model string, dim int) *Embedder {
	return &Embedder{client: client, model: model, dim: dim}
}

// Dim returns the configured embedding dimension.
func (e *Embedder) Dim() int { return e.dim }

// EmbedBatch returns one vector per text, in input order. Texts are sent
// in batches of 32, up to four batches in flight.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the model server.

	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.client.Embed(gCtx, e.model, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding texts %d..%d: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding texts %d..%d: got %d vectors for %d texts", start, end, len(vecs), end-start)
			}
			for i, v := range vecs {
				if e.dim > 0 && len(v) != e.dim {
					return fmt.Errorf("embedding text %d: dimension %d, want %d", start+i, len(v), e.dim)
				}
				results[start+i] = v
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// EmbedOne returns the vector for a single text (used for queries).
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
