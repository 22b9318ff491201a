package ollama

import (
	"context"
	"fmt"
	"io"
)

// EnsureReady checks that Ollama is running and the embedding model is
// available, pulling it automatically with progress output written to w.
// The chat model is optional: ingestion and retrieval only need embeddings,
// so a missing chat model is reported but not fatal.
// Returns a non-nil error if Ollama is unreachable or the embed model
// cannot be obtained.
func EnsureReady(ctx context.Context, c *Client, chatModel, embedModel string, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return fmt.Errorf("Ollama is not running. Start it with: ollama serve")
	}

	if err := ensureModel(ctx, c, embedModel, w); err != nil {
		return fmt.Errorf("embedding model unavailable: %w", err)
	}

	if chatModel != "" {
		if err := ensureModel(ctx, c, chatModel, w); err != nil {
			fmt.Fprintf(w, "model %s: unavailable (non-fatal): %v\n", chatModel, err)
		}
	}

	return nil
}

func ensureModel(ctx context.Context, c *Client, model string, w io.Writer) error {
	if c.HasModel(ctx, model) {
		fmt.Fprintf(w, "model %s: ready\n", model)
		return nil
	}

	fmt.Fprintf(w, "model %s: pulling...\n", model)
	err := c.PullModel(ctx, model, func(p PullProgress) {
		if p.Total > 0 {
			pct := float64(p.Completed) / float64(p.Total) * 100
			fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, pct)
		} else {
			fmt.Fprintf(w, "  %s\n", p.Status)
		}
	})
	if err != nil {
		return fmt.Errorf("pulling model %s: %w", model, err)
	}
	fmt.Fprintf(w, "model %s: ready\n", model)
	return nil
}
