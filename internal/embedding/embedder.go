// Package embedding provides text embedding via a remote model and caching.
package embedding

import (
	"context"
	"errors"
)

var (
	// ErrModelUnavailable is returned when the embedding model cannot be reached
	// or returns a server-side failure.
	ErrModelUnavailable = errors.New("embedding model unavailable")
	// ErrInvalidInput is returned when the model rejects the input text.
	ErrInvalidInput = errors.New("embedding input rejected")
	// ErrTimeout is returned when the embedding call exceeds its deadline.
	ErrTimeout = errors.New("embedding request timed out")
)

// Embedder produces vector embeddings for text. Implementations are
// deterministic: the same text always yields the same vector for a fixed
// model deployment.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
