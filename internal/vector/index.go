// Package vector provides vector index and similarity search.
package vector

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrDuplicateID is returned by Insert when the id is already present.
	ErrDuplicateID = errors.New("duplicate vector id")
	// ErrNotFound is returned by Update and Remove when the id is absent.
	ErrNotFound = errors.New("vector id not found")
	// ErrInvalidK is returned by Search when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
)

// Index defines vector storage and similarity search over unit-normalized
// vectors. Implementations must be safe for concurrent use.
type Index interface {
	// Insert adds a vector under id. Fails with ErrDuplicateID if id is
	// already present and ErrDimensionMismatch on a wrong-length vector.
	Insert(ctx context.Context, id string, vec []float32) error
	// Update replaces the vector stored under id. Fails with ErrNotFound.
	Update(ctx context.Context, id string, vec []float32) error
	// Remove deletes the vector stored under id. Fails with ErrNotFound.
	Remove(ctx context.Context, id string) error
	// Search returns up to k hits ordered by descending cosine similarity,
	// equal scores ordered by ascending id. An empty index yields an empty
	// result, not an error.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	Size() int
	Close() error
}

// Hit is a single vector search hit.
type Hit struct {
	ID    string
	Score float64 // cosine similarity in [-1, 1]
}
