package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory exact brute-force search. The default;
	// correct and fast enough for a household-scale corpus.
	IndexTypeMemory IndexType = "memory"
)

// NewIndex creates a vector index of the specified type.
// Supported types: "memory" (default). Approximate implementations can be
// added here without changing the Search contract for callers.
func NewIndex(indexType IndexType, dims int) (Index, error) {
	switch indexType {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dims)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory)", indexType)
	}
}
