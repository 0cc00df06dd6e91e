package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryIndex is an in-memory exact brute-force index. Vectors are normalized
// to unit length at insert so search reduces to a dot product. At household
// scale (hundreds to low thousands of vectors) exact search is both correct
// and fast enough; approximate implementations plug in behind the same
// Index contract via the factory.
type MemoryIndex struct {
	dims    int
	entries map[string][]float32
	mu      sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dims int) (*MemoryIndex, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dims)
	}
	return &MemoryIndex{
		dims:    dims,
		entries: make(map[string][]float32),
	}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Insert adds a vector under id, normalizing it to unit length.
func (m *MemoryIndex) Insert(ctx context.Context, id string, vec []float32) error {
	if len(vec) != m.dims {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), m.dims)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	m.entries[id] = Normalize(vec)
	return nil
}

// Update replaces the vector stored under id.
func (m *MemoryIndex) Update(ctx context.Context, id string, vec []float32) error {
	if len(vec) != m.dims {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), m.dims)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.entries[id] = Normalize(vec)
	return nil
}

// Remove deletes the vector stored under id.
func (m *MemoryIndex) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.entries, id)
	return nil
}

// Search returns the top-k entries by cosine similarity. The query is
// normalized here so callers may pass raw model output. Ordering is
// deterministic: descending score, then ascending id.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(query) != m.dims {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), m.dims)
	}
	q := Normalize(query)
	m.mu.RLock()
	defer m.mu.RUnlock()
	hits := make([]Hit, 0, len(m.entries))
	for id, vec := range m.entries {
		hits = append(hits, Hit{ID: id, Score: InnerProduct(q, vec)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
