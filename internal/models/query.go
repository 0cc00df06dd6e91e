package models

import (
	"errors"
	"strings"
)

// ErrInvalidQuery is returned for an empty or whitespace-only search query,
// before any embedding call is made.
var ErrInvalidQuery = errors.New("query cannot be empty")

// SearchQuery represents a semantic search request.
type SearchQuery struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// Validate checks the query and normalizes K.
// Returns ErrInvalidQuery when the query text is empty; K defaults to
// defaultK and is capped at maxK.
func (q *SearchQuery) Validate(defaultK, maxK int) error {
	if strings.TrimSpace(q.Query) == "" {
		return ErrInvalidQuery
	}
	if q.K <= 0 {
		q.K = defaultK
	}
	if q.K > maxK {
		q.K = maxK
	}
	return nil
}
