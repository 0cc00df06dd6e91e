// Package search provides the semantic retrieval engine.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dokoapp/doko/internal/embedding"
	"github.com/dokoapp/doko/internal/models"
	"github.com/dokoapp/doko/internal/storage"
	"github.com/dokoapp/doko/internal/vector"
)

// Engine answers natural-language queries over the inventory. Ranking comes
// entirely from cosine similarity in the vector index; the store is consulted
// only to hydrate the ranked ids into items and container paths.
type Engine struct {
	store   storage.Store
	gateway *embedding.Gateway
	index   vector.Index
	logger  *zap.Logger

	// queryPrefix is prepended to query text before embedding. Retrieval
	// models distinguish query and passage encodings; items are embedded
	// without it.
	queryPrefix string
	defaultK    int
	maxK        int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithQueryPrefix sets the retrieval prefix prepended to queries.
func WithQueryPrefix(prefix string) Option {
	return func(e *Engine) {
		e.queryPrefix = prefix
	}
}

// WithKLimits sets the default and maximum result counts.
func WithKLimits(defaultK, maxK int) Option {
	return func(e *Engine) {
		if defaultK > 0 {
			e.defaultK = defaultK
		}
		if maxK > 0 {
			e.maxK = maxK
		}
	}
}

// NewEngine creates a retrieval engine.
func NewEngine(store storage.Store, gateway *embedding.Gateway, index vector.Index, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		gateway:  gateway,
		index:    index,
		logger:   zap.NewNop(),
		defaultK: 10,
		maxK:     100,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search embeds the query, ranks all items by cosine similarity, and hydrates
// the top K. Items deleted between ranking and hydration are dropped silently;
// an empty inventory yields an empty result, not an error.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(e.defaultK, e.maxK); err != nil {
		return nil, err
	}

	queryVec, err := e.gateway.Embed(ctx, e.queryPrefix+query.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	hits, err := e.index.Search(ctx, queryVec, query.K)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	ids := make([]string, len(hits))
	scoreByID := make(map[string]float64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ID
		scoreByID[hit.ID] = hit.Score
	}
	items, err := e.store.HydrateByEmbeddingIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate results: %w", err)
	}

	response := &models.SearchResponse{
		Results: make([]*models.SearchResult, 0, len(items)),
		Query:   query.Query,
	}
	for _, item := range items {
		path, err := e.store.ContainerPath(ctx, item.ContainerID)
		if err != nil {
			// A cycle in the stored graph is corruption and aborts the query.
			// A missing container is just a delete racing the search; that
			// result keeps its rank with no path.
			if errors.Is(err, storage.ErrCorruptContainerGraph) {
				return nil, fmt.Errorf("failed to resolve container path for item %s: %w", item.ID, err)
			}
			e.logger.Warn("failed to resolve container path",
				zap.String("item_id", item.ID),
				zap.String("container_id", item.ContainerID),
				zap.Error(err))
			path = nil
		}
		response.Results = append(response.Results, &models.SearchResult{
			Item:          item,
			ContainerPath: path,
			Score:         scoreByID[item.EmbeddingID],
			Rank:          len(response.Results) + 1,
		})
	}
	response.QueryTime = time.Since(startTime).Milliseconds()

	e.logger.Debug("search completed",
		zap.String("query", query.Query),
		zap.Int("k", query.K),
		zap.Int("results", len(response.Results)),
		zap.Int64("query_time_ms", response.QueryTime))
	return response, nil
}
