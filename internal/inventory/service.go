// Package inventory coordinates item and container mutations across the
// store, the vector index, and the browse index.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dokoapp/doko/internal/embedding"
	"github.com/dokoapp/doko/internal/keyword"
	"github.com/dokoapp/doko/internal/models"
	"github.com/dokoapp/doko/internal/storage"
	"github.com/dokoapp/doko/internal/vector"
)

// Service serializes all mutations behind one mutex so the store and the
// in-memory index never interleave half-finished pairs. Reads go straight to
// the store and may observe state from before an in-flight mutation commits.
type Service struct {
	store   storage.Store
	index   vector.Index
	gateway *embedding.Gateway
	browse  keyword.Index
	logger  *zap.Logger

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithBrowseIndex attaches a browse index kept in sync on a best-effort
// basis. Browse failures are logged, never surfaced to the caller.
func WithBrowseIndex(idx keyword.Index) Option {
	return func(s *Service) {
		s.browse = idx
	}
}

// NewService creates the mutation coordinator.
func NewService(store storage.Store, index vector.Index, gateway *embedding.Gateway, opts ...Option) *Service {
	s := &Service{
		store:   store,
		index:   index,
		gateway: gateway,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rebuild loads every stored vector into the index. Called once at startup,
// before the service accepts mutations.
func (s *Service) Rebuild(ctx context.Context) error {
	entries, err := s.store.AllVectors(ctx)
	if err != nil {
		return fmt.Errorf("failed to load vectors: %w", err)
	}
	for _, e := range entries {
		if err := s.index.Insert(ctx, e.ID, e.Vector); err != nil {
			return fmt.Errorf("failed to rebuild index entry %s: %w", e.ID, err)
		}
	}
	s.logger.Info("vector index rebuilt", zap.Int("entries", len(entries)))
	return nil
}

// AddItem embeds the item text and commits the item row and its vector entry
// together. The store commit and the index insert happen under the mutation
// lock; if the index insert fails the store commit is rolled back with a
// compensating delete so no unpaired item survives.
func (s *Service) AddItem(ctx context.Context, containerID, name, description, imageRef string) (*models.Item, error) {
	item := &models.Item{
		ID:          uuid.New().String(),
		ContainerID: containerID,
		Name:        name,
		Description: description,
		ImageRef:    imageRef,
		EmbeddingID: uuid.New().String(),
	}
	vec, err := s.gateway.Embed(ctx, item.EmbeddingText())
	if err != nil {
		return nil, fmt.Errorf("failed to embed item: %w", err)
	}
	vec = vector.Normalize(vec)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.CreateItem(ctx, item, vec); err != nil {
		return nil, err
	}
	if err := s.index.Insert(ctx, item.EmbeddingID, vec); err != nil {
		if _, delErr := s.store.DeleteItem(ctx, item.ID); delErr != nil {
			s.logger.Error("compensating delete failed, item has no index entry",
				zap.String("item_id", item.ID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to index item: %w", err)
	}
	s.syncBrowse(ctx, item)

	stored, err := s.store.GetItem(ctx, item.ID)
	if err != nil {
		return item, nil
	}
	return stored, nil
}

// EditItem replaces an item's name and description, re-embeds the new text,
// and swaps the vector in both halves.
func (s *Service) EditItem(ctx context.Context, itemID, name, description string) (*models.Item, error) {
	probe := &models.Item{Name: name, Description: description}
	vec, err := s.gateway.Embed(ctx, probe.EmbeddingText())
	if err != nil {
		return nil, fmt.Errorf("failed to embed item: %w", err)
	}
	vec = vector.Normalize(vec)

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateItemText(ctx, itemID, name, description, vec); err != nil {
		return nil, err
	}
	if err := s.index.Update(ctx, item.EmbeddingID, vec); err != nil {
		if errors.Is(err, vector.ErrNotFound) {
			err = s.index.Insert(ctx, item.EmbeddingID, vec)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update index entry: %w", err)
		}
	}
	updated, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	s.syncBrowse(ctx, updated)
	return updated, nil
}

// RemoveItem deletes the item row and its vector entry together, then drops
// the in-memory index entry. The stored image is left in the asset store
// because content-addressed refs may be shared between items.
func (s *Service) RemoveItem(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.store.DeleteItem(ctx, itemID)
	if err != nil {
		return err
	}
	if err := s.index.Remove(ctx, item.EmbeddingID); err != nil && !errors.Is(err, vector.ErrNotFound) {
		return fmt.Errorf("failed to remove index entry: %w", err)
	}
	if s.browse != nil {
		if err := s.browse.Delete(ctx, itemID); err != nil {
			s.logger.Warn("browse index delete failed", zap.String("item_id", itemID), zap.Error(err))
		}
	}
	return nil
}

// MoveItem reassigns an item to another container. The vector is untouched:
// location is not part of the embedded text.
func (s *Service) MoveItem(ctx context.Context, itemID, containerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.MoveItem(ctx, itemID, containerID)
}

// GetItem returns a single item.
func (s *Service) GetItem(ctx context.Context, itemID string) (*models.Item, error) {
	return s.store.GetItem(ctx, itemID)
}

// ListItems returns the items stored directly in a container.
func (s *Service) ListItems(ctx context.Context, containerID string) ([]*models.Item, error) {
	return s.store.ListItemsByContainer(ctx, containerID)
}

// CreateContainer creates a container.
func (s *Service) CreateContainer(ctx context.Context, input *models.ContainerInput) (*models.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.CreateContainer(ctx, input)
}

// GetContainer returns a single container.
func (s *Service) GetContainer(ctx context.Context, id string) (*models.Container, error) {
	return s.store.GetContainer(ctx, id)
}

// UpdateContainer renames, relocates, or reparents a container. Reparenting
// that would close a cycle is rejected by the store before any change.
func (s *Service) UpdateContainer(ctx context.Context, id, name, location, parentID string) (*models.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.UpdateContainer(ctx, id, name, location, parentID); err != nil {
		return nil, err
	}
	return s.store.GetContainer(ctx, id)
}

// DeleteContainer deletes an empty container.
func (s *Service) DeleteContainer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.DeleteContainer(ctx, id)
}

// ListContainers returns all containers.
func (s *Service) ListContainers(ctx context.Context) ([]*models.Container, error) {
	return s.store.ListContainers(ctx)
}

// ContainerPath returns display labels from the root down to id.
func (s *Service) ContainerPath(ctx context.Context, id string) ([]string, error) {
	return s.store.ContainerPath(ctx, id)
}

// Browse runs a keyword search over item names and descriptions and hydrates
// the hits. Items deleted since indexing are skipped.
func (s *Service) Browse(ctx context.Context, query string, limit int) ([]*models.Item, error) {
	if s.browse == nil {
		return nil, errors.New("browse index not configured")
	}
	hits, err := s.browse.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Item, 0, len(hits))
	for _, hit := range hits {
		item, err := s.store.GetItem(ctx, hit.ItemID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Stats describes the current inventory size.
type Stats struct {
	Containers int64 `json:"containers"`
	Items      int64 `json:"items"`
	Vectors    int64 `json:"vectors"`
	IndexSize  int   `json:"index_size"`
	CacheSize  int   `json:"embedding_cache_size"`
}

// Stats returns store and index counts.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	containers, err := s.store.CountContainers(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.store.CountItems(ctx)
	if err != nil {
		return nil, err
	}
	vectors, err := s.store.CountVectors(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Containers: containers,
		Items:      items,
		Vectors:    vectors,
		IndexSize:  s.index.Size(),
		CacheSize:  s.gateway.CacheLen(),
	}, nil
}

func (s *Service) syncBrowse(ctx context.Context, item *models.Item) {
	if s.browse == nil {
		return
	}
	if err := s.browse.Index(ctx, item); err != nil {
		s.logger.Warn("browse index update failed", zap.String("item_id", item.ID), zap.Error(err))
	}
}
