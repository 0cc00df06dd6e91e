// Package storage defines the persistence interface for containers, items,
// and their paired vector entries.
package storage

import (
	"context"
	"errors"

	"github.com/dokoapp/doko/internal/models"
)

var (
	// ErrNotFound is returned when a referenced container or item does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotEmpty is returned when deleting a container that still holds items
	// or child containers.
	ErrNotEmpty = errors.New("container not empty")
	// ErrCycleDetected is returned when a parent assignment would make the
	// container graph cyclic. Checked on every structural mutation, not at
	// read time.
	ErrCycleDetected = errors.New("container cycle detected")
	// ErrCorruptContainerGraph is returned when a path walk revisits a
	// container. This indicates corrupted data, never a valid state.
	ErrCorruptContainerGraph = errors.New("corrupt container graph")
	// ErrInvalidInput is returned for empty names and other rejected fields,
	// before any state change.
	ErrInvalidInput = errors.New("invalid input")
)

// Store defines container and item persistence. Every Item row is paired with
// exactly one vector row; mutating operations that touch the pair commit both
// in a single transaction so a half-written pair is never visible.
type Store interface {
	// Container operations
	CreateContainer(ctx context.Context, input *models.ContainerInput) (*models.Container, error)
	GetContainer(ctx context.Context, id string) (*models.Container, error)
	UpdateContainer(ctx context.Context, id, name, location, parentID string) error
	DeleteContainer(ctx context.Context, id string) error
	ListContainers(ctx context.Context) ([]*models.Container, error)
	// ContainerPath returns display labels from the root container down to id.
	ContainerPath(ctx context.Context, id string) ([]string, error)

	// Item operations. CreateItem persists the item row together with its
	// vector entry; DeleteItem removes both.
	CreateItem(ctx context.Context, item *models.Item, vec []float32) error
	GetItem(ctx context.Context, id string) (*models.Item, error)
	ListItemsByContainer(ctx context.Context, containerID string) ([]*models.Item, error)
	MoveItem(ctx context.Context, itemID, containerID string) error
	UpdateItemText(ctx context.Context, itemID, name, description string, vec []float32) error
	DeleteItem(ctx context.Context, itemID string) (*models.Item, error)

	// HydrateByEmbeddingIDs looks up items for vector-entry ids, preserving
	// input order and silently skipping unknown ids (an item deleted between
	// search and hydration simply disappears from the result).
	HydrateByEmbeddingIDs(ctx context.Context, embeddingIDs []string) ([]*models.Item, error)
	// AllVectors returns every stored vector entry, for index rebuild at startup.
	AllVectors(ctx context.Context) ([]*models.VectorEntry, error)

	// Import log
	CreateImport(ctx context.Context, source, containerID string) (*models.ImportRecord, error)
	UpdateImport(ctx context.Context, id, status, detail string) error
	ListImports(ctx context.Context, limit int) ([]*models.ImportRecord, error)

	// Stats
	CountContainers(ctx context.Context) (int64, error)
	CountItems(ctx context.Context) (int64, error)
	CountVectors(ctx context.Context) (int64, error)

	Close() error
}
