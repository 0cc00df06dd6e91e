// Package keyword provides exact-word browse search over item names and
// descriptions. It is a convenience surface for the web UI and never feeds
// into semantic ranking.
package keyword

import (
	"context"

	"github.com/dokoapp/doko/internal/models"
)

// Index defines browse search operations over items.
type Index interface {
	Index(ctx context.Context, item *models.Item) error
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	Delete(ctx context.Context, itemID string) error
	DocCount() (uint64, error)
	Close() error
}

// Result is a single browse search hit.
type Result struct {
	ItemID string
	Score  float64
}
