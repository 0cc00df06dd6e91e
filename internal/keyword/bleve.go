package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/dokoapp/doko/internal/models"
)

// itemDoc is the shape indexed per item.
type itemDoc struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// reused; remove the directory to force a rebuild after a mapping change.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so "drill" matches
	// exactly what was written, not a stemmed variant.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("name", textFieldMapping)
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	im.AddDocumentMapping("item", docMapping)
	im.DefaultType = "item"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open browse index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create browse index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes an item's name and description under its id. Re-indexing the
// same id replaces the previous document.
func (b *BleveIndex) Index(ctx context.Context, item *models.Item) error {
	return b.index.Index(item.ID, &itemDoc{
		Name:        item.Name,
		Description: item.Description,
	})
}

// Search runs a match query over name and description and returns up to limit
// hits in Bleve score order.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("browse search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ItemID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Delete removes an item from the index. Deleting an unknown id is a no-op.
func (b *BleveIndex) Delete(ctx context.Context, itemID string) error {
	return b.index.Delete(itemID)
}

// DocCount returns the number of indexed items.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
