package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dokoapp/doko/internal/models"
)

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "browse.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestBleveIndex_IndexAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	items := []*models.Item{
		{ID: "1", Name: "cordless drill", Description: "a battery powered drill"},
		{ID: "2", Name: "box of paperclips", Description: "small metal paperclips"},
		{ID: "3", Name: "tap and die set", Description: "tools for cutting threads"},
	}
	for _, it := range items {
		if err := idx.Index(ctx, it); err != nil {
			t.Fatal(err)
		}
	}

	count, err := idx.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected 3 docs, got %d", count)
	}

	hits, err := idx.Search(ctx, "drill", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ItemID != "1" {
		t.Errorf("hits: %+v", hits)
	}

	// Description text is searchable too.
	hits, err = idx.Search(ctx, "threads", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ItemID != "3" {
		t.Errorf("hits: %+v", hits)
	}
}

func TestBleveIndex_ReindexReplaces(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Index(ctx, &models.Item{ID: "1", Name: "hammer", Description: "claw hammer"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Index(ctx, &models.Item{ID: "1", Name: "mallet", Description: "rubber mallet"}); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search(ctx, "hammer", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("old text still matches: %+v", hits)
	}
	hits, err = idx.Search(ctx, "mallet", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("new text does not match: %+v", hits)
	}
}

func TestBleveIndex_Delete(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Index(ctx, &models.Item{ID: "1", Name: "ladder", Description: "step ladder"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Delete(ctx, "1"); err != nil {
		t.Fatal(err)
	}
	hits, err := idx.Search(ctx, "ladder", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("deleted item still matches: %+v", hits)
	}
	// Unknown id delete is a no-op.
	if err := idx.Delete(ctx, "missing"); err != nil {
		t.Errorf("delete of unknown id: %v", err)
	}
}
