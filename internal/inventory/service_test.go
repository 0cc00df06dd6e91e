package inventory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dokoapp/doko/internal/embedding"
	"github.com/dokoapp/doko/internal/models"
	"github.com/dokoapp/doko/internal/storage"
	"github.com/dokoapp/doko/internal/vector"
)

const testDims = 64

func newTestService(t *testing.T, opts ...Option) (*Service, storage.Store, vector.Index) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	idx, err := vector.NewIndex(vector.IndexTypeMemory, testDims)
	if err != nil {
		t.Fatal(err)
	}
	gateway := embedding.NewGateway(embedding.NewMockEmbedder(testDims), 128)
	return NewService(store, idx, gateway, opts...), store, idx
}

func TestService_AddItemPairsRows(t *testing.T) {
	svc, store, idx := newTestService(t)
	ctx := context.Background()

	bin, err := svc.CreateContainer(ctx, &models.ContainerInput{Name: "Bin"})
	if err != nil {
		t.Fatal(err)
	}
	item, err := svc.AddItem(ctx, bin.ID, "cordless drill", "a battery powered drill", "")
	if err != nil {
		t.Fatal(err)
	}
	if item.EmbeddingID == "" {
		t.Fatal("item has no embedding id")
	}

	items, _ := store.CountItems(ctx)
	vecs, _ := store.CountVectors(ctx)
	if items != 1 || vecs != 1 || idx.Size() != 1 {
		t.Errorf("counts after add: items=%d vectors=%d index=%d", items, vecs, idx.Size())
	}
}

func TestService_AddItemUnknownContainer(t *testing.T) {
	svc, store, idx := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "missing", "hammer", "claw hammer", "")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	items, _ := store.CountItems(ctx)
	if items != 0 || idx.Size() != 0 {
		t.Errorf("failed add left state behind: items=%d index=%d", items, idx.Size())
	}
}

// failOnInsertIndex wraps an index and fails the first Insert, to exercise
// the compensating delete.
type failOnInsertIndex struct {
	vector.Index
	failed bool
}

func (f *failOnInsertIndex) Insert(ctx context.Context, id string, vec []float32) error {
	if !f.failed {
		f.failed = true
		return errors.New("injected insert failure")
	}
	return f.Index.Insert(ctx, id, vec)
}

func TestService_AddItemRollsBackOnIndexFailure(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	inner, err := vector.NewIndex(vector.IndexTypeMemory, testDims)
	if err != nil {
		t.Fatal(err)
	}
	idx := &failOnInsertIndex{Index: inner}
	gateway := embedding.NewGateway(embedding.NewMockEmbedder(testDims), 128)
	svc := NewService(store, idx, gateway)
	ctx := context.Background()

	bin, err := svc.CreateContainer(ctx, &models.ContainerInput{Name: "Bin"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddItem(ctx, bin.ID, "tape", "duct tape", ""); err == nil {
		t.Fatal("expected error from injected index failure")
	}

	items, _ := store.CountItems(ctx)
	vecs, _ := store.CountVectors(ctx)
	if items != 0 || vecs != 0 {
		t.Errorf("compensating delete did not run: items=%d vectors=%d", items, vecs)
	}

	// The next add succeeds and leaves a consistent pair.
	if _, err := svc.AddItem(ctx, bin.ID, "tape", "duct tape", ""); err != nil {
		t.Fatal(err)
	}
	items, _ = store.CountItems(ctx)
	if items != 1 || inner.Size() != 1 {
		t.Errorf("counts after retry: items=%d index=%d", items, inner.Size())
	}
}

func TestService_RemoveItemDropsBothHalves(t *testing.T) {
	svc, store, idx := newTestService(t)
	ctx := context.Background()

	bin, _ := svc.CreateContainer(ctx, &models.ContainerInput{Name: "Bin"})
	item, err := svc.AddItem(ctx, bin.ID, "ladder", "step ladder", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.RemoveItem(ctx, item.ID); err != nil {
		t.Fatal(err)
	}
	items, _ := store.CountItems(ctx)
	vecs, _ := store.CountVectors(ctx)
	if items != 0 || vecs != 0 || idx.Size() != 0 {
		t.Errorf("counts after remove: items=%d vectors=%d index=%d", items, vecs, idx.Size())
	}
	if err := svc.RemoveItem(ctx, item.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_EditItemReplacesVector(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	bin, _ := svc.CreateContainer(ctx, &models.ContainerInput{Name: "Bin"})
	item, err := svc.AddItem(ctx, bin.ID, "drill", "a drill", "")
	if err != nil {
		t.Fatal(err)
	}
	before, err := store.AllVectors(ctx)
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.EditItem(ctx, item.ID, "cordless drill", "a battery powered drill")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "cordless drill" {
		t.Errorf("name not updated: %+v", updated)
	}
	after, err := store.AllVectors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(after))
	}
	same := true
	for i := range after[0].Vector {
		if after[0].Vector[i] != before[0].Vector[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("vector unchanged after edit")
	}
}

func TestService_MoveItemKeepsVector(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	a, _ := svc.CreateContainer(ctx, &models.ContainerInput{Name: "A"})
	b, _ := svc.CreateContainer(ctx, &models.ContainerInput{Name: "B"})
	item, err := svc.AddItem(ctx, a.ID, "tape", "duct tape", "")
	if err != nil {
		t.Fatal(err)
	}
	before, _ := store.AllVectors(ctx)

	if err := svc.MoveItem(ctx, item.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := svc.GetItem(ctx, item.ID)
	if got.ContainerID != b.ID {
		t.Errorf("item not moved: %+v", got)
	}
	after, _ := store.AllVectors(ctx)
	for i := range after[0].Vector {
		if after[0].Vector[i] != before[0].Vector[i] {
			t.Fatal("move changed the vector")
		}
	}

	if err := svc.MoveItem(ctx, item.ID, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown container, got %v", err)
	}
}

func TestService_RebuildRestoresIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	idx, _ := vector.NewIndex(vector.IndexTypeMemory, testDims)
	gateway := embedding.NewGateway(embedding.NewMockEmbedder(testDims), 128)
	svc := NewService(store, idx, gateway)
	ctx := context.Background()

	bin, _ := svc.CreateContainer(ctx, &models.ContainerInput{Name: "Bin"})
	if _, err := svc.AddItem(ctx, bin.ID, "drill", "a drill", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddItem(ctx, bin.ID, "tape", "duct tape", ""); err != nil {
		t.Fatal(err)
	}
	store.Close()

	// Simulate a restart: fresh index, reopened store.
	reopened, err := storage.NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	fresh, _ := vector.NewIndex(vector.IndexTypeMemory, testDims)
	restarted := NewService(reopened, fresh, gateway)
	if err := restarted.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}
	if fresh.Size() != 2 {
		t.Errorf("expected 2 index entries after rebuild, got %d", fresh.Size())
	}
}

func TestService_Stats(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	bin, _ := svc.CreateContainer(ctx, &models.ContainerInput{Name: "Bin"})
	if _, err := svc.AddItem(ctx, bin.ID, "drill", "a drill", ""); err != nil {
		t.Fatal(err)
	}
	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Containers != 1 || stats.Items != 1 || stats.Vectors != 1 || stats.IndexSize != 1 {
		t.Errorf("stats: %+v", stats)
	}
}
