package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/dokoapp/doko/internal/assets"
	"github.com/dokoapp/doko/internal/caption"
	"github.com/dokoapp/doko/internal/embedding"
	"github.com/dokoapp/doko/internal/inventory"
	"github.com/dokoapp/doko/internal/models"
	"github.com/dokoapp/doko/internal/storage"
	"github.com/dokoapp/doko/internal/vector"
)

const testDims = 64

type fixture struct {
	coordinator *Coordinator
	service     *inventory.Service
	store       storage.Store
	containerID string
}

func newFixture(t *testing.T, captioner caption.Captioner) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	assetStore, err := assets.NewBoltStore(filepath.Join(dir, "assets.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { assetStore.Close() })
	idx, err := vector.NewIndex(vector.IndexTypeMemory, testDims)
	if err != nil {
		t.Fatal(err)
	}
	gateway := embedding.NewGateway(embedding.NewMockEmbedder(testDims), 128)
	svc := inventory.NewService(store, idx, gateway)

	bin, err := svc.CreateContainer(context.Background(), &models.ContainerInput{Name: "Bin"})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		coordinator: NewCoordinator(svc, captioner, assetStore, store, WithConcurrency(2)),
		service:     svc,
		store:       store,
		containerID: bin.ID,
	}
}

func TestCoordinator_IngestBatch(t *testing.T) {
	f := newFixture(t, &caption.MockCaptioner{
		DescribeFunc: func(ctx context.Context, image []byte) (*caption.ItemInfo, error) {
			return &caption.ItemInfo{
				Name:        fmt.Sprintf("item %s", image),
				Description: "a thing from the bin",
			}, nil
		},
	})
	ctx := context.Background()

	photos := []Photo{
		{Source: "a.jpg", Data: []byte("a")},
		{Source: "b.jpg", Data: []byte("b")},
		{Source: "c.jpg", Data: []byte("c")},
	}
	outcomes, err := f.coordinator.IngestBatch(ctx, "upload", f.containerID, photos)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	for i, o := range outcomes {
		if o.Source != photos[i].Source {
			t.Errorf("outcome %d has source %q, want %q", i, o.Source, photos[i].Source)
		}
		if o.Status != models.OutcomeSucceeded || o.ItemID == "" {
			t.Errorf("outcome %d: %+v", i, o)
		}
		item, err := f.service.GetItem(ctx, o.ItemID)
		if err != nil {
			t.Fatal(err)
		}
		if item.ImageRef == "" {
			t.Errorf("item %s has no image ref", item.ID)
		}
	}

	imports, err := f.store.ListImports(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(imports) != 1 || imports[0].Status != models.ImportStatusComplete {
		t.Errorf("imports: %+v", imports)
	}
	if imports[0].Detail != "3 of 3 succeeded" {
		t.Errorf("detail: %q", imports[0].Detail)
	}
}

func TestCoordinator_FailureDoesNotBlockSiblings(t *testing.T) {
	f := newFixture(t, &caption.MockCaptioner{
		DescribeFunc: func(ctx context.Context, image []byte) (*caption.ItemInfo, error) {
			if string(image) == "bad" {
				return nil, caption.ErrBadImage
			}
			return &caption.ItemInfo{Name: "item " + string(image), Description: "a thing"}, nil
		},
	})
	ctx := context.Background()

	photos := []Photo{
		{Source: "first.jpg", Data: []byte("one")},
		{Source: "broken.jpg", Data: []byte("bad")},
		{Source: "third.jpg", Data: []byte("three")},
	}
	outcomes, err := f.coordinator.IngestBatch(ctx, "upload", f.containerID, photos)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.OutcomeStatus{models.OutcomeSucceeded, models.OutcomeFailed, models.OutcomeSucceeded}
	for i, o := range outcomes {
		if o.Status != want[i] {
			t.Errorf("outcome %d = %s, want %s", i, o.Status, want[i])
		}
	}
	if outcomes[1].Reason == "" {
		t.Error("failed outcome has no reason")
	}

	items, _ := f.store.CountItems(ctx)
	if items != 2 {
		t.Errorf("expected 2 items, got %d", items)
	}
}

func TestCoordinator_AllFailedMarksImportFailed(t *testing.T) {
	f := newFixture(t, &caption.MockCaptioner{Err: errors.New("model offline")})
	ctx := context.Background()

	outcomes, err := f.coordinator.IngestBatch(ctx, "upload", f.containerID, []Photo{
		{Source: "a.jpg", Data: []byte("a")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Status != models.OutcomeFailed {
		t.Errorf("outcome: %+v", outcomes[0])
	}
	imports, _ := f.store.ListImports(ctx, 10)
	if len(imports) != 1 || imports[0].Status != models.ImportStatusFailed {
		t.Errorf("imports: %+v", imports)
	}
}

func TestCoordinator_UnknownContainer(t *testing.T) {
	f := newFixture(t, &caption.MockCaptioner{})
	_, err := f.coordinator.IngestBatch(context.Background(), "upload", "missing", []Photo{
		{Source: "a.jpg", Data: []byte("a")},
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCoordinator_CanceledContextFailsRemaining(t *testing.T) {
	f := newFixture(t, &caption.MockCaptioner{Info: &caption.ItemInfo{Name: "x", Description: "y"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := f.coordinator.IngestBatch(ctx, "upload", f.containerID, []Photo{
		{Source: "a.jpg", Data: []byte("a")},
		{Source: "b.jpg", Data: []byte("b")},
	})
	if err != nil {
		// Container lookup may itself fail on a canceled context.
		return
	}
	for _, o := range outcomes {
		if o.Status != models.OutcomeFailed {
			t.Errorf("outcome on canceled context: %+v", o)
		}
	}
}
