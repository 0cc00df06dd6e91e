// Package ingest turns batches of item photos into inventory entries.
package ingest

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dokoapp/doko/internal/assets"
	"github.com/dokoapp/doko/internal/caption"
	"github.com/dokoapp/doko/internal/inventory"
	"github.com/dokoapp/doko/internal/models"
	"github.com/dokoapp/doko/internal/storage"
)

// Photo is one image queued for ingestion. Source is a display name for the
// outcome report, typically the original filename.
type Photo struct {
	Source string
	Data   []byte
}

// Coordinator captions, stores, and registers photos as items. Photos in a
// batch are independent: one failure never aborts the others, and every photo
// gets exactly one outcome.
type Coordinator struct {
	service   *inventory.Service
	captioner caption.Captioner
	assets    assets.Store
	store     storage.Store
	logger    *zap.Logger

	concurrency int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithConcurrency caps how many photos are processed at once.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// NewCoordinator creates an ingestion coordinator.
func NewCoordinator(service *inventory.Service, captioner caption.Captioner, assetStore assets.Store, store storage.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		service:     service,
		captioner:   captioner,
		assets:      assetStore,
		store:       store,
		logger:      zap.NewNop(),
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IngestBatch processes photos destined for one container and returns an
// outcome per photo, in input order. The returned error covers only batch
// bookkeeping; per-photo failures are reported in the outcomes. A canceled
// context fails the photos not yet started.
func (c *Coordinator) IngestBatch(ctx context.Context, source, containerID string, photos []Photo) ([]*models.IngestOutcome, error) {
	if _, err := c.service.GetContainer(ctx, containerID); err != nil {
		return nil, err
	}

	record, err := c.store.CreateImport(ctx, source, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to create import record: %w", err)
	}
	c.markImport(ctx, record.ID, models.ImportStatusProcessing, "")

	outcomes := make([]*models.IngestOutcome, len(photos))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, photo := range photos {
		i, photo := i, photo
		g.Go(func() error {
			outcome := c.ingestOne(gctx, containerID, photo)
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, o := range outcomes {
		if o.Status == models.OutcomeSucceeded {
			succeeded++
		}
	}
	detail := fmt.Sprintf("%d of %d succeeded", succeeded, len(photos))
	status := models.ImportStatusComplete
	if succeeded == 0 && len(photos) > 0 {
		status = models.ImportStatusFailed
	}
	c.markImport(ctx, record.ID, status, detail)
	c.logger.Info("ingest batch finished",
		zap.String("import_id", record.ID),
		zap.String("container_id", containerID),
		zap.Int("photos", len(photos)),
		zap.Int("succeeded", succeeded))

	return outcomes, nil
}

// ingestOne runs the caption, store, register pipeline for a single photo.
func (c *Coordinator) ingestOne(ctx context.Context, containerID string, photo Photo) *models.IngestOutcome {
	fail := func(stage string, err error) *models.IngestOutcome {
		c.logger.Warn("photo ingest failed",
			zap.String("source", photo.Source),
			zap.String("stage", stage),
			zap.Error(err))
		return &models.IngestOutcome{
			Source: photo.Source,
			Status: models.OutcomeFailed,
			Reason: fmt.Sprintf("%s: %v", stage, err),
		}
	}

	if err := ctx.Err(); err != nil {
		return fail("canceled", err)
	}

	info, err := c.captioner.Describe(ctx, photo.Data)
	if err != nil {
		return fail("caption", err)
	}
	ref, err := c.assets.Put(photo.Data)
	if err != nil {
		return fail("store image", err)
	}
	item, err := c.service.AddItem(ctx, containerID, info.Name, info.Description, ref)
	if err != nil {
		return fail("register item", err)
	}

	return &models.IngestOutcome{
		Source: photo.Source,
		Status: models.OutcomeSucceeded,
		ItemID: item.ID,
	}
}

func (c *Coordinator) markImport(ctx context.Context, id, status, detail string) {
	if err := c.store.UpdateImport(ctx, id, status, detail); err != nil {
		c.logger.Warn("failed to update import record", zap.String("import_id", id), zap.Error(err))
	}
}
