package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dokoapp/doko/internal/models"
)

// InboxIngester adapts the coordinator to single-file ingestion for the inbox
// watcher. Every file lands in the configured container.
type InboxIngester struct {
	Coordinator *Coordinator
	ContainerID string
}

// IngestFile reads the photo at path and ingests it as a one-photo batch.
func (in *InboxIngester) IngestFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read photo: %w", err)
	}
	outcomes, err := in.Coordinator.IngestBatch(ctx, "inbox", in.ContainerID, []Photo{
		{Source: filepath.Base(path), Data: data},
	})
	if err != nil {
		return err
	}
	if outcomes[0].Status != models.OutcomeSucceeded {
		return errors.New(outcomes[0].Reason)
	}
	return nil
}
