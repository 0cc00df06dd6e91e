package models

import "time"

// OutcomeStatus is the per-photo result of a batch ingest.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// IngestOutcome reports what happened to one photo in a batch. One photo's
// failure never blocks the rest of the batch; nothing is retried automatically.
type IngestOutcome struct {
	Source string        `json:"source,omitempty"`
	Status OutcomeStatus `json:"status"`
	ItemID string        `json:"item_id,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// Import log statuses, in lifecycle order.
const (
	ImportStatusQueued     = "queued"
	ImportStatusProcessing = "processing"
	ImportStatusComplete   = "complete"
	ImportStatusFailed     = "failed"
)

// ImportRecord is an audit row for an upload batch.
type ImportRecord struct {
	ID          string    `json:"id" db:"id"`
	Source      string    `json:"source" db:"source"`
	Status      string    `json:"status" db:"status"`
	Detail      string    `json:"detail,omitempty" db:"detail"`
	ContainerID string    `json:"container_id" db:"container_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
