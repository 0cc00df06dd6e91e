// Package assets provides content-addressed storage for item photos. Only the
// returned reference is persisted in the inventory; the blobs themselves live
// in a bbolt file next to the database.
package assets

import "errors"

// ErrNotFound is returned when no blob exists for a reference.
var ErrNotFound = errors.New("asset not found")

// Store persists image blobs by content-addressed reference.
type Store interface {
	// Put stores the image and returns its reference. Storing the same bytes
	// twice returns the same reference (content addressing).
	Put(image []byte) (string, error)
	// Get returns the image for ref, or ErrNotFound.
	Get(ref string) ([]byte, error)
	// Delete removes the image for ref. Deleting an absent ref is a no-op.
	Delete(ref string) error
	Close() error
}
