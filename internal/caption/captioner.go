// Package caption turns item photos into a name/description pair using an
// external vision model.
package caption

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable is returned when the vision service cannot be reached or
	// returns a server-side failure (quota, outage).
	ErrUnavailable = errors.New("captioning service unavailable")
	// ErrBadImage is returned when the service rejects the image or returns a
	// malformed description.
	ErrBadImage = errors.New("captioning rejected image")
	// ErrTimeout is returned when the captioning call exceeds its deadline.
	ErrTimeout = errors.New("captioning request timed out")
)

// ItemInfo is the structured output of a captioning call.
type ItemInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Captioner describes the object in a photo.
type Captioner interface {
	Describe(ctx context.Context, image []byte) (*ItemInfo, error)
}
