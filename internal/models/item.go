package models

import "time"

// Item is a physical object stored in exactly one container. Name and
// description are generated by the captioner and user-editable afterward.
// Every item owns exactly one vector entry, referenced by EmbeddingID; the
// pair is created and deleted together.
type Item struct {
	ID          string    `json:"id" db:"id"`
	ContainerID string    `json:"container_id" db:"container_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	ImageRef    string    `json:"image_ref,omitempty" db:"image_ref"`
	EmbeddingID string    `json:"embedding_id" db:"embedding_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// EmbeddingText returns the text an item is embedded from. The container is
// deliberately not part of it: moving an item must not change its vector.
func (i *Item) EmbeddingText() string {
	return i.Name + "\n" + i.Description
}

// VectorEntry is the persisted half of an item's embedding: the unit-normalized
// vector stored alongside the item row so both commit in one transaction.
type VectorEntry struct {
	ID     string    `json:"id" db:"id"`
	ItemID string    `json:"item_id" db:"item_id"`
	Dims   int       `json:"dims" db:"dims"`
	Vector []float32 `json:"-" db:"-"`
}
