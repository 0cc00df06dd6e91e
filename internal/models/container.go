// Package models defines core data structures for containers, items, queries, and results.
package models

import "time"

// Container is a storage location: a shelf, a bin, a drawer. Containers nest
// via ParentID and form a tree; the store rejects any mutation that would
// introduce a cycle.
type Container struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Location  string    `json:"location,omitempty" db:"location"`
	ParentID  string    `json:"parent_id,omitempty" db:"parent_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ContainerInput is the input for creating a container.
type ContainerInput struct {
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
}

// PathLabel is the display label used when rendering a container path:
// "Garage (north wall)" when a location is set, otherwise just the name.
func (c *Container) PathLabel() string {
	if c.Location != "" {
		return c.Name + " (" + c.Location + ")"
	}
	return c.Name
}
