// Package domain provides domain models used across the application.
package domain

import "time"

// DirectoryStatus represents the lifecycle state of a catalog directory.
type DirectoryStatus string

const (
	// DirectoryPending means the directory has been registered but not yet
	// selected as a priority target.
	DirectoryPending DirectoryStatus = "pending"

	// DirectoryActive means the directory has been selected as the current
	// priority target at least once and is not yet completed.
	DirectoryActive DirectoryStatus = "active"

	// DirectoryCompleted means every discovered product in the directory has
	// reached a terminal state. Completed never reverts.
	DirectoryCompleted DirectoryStatus = "completed"
)

// Directory represents a catalog node at a given hierarchy level, grouping
// zero or more products and optional sub-directories.
type Directory struct {
	// Path is the unique hierarchical identifier, e.g. "/electronics/phones".
	Path string `db:"path" json:"path"`

	// Level is the positive hierarchy depth. Level 1 is top-level and has the
	// highest priority.
	Level int `db:"level" json:"level"`

	// ParentPath is a back-reference to the parent directory. Relation only,
	// not ownership; the hierarchy is reconstructed by following ParentPath
	// through the flat directory table.
	ParentPath *string `db:"parent_path" json:"parent_path,omitempty"`

	ProductsTotal     int `db:"products_total" json:"products_total"`
	ProductsCompleted int `db:"products_completed" json:"products_completed"`
	ProductsFailed    int `db:"products_failed" json:"products_failed"`

	Status DirectoryStatus `db:"status" json:"status"`

	DiscoveredAt time.Time  `db:"discovered_at" json:"discovered_at"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Remaining returns the number of products without a terminal outcome.
func (d *Directory) Remaining() int {
	return d.ProductsTotal - d.ProductsCompleted - d.ProductsFailed
}

// CompletionRate returns the fraction of products with a terminal outcome,
// in the range [0, 1]. A directory with no products has rate 0.
func (d *Directory) CompletionRate() float64 {
	if d.ProductsTotal == 0 {
		return 0
	}
	return float64(d.ProductsCompleted+d.ProductsFailed) / float64(d.ProductsTotal)
}

// DirectoryProgress is a snapshot of a directory's progress for reporting.
type DirectoryProgress struct {
	Path              string          `json:"path"`
	Level             int             `json:"level"`
	Status            DirectoryStatus `json:"status"`
	ProductsTotal     int             `json:"products_total"`
	ProductsCompleted int             `json:"products_completed"`
	ProductsFailed    int             `json:"products_failed"`
	ProductsRemaining int             `json:"products_remaining"`
	CompletionRate    float64         `json:"completion_rate"`
}
