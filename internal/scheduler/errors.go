// Package scheduler implements directory-priority scheduling for the catalog
// crawl: all products of one directory are resolved before the next
// directory's products are dispatched, and directories are visited in
// ascending hierarchy-level order.
package scheduler

import "errors"

// Error types for the scheduler package.
var (
	// ErrUnknownDirectory is returned when a product or priority query
	// references a directory path that was never registered.
	ErrUnknownDirectory = errors.New("unknown directory")

	// ErrUnknownProduct is returned when an outcome report references a
	// product URL that was never discovered.
	ErrUnknownProduct = errors.New("unknown product")

	// ErrInvalidLevel is returned when a directory is registered with a
	// non-positive hierarchy level.
	ErrInvalidLevel = errors.New("directory level must be positive")

	// ErrEmptyFingerprint is returned when a request without a fingerprint is
	// added to the queue.
	ErrEmptyFingerprint = errors.New("request fingerprint is empty")
)
