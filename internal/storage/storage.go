// Package storage persists change artifacts (proposal, specifications,
// task breakdown) and their review histories. Artifact existence on disk
// is the driver's idempotency signal, so Exists always consults storage
// at call time and is never cached.
package storage

import (
	"github.com/boshu2/changeops/internal/review"
)

// Store is the artifact persistence interface the driver consumes.
type Store interface {
	// Exists reports whether the named artifact is present in storage.
	// Derived from storage at call time, never cached.
	Exists(name string) bool

	// Read returns the artifact content.
	Read(name string) (string, error)

	// Write persists the artifact content, creating parent directories
	// as needed.
	Write(name, content string) error

	// AppendReview appends one review to the artifact's review history.
	// Reviews are never mutated in place; the latest review is the most
	// recently appended one.
	AppendReview(name string, r review.Review) error

	// Reviews returns the full review history for an artifact in append
	// order. A missing history is empty, not an error.
	Reviews(name string) ([]review.Review, error)
}
