/*
errors.go - Centralized error types for the generic layer

PURPOSE:
  All store-level error types in one place. Domain packages (caja,
  migration) wrap these with their own context.

ERROR CATEGORIES:
  1. Persistence errors - a collection could not be written
  2. Store errors - back-end specific failures (quota, connectivity)

USAGE:
    if errors.Is(err, generic.ErrPersistence) {
        // nothing was written, the previous collection is intact
    }

SEE ALSO:
  - store.go: Uses these errors
  - caja/errors.go: Domain errors built next to these
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPersistence is returned when a collection cannot be saved.
	// The store keeps its previous value for the key.
	ErrPersistence = errors.New("persistence failure")

	// ErrQuotaExceeded is returned by stores with a capacity limit when a
	// write would exceed it.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrIndexOutOfRange is returned by DeleteAt for an index that does not
	// address a record.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrCorruptCollection is returned by LoadCollection when the stored
	// document is valid JSON but its records cannot be decoded.
	ErrCorruptCollection = errors.New("collection holds undecodable records")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PersistenceError reports a failed whole-collection write.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("save %q: %v", e.Key, e.Err)
}

// Is makes errors.Is(err, ErrPersistence) true while Unwrap still exposes
// the back-end cause.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsPersistence returns true if the error is a failed write.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}
