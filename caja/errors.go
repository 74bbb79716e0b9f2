package caja

import (
	"errors"
	"fmt"

	"github.com/warp/caja-engine/generic"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when user input is rejected before any
	// record is touched.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when an index does not address a record.
	ErrNotFound = errors.New("caja not found")

	// ErrClosed is returned when loading funds into a closed register.
	ErrClosed = errors.New("caja is closed")

	// ErrAlreadyClosed is returned when closing a register twice.
	ErrAlreadyClosed = errors.New("caja already closed")

	// ErrInvalidAmount is returned for unparseable, non-positive, negative or
	// over-balance amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNoClosures signals that there is nothing to report: no register has
	// been closed yet. It is not a failure.
	ErrNoClosures = errors.New("no closed cajas to report")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Code classifies an OperationError.
type Code string

const (
	CodeNotFound      Code = "NotFound"
	CodeClosed        Code = "Closed"
	CodeAlreadyClosed Code = "AlreadyClosed"
	CodeInvalidAmount Code = "InvalidAmount"
)

// OperationError reports a request the record's current state does not
// allow. No mutation was applied.
type OperationError struct {
	Op     string
	Code   Code
	Index  int
	Detail string
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s caja[%d]: %s", e.Op, e.Index, e.Code)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	switch e.Code {
	case CodeNotFound:
		return ErrNotFound
	case CodeClosed:
		return ErrClosed
	case CodeAlreadyClosed:
		return ErrAlreadyClosed
	case CodeInvalidAmount:
		return ErrInvalidAmount
	}
	return nil
}

// NotFoundError is the read-path "nothing to show".
type NotFoundError struct {
	Index int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("caja[%d] not found", e.Index)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the request itself
// (input or record state) rather than the store.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrClosed) ||
		errors.Is(err, ErrAlreadyClosed) ||
		errors.Is(err, ErrInvalidAmount)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPersistence returns true if the collection could not be written.
func IsPersistence(err error) bool {
	return generic.IsPersistence(err)
}
