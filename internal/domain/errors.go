package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling (OCP compliance).
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - use with errors.Is()
var (
	// ErrNotFound indicates a referenced folder or card id does not exist
	// in the current collection. Recoverable locally by re-fetching.
	ErrNotFound = errors.New("not found")

	// ErrConflict is the class matched by both name and circular conflicts.
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates malformed request input.
	ErrValidation = errors.New("validation failed")

	// ErrStorage indicates the persistence collaborator failed. Potentially
	// retryable; wrapped errors carry the original fault for the retry decision.
	ErrStorage = errors.New("storage error")

	// ErrInvalidData indicates structurally malformed data from storage
	// (e.g. a corrupt folder collection). Fatal for the current load cycle;
	// never coerced to an empty collection, which would mask data loss.
	ErrInvalidData = errors.New("invalid data")

	// ErrQueueCleared resolves waiters abandoned by a queue clear.
	ErrQueueCleared = errors.New("operation queue cleared")
)

// NameConflictError reports a case-insensitive sibling name collision.
// It always carries a suggested unique alternative so resolution UX never
// has to present a bare "try again".
type NameConflictError struct {
	ConflictingID string // id of the existing sibling
	RequestedName string
	SuggestedName string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("folder name %q already exists (suggested: %q)", e.RequestedName, e.SuggestedName)
}

// StatusCode implements the HTTPError interface
func (e *NameConflictError) StatusCode() int { return http.StatusConflict }

// Is allows errors.Is() to match against ErrConflict
func (e *NameConflictError) Is(target error) bool { return target == ErrConflict }

// CircularReferenceError reports a move that would make a folder its own
// ancestor. There is no valid resolution other than a different target, so
// unlike NameConflictError it never carries a suggestion.
type CircularReferenceError struct {
	SourceID string
	TargetID string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("moving folder %s into %s would create a circular reference", e.SourceID, e.TargetID)
}

// StatusCode implements the HTTPError interface
func (e *CircularReferenceError) StatusCode() int { return http.StatusConflict }

// Is allows errors.Is() to match against ErrConflict
func (e *CircularReferenceError) Is(target error) bool { return target == ErrConflict }

// IsConflict reports whether err is a structured, user-resolvable conflict.
// The operation queue pauses on these instead of discarding the head item.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
