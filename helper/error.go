package helper

import (
	"errors"
	"fmt"
)

// Error kinds shared by every pipeline stage. Callers match them with errors.Is.
var (
	// ErrInvalidInput marks malformed papers, queries or configuration. Never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrProviderTransient marks rate limits, timeouts and empty provider responses.
	ErrProviderTransient = errors.New("provider transient failure")
	// ErrProviderFatal marks authentication or quota exhaustion. Surfaced immediately.
	ErrProviderFatal = errors.New("provider fatal failure")
	// ErrIndexUnavailable marks an unreachable dense or sparse index.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrBudgetExceeded is returned when not even one chunk fits into the context budget.
	ErrBudgetExceeded = errors.New("insufficient evidence: context budget exceeded")
	// ErrNotFound marks lookups of unknown papers or jobs.
	ErrNotFound = errors.New("not found")
)

var kinds = []error{
	ErrInvalidInput,
	ErrProviderTransient,
	ErrProviderFatal,
	ErrIndexUnavailable,
	ErrBudgetExceeded,
	ErrNotFound,
}

// Error wraps an error with the operation that failed.
type Error struct {
	Operation string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("error in %s: %v", e.Operation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with the name of the failing operation.
// It returns nil if err is nil.
func NewError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Operation: operation, Err: err}
}

// Wrap creates an error of the given kind with a formatted message.
func Wrap(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// KindOf returns the taxonomy sentinel err belongs to, or nil if it has none.
func KindOf(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
