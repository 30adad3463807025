package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is matched by every *NotFoundError.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed or out-of-range input. Fields maps a
// request field name to the reason it was rejected.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// Error returns the message followed by the sorted field reasons.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// Invalid builds a ValidationError for a single field. An empty field
// yields an error without field detail.
func Invalid(field, reason string) *ValidationError {
	if field == "" {
		return &ValidationError{Message: reason}
	}
	return &ValidationError{
		Message: "validation error",
		Fields:  map[string]string{field: reason},
	}
}

// NotFoundError reports a lookup of an id that was never issued.
type NotFoundError struct {
	Kind Kind
	ID   int64
}

// Error names the kind and id that were not found.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ExtractionError reports that a URL could not be turned into a readable
// article: the fetch failed, the body was not HTML, or no article body was
// found.
type ExtractionError struct {
	URL string
	Err error
}

// Error includes the URL and the underlying cause.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExtractionError) Unwrap() error { return e.Err }

// RemoteServiceError reports a failed or timed out call to the extraction
// or AI backend. Op names the operation, Target what it was called on.
type RemoteServiceError struct {
	Op     string
	Target string
	Err    error
}

// Error names the operation, its target and the cause.
func (e *RemoteServiceError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RemoteServiceError) Unwrap() error { return e.Err }
