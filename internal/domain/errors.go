package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing entry.
	ErrNotFound = errors.New("not found")

	// ErrInvalidIndexEntry signals an entry that cannot be indexed (no indexed field, no id).
	ErrInvalidIndexEntry = errors.New("invalid index entry")
	// ErrIndexEntryMapping signals a stored value that cannot be decoded into its target field.
	ErrIndexEntryMapping = errors.New("index entry mapping failed")
	// ErrInvalidParams signals a query template / parameter count mismatch.
	ErrInvalidParams = errors.New("invalid query params")

	// ErrInvalidQuery signals query text the backend could not parse or accept.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrServerUnavailable signals an unreachable or failing search backend.
	ErrServerUnavailable = errors.New("search server unavailable")
	// ErrUncategorized signals a backend failure outside the other categories (auth, unknown codes).
	ErrUncategorized = errors.New("uncategorized search error")
)

// SearchError is a backend failure reclassified into the generic taxonomy.
// Kind is one of ErrInvalidQuery, ErrServerUnavailable or ErrUncategorized;
// Err keeps the original backend error.
type SearchError struct {
	Kind    error
	Message string
	Query   string
	Err     error
}

func (e *SearchError) Error() string {
	msg := e.Kind.Error()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Query != "" {
		msg += fmt.Sprintf(" (query %q)", e.Query)
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the original error to errors.Is/As.
func (e *SearchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewInvalidQuery classifies err as a malformed query.
func NewInvalidQuery(message string, err error) *SearchError {
	return &SearchError{Kind: ErrInvalidQuery, Message: message, Err: err}
}

// NewServerUnavailable classifies err as a backend reachability/internal failure.
func NewServerUnavailable(message string, err error) *SearchError {
	return &SearchError{Kind: ErrServerUnavailable, Message: message, Err: err}
}

// NewUncategorized classifies err as an uncategorized backend failure.
func NewUncategorized(message string, err error) *SearchError {
	return &SearchError{Kind: ErrUncategorized, Message: message, Err: err}
}

// Kinds lists the sentinels a caller may see from the search layer, most specific first.
func Kinds() []error {
	return []error{
		ErrNotFound,
		ErrInvalidIndexEntry,
		ErrIndexEntryMapping,
		ErrInvalidParams,
		ErrInvalidQuery,
		ErrServerUnavailable,
		ErrUncategorized,
	}
}

// KindOf returns the first taxonomy sentinel err matches, or nil.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range Kinds() {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
