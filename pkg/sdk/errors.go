package searchdex

import "github.com/kailas-cloud/searchdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound          = domain.ErrNotFound
	ErrInvalidEntry      = domain.ErrInvalidIndexEntry
	ErrMapping           = domain.ErrIndexEntryMapping
	ErrInvalidParams     = domain.ErrInvalidParams
	ErrInvalidQuery      = domain.ErrInvalidQuery
	ErrServerUnavailable = domain.ErrServerUnavailable
	ErrUncategorized     = domain.ErrUncategorized
)

// SearchError carries the classified backend failure; see errors.As.
type SearchError = domain.SearchError
