package bleve

import (
	"errors"

	"github.com/blevesearch/bleve/v2"

	"github.com/kailas-cloud/searchdex/internal/db"
	"github.com/kailas-cloud/searchdex/internal/domain"
)

// Classify maps embedded index failures to the domain taxonomy.
func Classify(err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return domain.NewInvalidQuery(pe.Err.Error(), err)
	}
	if errors.Is(err, db.ErrClosed) || errors.Is(err, bleve.ErrorIndexClosed) {
		return domain.NewServerUnavailable("index closed", err)
	}
	return nil
}
