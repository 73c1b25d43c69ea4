package elastic

import (
	"errors"
	"net/http"

	"github.com/kailas-cloud/searchdex/internal/domain"
)

// parseTypes are the exception types Elasticsearch raises for malformed query text.
var parseTypes = map[string]bool{
	"parse_exception":         true,
	"query_shard_exception":   true,
	"query_parsing_exception": true,
	"parsing_exception":       true,
	"search_parse_exception":  true,
}

// Classify maps an Elasticsearch error response (possibly wrapped in *db.Error) to the
// domain taxonomy. A parse failure anywhere in the cause tree wins over the HTTP status.
func Classify(err error) error {
	var re *ResponseError
	if !errors.As(err, &re) {
		return nil
	}

	for _, c := range re.Causes() {
		if parseTypes[c.Type] {
			return domain.NewInvalidQuery(c.Reason, err)
		}
	}

	reason := re.Cause.Reason
	switch re.Status {
	case http.StatusBadRequest:
		return domain.NewInvalidQuery(reason, err)
	case http.StatusNotFound, http.StatusForbidden,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return domain.NewServerUnavailable(reason, err)
	case http.StatusUnauthorized:
		return domain.NewUncategorized(reason, err)
	}

	switch {
	case re.Status >= 500:
		return domain.NewServerUnavailable(reason, err)
	case re.Status >= 400:
		return domain.NewUncategorized(reason, err)
	}
	return nil
}
