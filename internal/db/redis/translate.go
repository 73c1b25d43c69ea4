package redis

import (
	"errors"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/searchdex/internal/domain"
)

var unavailablePrefixes = []string{"LOADING", "BUSY", "MASTERDOWN", "CLUSTERDOWN", "TRYAGAIN", "READONLY"}

var authPrefixes = []string{"NOAUTH", "WRONGPASS", "NOPERM"}

var syntaxMarkers = []string{"syntax error", "unknown field", "invalid query", "parsing error"}

// Classify maps a Redis server error reply (possibly wrapped in *db.Error) to the
// domain taxonomy. Errors that are not Redis replies yield nil.
func Classify(err error) error {
	var re *rueidis.RedisError
	if !errors.As(err, &re) || re.IsNil() {
		return nil
	}
	msg := re.Error()

	for _, p := range unavailablePrefixes {
		if strings.HasPrefix(msg, p) {
			return domain.NewServerUnavailable(msg, err)
		}
	}
	for _, p := range authPrefixes {
		if strings.HasPrefix(msg, p) {
			return domain.NewUncategorized(msg, err)
		}
	}

	lower := strings.ToLower(msg)
	if strings.Contains(lower, "unknown index name") || strings.Contains(lower, "no such index") {
		return domain.NewServerUnavailable(msg, err)
	}
	for _, m := range syntaxMarkers {
		if strings.Contains(lower, m) {
			return domain.NewInvalidQuery(msg, err)
		}
	}
	return nil
}
