package health

import (
	"context"

	"github.com/sony/gobreaker/v2"
)

// BackendPinger checks search backend availability.
type BackendPinger interface {
	Ping(ctx context.Context) error
}

// BreakerStater exposes the backend circuit breaker state.
type BreakerStater interface {
	State() gobreaker.State
}
