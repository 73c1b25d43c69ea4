package health

import (
	"context"

	"github.com/sony/gobreaker/v2"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the backend answers but the breaker is not closed.
	Degraded Status = "degraded"
	// Unhealthy indicates the backend does not answer.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status  Status
	Backend string
	Checks  map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	backend BackendPinger
	name    string
	breaker BreakerStater
}

// New creates a Service. breaker can be nil.
func New(backend BackendPinger, name string, breaker BreakerStater) *Service {
	return &Service{backend: backend, name: name, breaker: breaker}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if s.breaker != nil {
		if s.breaker.State() == gobreaker.StateClosed {
			checks["breaker"] = CheckOK
		} else {
			checks["breaker"] = CheckError
			status = Degraded
		}
	}

	if err := s.backend.Ping(ctx); err != nil {
		checks["backend"] = CheckError
		status = Unhealthy
	} else {
		checks["backend"] = CheckOK
	}

	return Report{Status: status, Backend: s.name, Checks: checks}
}
