package searchdex

import (
	"context"
	"time"

	healthuc "github.com/kailas-cloud/searchdex/internal/usecase/health"
)

// HealthStatus represents the aggregated backend health.
type HealthStatus struct {
	Status  string            // "ok", "degraded", "error"
	Backend string            // driver name
	Checks  map[string]string // component → "ok"/"error"
}

// Health checks the backend and, when enabled, the circuit breaker.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	report := c.healthSvc.Check(ctx)
	c.obs.observe("health", start, nil)

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status:  string(report.Status),
		Backend: report.Backend,
		Checks:  checks,
	}
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
