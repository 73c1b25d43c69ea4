package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
)

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(SearchOperationsTotal.WithLabelValues("query", "ok"))
	ObserveOperation("query", "ok", 15*time.Millisecond)

	after := testutil.ToFloat64(SearchOperationsTotal.WithLabelValues("query", "ok"))
	if after != before+1 {
		t.Errorf("expected counter to grow by 1, got %f -> %f", before, after)
	}
	if testutil.CollectAndCount(SearchOperationDuration) == 0 {
		t.Error("expected duration observations")
	}
}

func TestSetBreakerState(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		want  float64
	}{
		{gobreaker.StateClosed, 0},
		{gobreaker.StateHalfOpen, 1},
		{gobreaker.StateOpen, 2},
	}
	for _, tc := range tests {
		SetBreakerState("test", tc.state)
		if got := testutil.ToFloat64(BreakerState.WithLabelValues("test")); got != tc.want {
			t.Errorf("state %s: got %f, want %f", tc.state, got, tc.want)
		}
	}
}
