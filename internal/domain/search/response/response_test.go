package response

import (
	"testing"
	"time"

	"github.com/kailas-cloud/searchdex/internal/domain/entry"
)

func TestNew_Empty(t *testing.T) {
	r := New(3*time.Millisecond, 0)

	if r.Entries == nil || r.Scores == nil {
		t.Fatal("expected non-nil slices")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
	if _, ok := r.First(); ok {
		t.Error("expected First() to report no entry")
	}
}

func TestAppend_KeepsScoresAligned(t *testing.T) {
	r := New(time.Millisecond, 10)
	r.Append(entry.Entry{"id": "a"}, 1.5)
	r.Append(entry.Entry{"id": "b"}, 0.5)

	if r.Len() != 2 || len(r.Scores) != 2 {
		t.Fatalf("got %d entries, %d scores", r.Len(), len(r.Scores))
	}
	if r.Scores[1] != 0.5 {
		t.Errorf("Scores[1] = %v, want 0.5", r.Scores[1])
	}
	first, ok := r.First()
	if !ok || first["id"] != "a" {
		t.Errorf("First() = %v, %v", first, ok)
	}
	if r.Total != 10 {
		t.Errorf("Total = %d, want 10", r.Total)
	}
}
