package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveTransition(t *testing.T) {
	before := testutil.ToFloat64(DialogueTransitions.WithLabelValues("2", "3"))
	ObserveTransition(2, 3)
	ObserveTransition(3, 3)
	if got := testutil.ToFloat64(DialogueTransitions.WithLabelValues("2", "3")); got != before+1 {
		t.Errorf("2->3 transitions = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(DialogueTransitions.WithLabelValues("3", "3")); got != 0 {
		t.Errorf("unchanged step should not be recorded, got %v", got)
	}
}

func TestObserveHTTP(t *testing.T) {
	ObserveHTTP("GET", "/health", 200, 5*time.Millisecond)
	if n := testutil.CollectAndCount(HTTPRequestDuration); n == 0 {
		t.Error("expected at least one http series")
	}
}
