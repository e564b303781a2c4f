package metrics_test

import (
	"testing"
	"time"

	"github.com/conduit-run/conduit/pkg/metrics"
)

func TestElementSnapshotReflectsCounters(t *testing.T) {
	e := metrics.NewElement(2, "conduit.Filter")
	e.IncrementIn()
	e.IncrementIn()
	e.IncrementOut()
	e.IncrementError()
	e.AddElapsed(5 * time.Millisecond)

	s := e.Snapshot()
	if s.StageIndex != 2 || s.StageID != "conduit.Filter" {
		t.Fatalf("got %+v", s)
	}
	if s.ItemsIn != 2 || s.ItemsOut != 1 || s.Errors != 1 {
		t.Fatalf("got %+v", s)
	}
	if s.Elapsed != 5*time.Millisecond {
		t.Fatalf("got elapsed %v", s.Elapsed)
	}
}

func TestRunSnapshotAggregatesElementsAndThroughput(t *testing.T) {
	r := metrics.NewRun()
	if r.ID == "" {
		t.Fatal("expected a generated run ID")
	}

	e1 := metrics.NewElement(0, "conduit.Input")
	e2 := metrics.NewElement(1, "conduit.Console")
	r.AddElement(e1)
	r.AddElement(e2)
	r.RecordProcessed(3)
	r.Finish()

	snap := r.Snapshot()
	if snap.RunID != r.ID {
		t.Fatalf("got %q", snap.RunID)
	}
	if snap.TotalItemsProcessed != 3 {
		t.Fatalf("got %d", snap.TotalItemsProcessed)
	}
	if len(snap.ElementMetrics) != 2 {
		t.Fatalf("got %d element snapshots", len(snap.ElementMetrics))
	}
}

func TestRunSnapshotBeforeFinishStillComputesDuration(t *testing.T) {
	r := metrics.NewRun()
	r.RecordProcessed(1)
	snap := r.Snapshot()
	if snap.Duration <= 0 {
		t.Fatalf("got duration %v, want > 0", snap.Duration)
	}
}

func TestTwoRunsHaveDistinctIDs(t *testing.T) {
	r1 := metrics.NewRun()
	r2 := metrics.NewRun()
	if r1.ID == r2.ID {
		t.Fatal("expected distinct run IDs")
	}
}
