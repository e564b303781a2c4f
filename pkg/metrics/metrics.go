// Package metrics tracks the per-element and per-run counters: named,
// atomic counters updated from hot paths and read into a snapshot at
// run end.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Element holds the counters for one stage: items_in, items_out,
// elapsed, errors.
type Element struct {
	StageIndex int
	StageID    string

	itemsIn  atomic.Int64
	itemsOut atomic.Int64
	errors   atomic.Int64
	elapsed  atomic.Int64 // nanoseconds
}

func NewElement(index int, id string) *Element {
	return &Element{StageIndex: index, StageID: id}
}

func (e *Element) IncrementIn()           { e.itemsIn.Add(1) }
func (e *Element) IncrementOut()          { e.itemsOut.Add(1) }
func (e *Element) IncrementError()        { e.errors.Add(1) }
func (e *Element) AddElapsed(d time.Duration) { e.elapsed.Add(int64(d)) }

// Snapshot is the read-only view returned to drivers and tests.
type Snapshot struct {
	StageIndex int           `json:"stage_index"`
	StageID    string        `json:"stage_id"`
	ItemsIn    int64         `json:"items_in"`
	ItemsOut   int64         `json:"items_out"`
	Errors     int64         `json:"errors"`
	Elapsed    time.Duration `json:"elapsed"`
}

func (e *Element) Snapshot() Snapshot {
	return Snapshot{
		StageIndex: e.StageIndex,
		StageID:    e.StageID,
		ItemsIn:    e.itemsIn.Load(),
		ItemsOut:   e.itemsOut.Load(),
		Errors:     e.errors.Load(),
		Elapsed:    time.Duration(e.elapsed.Load()),
	}
}

// Run aggregates the whole pipeline's execution — duration,
// total_items_processed, throughput — plus every element's Snapshot.
// Each run is tagged with a unique ID (github.com/google/uuid) so
// concurrent runs against the HTTP driver can be correlated in
// logs even though their metrics never share state.
type Run struct {
	ID        string
	mu        sync.Mutex
	start     time.Time
	end       time.Time
	processed atomic.Int64
	elements  []*Element
}

func NewRun() *Run {
	return &Run{ID: uuid.NewString(), start: time.Now()}
}

func (r *Run) AddElement(e *Element) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.elements = append(r.elements, e)
}

func (r *Run) RecordProcessed(n int64) { r.processed.Add(n) }

func (r *Run) Finish() { r.end = time.Now() }

// RunSnapshot is the aggregate shape returned over HTTP.
type RunSnapshot struct {
	RunID               string     `json:"run_id"`
	Duration            time.Duration `json:"duration"`
	TotalItemsProcessed int64      `json:"total_items_processed"`
	Throughput          float64    `json:"throughput"`
	ElementMetrics      []Snapshot `json:"element_metrics"`
}

func (r *Run) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	end := r.end
	if end.IsZero() {
		end = time.Now()
	}
	duration := end.Sub(r.start)
	processed := r.processed.Load()

	throughput := 0.0
	if duration > 0 {
		throughput = float64(processed) / duration.Seconds()
	}

	snaps := make([]Snapshot, 0, len(r.elements))
	for _, e := range r.elements {
		snaps = append(snaps, e.Snapshot())
	}

	return RunSnapshot{
		RunID:               r.ID,
		Duration:            duration,
		TotalItemsProcessed: processed,
		Throughput:          throughput,
		ElementMetrics:      snaps,
	}
}
