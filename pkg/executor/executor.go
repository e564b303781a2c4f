// Package executor implements the streaming executor that wires a
// built chain of elements into one lazy pull chain, advances it item by
// item, and applies the stop_on_error policy and per-element
// metrics collection along the way: Open every stage in order, then
// pull-and-push items through the resulting chain.
package executor

import (
	"context"
	"time"

	"github.com/conduit-run/conduit/pkg/builder"
	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/defaults"
	"github.com/conduit-run/conduit/pkg/iter"
	"github.com/conduit-run/conduit/pkg/metrics"
	"github.com/conduit-run/conduit/pkg/schema"
)

// Policy controls how an error from one item is handled.
type Policy int

const (
	// StopOnError aborts the whole run the first time any stage
	// returns a recoverable (KindItem/KindResource) error.
	StopOnError Policy = iota
	// SkipOnError drops the offending item, increments that stage's
	// error counter, and continues pulling.
	SkipOnError
)

// Chain is a built, opened pipeline ready to be pulled.
type Chain struct {
	stages  []stageHandle
	tail    iter.Iterator
	run     *metrics.Run
	skipped []error
}

type stageHandle struct {
	built   builder.Built
	metrics *metrics.Element
}

// Open builds the lazy chain by calling Open on every stage in order,
// feeding each stage's output iterator as the next stage's upstream.
// initial is the upstream fed to the first stage: nil for a top-level
// pipeline (whose first stage is a source element that ignores it), or
// a single-item iterator when Open is used to drive one conduit.Fork
// path against one forked item. No items flow until Chain.Run is
// called.
func Open(ctx context.Context, built []builder.Built, run *metrics.Run, initial iter.Iterator) (*Chain, error) {
	c := &Chain{run: run}

	upstream := initial
	for _, b := range built {
		m := b.Element.Metrics()
		stageUpstream := upstream
		if stageUpstream != nil {
			stageUpstream = countingInIterator{inner: stageUpstream, metrics: m}
			if b.InputSchema != nil || len(b.Defaults) > 0 {
				stageUpstream = mergingIterator{inner: stageUpstream, schema: b.InputSchema, defaults: b.Defaults}
			}
		}
		out, err := b.Element.Open(ctx, stageUpstream)
		if err != nil {
			return nil, conduiterr.Wrap(conduiterr.KindElementInit, err, "open stage %q", b.Stage.ID).WithStage(m.StageIndex, b.Stage.ID)
		}
		run.AddElement(m)
		c.stages = append(c.stages, stageHandle{built: b, metrics: m})
		upstream = countingIterator{inner: out, metrics: m}
	}
	c.tail = upstream
	return c, nil
}

// countingInIterator wraps the previous stage's output to record
// items_in for the stage consuming it — one increment per item this
// stage actually pulls, regardless of whether a defaults-merge follows.
type countingInIterator struct {
	inner   iter.Iterator
	metrics *metrics.Element
}

func (c countingInIterator) Next(ctx context.Context) (any, bool, error) {
	v, ok, err := c.inner.Next(ctx)
	if ok {
		c.metrics.IncrementIn()
	}
	return v, ok, err
}

func (c countingInIterator) Close() error { return c.inner.Close() }

// mergingIterator applies the defaults-merger to every item before the
// owning stage's Open-returned iterator (which wraps this as its
// upstream) ever pulls it: each item is coerced against schema and
// combined field-by-field with defaults, once per item, immediately
// before the element's body sees it.
type mergingIterator struct {
	inner    iter.Iterator
	schema   *schema.Input
	defaults map[string]any
}

func (m mergingIterator) Next(ctx context.Context) (any, bool, error) {
	v, ok, err := m.inner.Next(ctx)
	if err != nil || !ok {
		return v, ok, err
	}
	return defaults.Merge(m.schema, m.defaults, v), true, nil
}

func (m mergingIterator) Close() error { return m.inner.Close() }

// countingIterator wraps a stage's output iterator to record items_out
// and elapsed time per pull, attributing the time spent inside Next to
// the stage that produced the value.
type countingIterator struct {
	inner   iter.Iterator
	metrics *metrics.Element
}

func (c countingIterator) Next(ctx context.Context) (any, bool, error) {
	start := time.Now()
	v, ok, err := c.inner.Next(ctx)
	c.metrics.AddElapsed(time.Since(start))
	if err != nil {
		c.metrics.IncrementError()
		return nil, false, err
	}
	if ok {
		c.metrics.IncrementOut()
	}
	return v, ok, nil
}

func (c countingIterator) Close() error { return c.inner.Close() }

// Run drains the chain to completion under policy, recording
// total_items_processed on run and returning every item
// that reached the final stage. A KindItem/KindResource error under
// SkipOnError is recorded via SkippedErrors and swallowed after being
// counted; any other error kind, or a recoverable error under
// StopOnError, aborts the run.
func (c *Chain) Run(ctx context.Context, policy Policy) ([]any, error) {
	var results []any
	for {
		v, ok, err := c.tail.Next(ctx)
		if err != nil {
			var ce *conduiterr.Error
			recoverable := conduiterr.As(err, &ce) && ce.Kind.Recoverable()
			if recoverable && policy == SkipOnError {
				c.skipped = append(c.skipped, err)
				continue
			}
			return results, err
		}
		if !ok {
			break
		}
		results = append(results, v)
		c.run.RecordProcessed(1)
	}
	return results, nil
}

// SkippedErrors returns every per-item error Run recorded and skipped
// past under SkipOnError, one entry per failed item, in the order
// encountered.
func (c *Chain) SkippedErrors() []error { return c.skipped }

// Close releases every stage's resources in reverse build order.
func (c *Chain) Close() error {
	var firstErr error
	for i := len(c.stages) - 1; i >= 0; i-- {
		if err := c.stages[i].built.Element.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
