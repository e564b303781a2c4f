// Package fork implements conduit.Fork's multicast/join semantics:
// each upstream item is passed, as the same value, to every named
// path, the path's sub-pipeline runs to completion against that one
// item, and the
// per-path results are joined back into a single output record keyed
// by path name.
package fork

import (
	"context"
	"sync"

	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/iter"
)

// Path is one named sub-pipeline: an ordered chain of openers that,
// given a single-item upstream, produces zero, one, or many results.
// pkg/elements/flow supplies this by wrapping a path's builder.Built
// stages in executor.Open; fork itself has no dependency on
// pkg/builder or pkg/executor.
type Path struct {
	Name string
	Open func(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error)
}

// Coordinator runs every path against one input item and joins the
// results: a path yielding nothing is absent from the joined record,
// yielding once contributes a scalar value, yielding more than once
// contributes a slice — all keyed by path name.
type Coordinator struct {
	Paths    []Path
	Parallel bool
}

// Run multicasts item into every path and returns the joined record.
// Field order in the returned map is not itself meaningful (Go maps
// are unordered); callers that must preserve declared path order for
// serialization should consult Coordinator.Paths.
func (c *Coordinator) Run(ctx context.Context, item any) (map[string]any, error) {
	type pathResult struct {
		name string
		vals []any
		err  error
	}

	run := func(p Path) pathResult {
		out, err := p.Open(ctx, iter.Singleton(item))
		if err != nil {
			return pathResult{name: p.Name, err: conduiterr.Wrap(conduiterr.KindItem, err, "fork path %q", p.Name)}
		}
		vals, err := iter.Drain(ctx, out)
		closeErr := out.Close()
		if err != nil {
			return pathResult{name: p.Name, err: conduiterr.Wrap(conduiterr.KindItem, err, "fork path %q", p.Name)}
		}
		if closeErr != nil {
			return pathResult{name: p.Name, err: conduiterr.Wrap(conduiterr.KindResource, closeErr, "fork path %q", p.Name)}
		}
		return pathResult{name: p.Name, vals: vals}
	}

	results := make([]pathResult, len(c.Paths))
	if c.Parallel {
		var wg sync.WaitGroup
		for i, p := range c.Paths {
			wg.Add(1)
			go func(i int, p Path) {
				defer wg.Done()
				results[i] = run(p)
			}(i, p)
		}
		wg.Wait()
	} else {
		for i, p := range c.Paths {
			results[i] = run(p)
		}
	}

	joined := make(map[string]any, len(results))
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		switch len(r.vals) {
		case 0:
			// absent from the joined record — a zero-yield path contributes nothing
		case 1:
			joined[r.name] = r.vals[0]
		default:
			joined[r.name] = r.vals
		}
	}
	return joined, nil
}

// PathNames returns the path names in Coordinator.Paths order — the
// declared `paths` mapping order, per the fork field-order guarantee —
// used to render deterministic output field order when a downstream
// consumer cares (e.g. a template iterating `input.paths`).
func (c *Coordinator) PathNames() []string {
	names := make([]string, len(c.Paths))
	for i, p := range c.Paths {
		names[i] = p.Name
	}
	return names
}
