// Package flow holds control-flow elements: conduit.Fork (multicast
// fan-out/join), conduit.Iterate (list-flattening) and
// conduit.Identity/conduit.Empty, the trivial pass-through and discard
// elements used in tests and as Fork path placeholders.
package flow

import (
	"context"

	"github.com/conduit-run/conduit/pkg/builder"
	"github.com/conduit-run/conduit/pkg/element"
	"github.com/conduit-run/conduit/pkg/executor"
	"github.com/conduit-run/conduit/pkg/fork"
	"github.com/conduit-run/conduit/pkg/iter"
	"github.com/conduit-run/conduit/pkg/metrics"
	"github.com/conduit-run/conduit/pkg/registry"
	"github.com/conduit-run/conduit/pkg/schema"
)

func init() {
	registry.Register(element.Descriptor{
		ID:      "conduit.Fork",
		Summary: "Multicasts each item into named sub-pipelines and joins their results.",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "parallel", Type: schema.TypeBoolean, Optional: true, Default: false},
		}},
		OutputShape: "object, one field per declared path",
		New:         newFork,
	})
}

// Fork is the conduit.Fork element. Its Paths are supplied after
// construction by pkg/builder, via SetPaths, since the path
// sub-pipelines must themselves be built against the registry — a
// dependency the element constructor signature (args only) doesn't carry.
type Fork struct {
	element.Base
	parallel bool
	paths    []builder.PathBuilt
	coord    *fork.Coordinator
}

func newFork(ctx element.BuildContext) (element.Element, error) {
	parallel, _ := ctx.Args["parallel"].(bool)
	f := &Fork{Base: element.NewBase("conduit.Fork", ctx.StageIndex), parallel: parallel}
	return f, nil
}

// SetPaths implements builder.ForkConstructor.
func (f *Fork) SetPaths(paths []builder.PathBuilt) {
	f.paths = paths
}

func (f *Fork) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	paths := make([]fork.Path, 0, len(f.paths))
	for _, p := range f.paths {
		stages := p.Stages
		paths = append(paths, fork.Path{
			Name: p.Name,
			Open: func(ctx context.Context, pathUpstream iter.Iterator) (iter.Iterator, error) {
				chain, err := executor.Open(ctx, stages, metrics.NewRun(), pathUpstream)
				if err != nil {
					return nil, err
				}
				return &chainIterator{chain: chain}, nil
			},
		})
	}
	f.coord = &fork.Coordinator{Paths: paths, Parallel: f.parallel}

	return iter.Func(func(ctx context.Context) (any, bool, error) {
		item, ok, err := upstream.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		joined, err := f.coord.Run(ctx, item)
		if err != nil {
			return nil, false, err
		}
		return joined, true, nil
	}), nil
}

func (f *Fork) Close() error { return nil }

// chainIterator feeds pathUpstream's single item through an executor
// chain built specifically for one fork invocation and yields its
// results one at a time. A fresh executor.Chain per invocation keeps
// fork paths free of cross-item state, so each item's join is
// independent of every other item's.
type chainIterator struct {
	chain   *executor.Chain
	drained bool
	buf     []any
	pos     int
}

func (c *chainIterator) Next(ctx context.Context) (any, bool, error) {
	if !c.drained {
		c.drained = true
		results, err := c.chain.Run(ctx, executor.StopOnError)
		if closeErr := c.chain.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return nil, false, err
		}
		c.buf = results
	}
	if c.pos >= len(c.buf) {
		return nil, false, nil
	}
	v := c.buf[c.pos]
	c.pos++
	return v, true, nil
}

func (c *chainIterator) Close() error { return nil }
