// Package source holds elements with no upstream: conduit.Input,
// conduit.RestApi, conduit.Random, conduit.Glob. A source
// ignores whatever upstream Open passes it — always nil at the top of
// a pipeline, since sources are only ever stage zero or a fork path's
// first stage is a transform, not a source.
package source

import (
	"context"
	"math/rand"

	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/element"
	"github.com/conduit-run/conduit/pkg/iter"
	"github.com/conduit-run/conduit/pkg/registry"
	"github.com/conduit-run/conduit/pkg/schema"
)

func init() {
	registry.Register(element.Descriptor{
		ID:      "conduit.Input",
		Summary: "Yields each element of a constructor-supplied literal list.",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "data", Type: schema.TypeArray},
		}},
		OutputShape: "shape of each declared item",
		New:         newInput,
	})

	registry.Register(element.Descriptor{
		ID: "conduit.Random",
		Summary: "Yields `count` random numbers between `min` and `max` inclusive; when `count` is " +
			"omitted, yields one per upstream item instead.",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "seed", Type: schema.TypeInteger, Optional: true},
			{Name: "min", Type: schema.TypeNumber, Optional: true, Default: 0},
			{Name: "max", Type: schema.TypeNumber, Optional: true, Default: 100},
			{Name: "type", Type: schema.TypeString, Optional: true, Default: "int"},
			{Name: "count", Type: schema.TypeInteger, Optional: true},
		}},
		Input:       schema.Unstructured,
		OutputShape: "integer or float, per `type`",
		New:         newRandom,
	})
}

// Input is conduit.Input.
type Input struct {
	element.Base
	data []any
}

func newInput(ctx element.BuildContext) (element.Element, error) {
	data, _ := ctx.Args["data"].([]any)
	return &Input{Base: element.NewBase("conduit.Input", ctx.StageIndex), data: data}, nil
}

func (s *Input) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	return iter.FromSlice(s.data), nil
}

func (s *Input) Close() error { return nil }

// Random is conduit.Random. With `count` declared it behaves as a
// source, ignoring any upstream; without it, it draws one value per
// upstream item instead, letting it sit mid-pipeline as a decorator.
type Random struct {
	element.Base
	rng      *rand.Rand
	min, max float64
	count    int
	hasCount bool
	float    bool
}

func newRandom(ctx element.BuildContext) (element.Element, error) {
	min, hasMin := schema.AsFloat64(ctx.Args["min"])
	if !hasMin {
		min = 0
	}
	max, hasMax := schema.AsFloat64(ctx.Args["max"])
	if !hasMax {
		max = 100
	}
	typ, _ := ctx.Args["type"].(string)
	source := rand.NewSource(1)
	if seed, ok := schema.AsFloat64(ctx.Args["seed"]); ok {
		source = rand.NewSource(int64(seed))
	}
	r := &Random{
		Base:  element.NewBase("conduit.Random", ctx.StageIndex),
		rng:   rand.New(source),
		min:   min, max: max,
		float: typ == "float",
	}
	if count, ok := schema.AsFloat64(ctx.Args["count"]); ok {
		if count <= 0 {
			return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.Random: `count` must be > 0")
		}
		r.count, r.hasCount = int(count), true
	}
	return r, nil
}

func (r *Random) draw() any {
	if r.float {
		return r.min + r.rng.Float64()*(r.max-r.min)
	}
	span := int(r.max-r.min) + 1
	if span <= 0 {
		span = 1
	}
	return int(r.min) + r.rng.Intn(span)
}

func (r *Random) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	if r.hasCount {
		remaining := r.count
		return iter.Func(func(ctx context.Context) (any, bool, error) {
			if remaining <= 0 {
				return nil, false, nil
			}
			remaining--
			return r.draw(), true, nil
		}), nil
	}
	return iter.Func(func(ctx context.Context) (any, bool, error) {
		_, ok, err := upstream.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		return r.draw(), true, nil
	}), nil
}

func (r *Random) Close() error { return nil }
