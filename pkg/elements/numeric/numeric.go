// Package numeric holds conduit.Numpy and conduit.Eval: small numeric
// reducers and the expression-backed per-item eval element, kept
// separate from transform since they return a new scalar value rather
// than reshaping a record.
package numeric

import (
	"context"
	"math"

	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/element"
	"github.com/conduit-run/conduit/pkg/exprlang"
	"github.com/conduit-run/conduit/pkg/iter"
	"github.com/conduit-run/conduit/pkg/registry"
	"github.com/conduit-run/conduit/pkg/schema"
)

func init() {
	registry.Register(element.Descriptor{
		ID:      "conduit.Eval",
		Summary: "Evaluates `expression` against each item and yields the result.",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "expression", Type: schema.TypeString},
		}},
		Input:       schema.Unstructured,
		OutputShape: "shape of the expression result",
		New:         newEval,
	})

	registry.Register(element.Descriptor{
		ID: "conduit.Numpy",
		Summary: "Buffers the entire upstream numeric stream and yields the single result of `operation` " +
			"(sum, mean, min, max, count, std).",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "operation", Type: schema.TypeString},
		}},
		Input: &schema.Input{Fields: []schema.Field{
			{Name: "value", Type: schema.TypeNumber},
		}},
		OutputShape: "number",
		New:         newNumpy,
	})
}

// Eval is conduit.Eval.
type Eval struct {
	element.Base
	expr *exprlang.Program
}

func newEval(ctx element.BuildContext) (element.Element, error) {
	src, _ := ctx.Args["expression"].(string)
	if src == "" {
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.Eval requires `expression`")
	}
	prog, err := exprlang.Compile(src)
	if err != nil {
		return nil, err
	}
	return &Eval{Base: element.NewBase("conduit.Eval", ctx.StageIndex), expr: prog}, nil
}

func (e *Eval) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	return iter.Func(func(ctx context.Context) (any, bool, error) {
		item, ok, err := upstream.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		out, err := e.expr.Eval(item)
		if err != nil {
			return nil, false, conduiterr.Wrap(conduiterr.KindItem, err, "conduit.Eval")
		}
		return out, true, nil
	}), nil
}

func (e *Eval) Close() error { return nil }

// Numpy is conduit.Numpy, a numpy-equivalent summary-statistics
// convenience. It buffers the entire numeric stream, the same
// terminal-streaming exception GroupBy/Sort take, and reduces it to
// the single `operation` the constructor declared rather than every
// statistic at once.
type Numpy struct {
	element.Base
	operation string
}

func newNumpy(ctx element.BuildContext) (element.Element, error) {
	op, _ := ctx.Args["operation"].(string)
	switch op {
	case "sum", "mean", "min", "max", "count", "std":
	default:
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.Numpy: unknown `operation` %q", op)
	}
	return &Numpy{Base: element.NewBase("conduit.Numpy", ctx.StageIndex), operation: op}, nil
}

// Open defers draining upstream until the first Next call rather than
// doing it here, so the buffering cost is attributed to the pull that
// actually asks for a result, not to pipeline setup.
func (n *Numpy) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	drained := false
	var result any
	var has bool

	return iter.Func(func(ctx context.Context) (any, bool, error) {
		if drained {
			return nil, false, nil
		}
		drained = true

		all, err := iter.Drain(ctx, upstream)
		if err != nil {
			return nil, false, err
		}
		result, has, err = n.reduce(all)
		if err != nil {
			return nil, false, err
		}
		return result, has, nil
	}), nil
}

// reduce computes the single summary value for operation over values
// drained from upstream.
func (n *Numpy) reduce(all []any) (any, bool, error) {
	values := make([]float64, 0, len(all))
	for _, v := range all {
		var f float64
		switch rec := v.(type) {
		case map[string]any:
			fv, ok := schema.AsFloat64(rec["value"])
			if !ok {
				return nil, false, conduiterr.New(conduiterr.KindItem, "conduit.Numpy: item `value` field is not numeric")
			}
			f = fv
		default:
			fv, ok := schema.AsFloat64(v)
			if !ok {
				return nil, false, conduiterr.New(conduiterr.KindItem, "conduit.Numpy: item is not numeric")
			}
			f = fv
		}
		values = append(values, f)
	}

	if len(values) == 0 {
		return nil, false, nil
	}
	if n.operation == "count" {
		return len(values), true, nil
	}

	var sum float64
	min, max := math.Inf(1), math.Inf(-1)
	for _, f := range values {
		sum += f
		if f < min {
			min = f
		}
		if f > max {
			max = f
		}
	}
	mean := sum / float64(len(values))

	switch n.operation {
	case "sum":
		return sum, true, nil
	case "mean":
		return mean, true, nil
	case "min":
		return min, true, nil
	case "max":
		return max, true, nil
	case "std":
		var variance float64
		for _, f := range values {
			d := f - mean
			variance += d * d
		}
		variance /= float64(len(values))
		return math.Sqrt(variance), true, nil
	default:
		return nil, false, conduiterr.New(conduiterr.KindInternal, "conduit.Numpy: unreachable operation %q", n.operation)
	}
}

func (n *Numpy) Close() error { return nil }
