// Package transform holds per-item transformation elements: Filter,
// JsonQuery, Extract, Format, Console, Replace.
package transform

import (
	"context"

	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/element"
	"github.com/conduit-run/conduit/pkg/exprlang"
	"github.com/conduit-run/conduit/pkg/iter"
	"github.com/conduit-run/conduit/pkg/registry"
	"github.com/conduit-run/conduit/pkg/schema"
)

func init() {
	registry.Register(element.Descriptor{
		ID:      "conduit.Filter",
		Summary: "Keeps items where `condition` evaluates truthy, or the opposite when `keep_matching` is false.",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "condition", Type: schema.TypeString},
			{Name: "keep_matching", Type: schema.TypeBoolean, Optional: true, Default: true},
		}},
		Input:       schema.Unstructured,
		OutputShape: "same as input, subset",
		New:         newFilter,
	})
}

// Filter is conduit.Filter.
type Filter struct {
	element.Base
	condition    *exprlang.Program
	keepMatching bool
}

func newFilter(ctx element.BuildContext) (element.Element, error) {
	src, _ := ctx.Args["condition"].(string)
	if src == "" {
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.Filter requires `condition`")
	}
	prog, err := exprlang.Compile(src)
	if err != nil {
		return nil, err
	}
	keepMatching := true
	if v, ok := ctx.Args["keep_matching"].(bool); ok {
		keepMatching = v
	}
	return &Filter{Base: element.NewBase("conduit.Filter", ctx.StageIndex), condition: prog, keepMatching: keepMatching}, nil
}

func (f *Filter) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	return iter.Func(func(ctx context.Context) (any, bool, error) {
		for {
			item, ok, err := upstream.Next(ctx)
			if err != nil || !ok {
				return nil, ok, err
			}
			matched, err := f.condition.EvalBool(item)
			if err != nil {
				return nil, false, conduiterr.Wrap(conduiterr.KindItem, err, "conduit.Filter")
			}
			if matched == f.keepMatching {
				return item, true, nil
			}
		}
	}), nil
}

func (f *Filter) Close() error { return nil }
