// JsonQuery applies a jq filter to each item, grounded on
// github.com/itchyny/gojq — the pure-Go jq implementation present in
// the retrieved pack (itchyny's own module and its consumers) — rather
// than shelling out to a jq binary, keeping the runtime dependency-free
// of external executables.
package transform

import (
	"context"

	"github.com/itchyny/gojq"

	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/element"
	"github.com/conduit-run/conduit/pkg/iter"
	"github.com/conduit-run/conduit/pkg/registry"
	"github.com/conduit-run/conduit/pkg/schema"
)

func init() {
	registry.Register(element.Descriptor{
		ID:      "conduit.JsonQuery",
		Summary: "Runs a jq query against each item, yielding one item per query result.",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "query", Type: schema.TypeString},
		}},
		Input:       schema.Unstructured,
		OutputShape: "shape of the query result, zero or more items per input item",
		New:         newJSONQuery,
	})
}

// JSONQuery is conduit.JsonQuery.
type JSONQuery struct {
	element.Base
	code *gojq.Code
}

func newJSONQuery(ctx element.BuildContext) (element.Element, error) {
	src, _ := ctx.Args["query"].(string)
	if src == "" {
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.JsonQuery requires `query`")
	}
	q, err := gojq.Parse(src)
	if err != nil {
		return nil, conduiterr.Wrap(conduiterr.KindSchemaMismatch, err, "conduit.JsonQuery: parse query %q", src)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, conduiterr.Wrap(conduiterr.KindSchemaMismatch, err, "conduit.JsonQuery: compile query %q", src)
	}
	return &JSONQuery{Base: element.NewBase("conduit.JsonQuery", ctx.StageIndex), code: code}, nil
}

func (j *JSONQuery) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	var results *gojq.Iter

	return iter.Func(func(ctx context.Context) (any, bool, error) {
		for {
			if results != nil {
				v, hasNext := results.Next()
				if hasNext {
					if err, isErr := v.(error); isErr {
						return nil, false, conduiterr.Wrap(conduiterr.KindItem, err, "conduit.JsonQuery")
					}
					return v, true, nil
				}
				results = nil
			}

			item, ok, err := upstream.Next(ctx)
			if err != nil || !ok {
				return nil, ok, err
			}
			iterResult := j.code.RunWithContext(ctx, item)
			results = &iterResult
		}
	}), nil
}

func (j *JSONQuery) Close() error { return nil }
