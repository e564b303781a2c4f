package flow

import (
	"context"

	"github.com/conduit-run/conduit/pkg/element"
	"github.com/conduit-run/conduit/pkg/iter"
	"github.com/conduit-run/conduit/pkg/registry"
	"github.com/conduit-run/conduit/pkg/schema"
)

func init() {
	registry.Register(element.Descriptor{
		ID:          "conduit.Identity",
		Summary:     "Passes every item through unchanged.",
		Input:       schema.Unstructured,
		OutputShape: "same as input",
		New:         newIdentity,
	})
	registry.Register(element.Descriptor{
		ID:          "conduit.Empty",
		Summary:     "Discards every item and yields nothing.",
		Input:       schema.Unstructured,
		OutputShape: "none",
		New:         newEmpty,
	})
	registry.Register(element.Descriptor{
		ID: "conduit.Iterate",
		Summary: "Expands each upstream item into its members: a list or array yields one item per " +
			"element, any other item passes through unchanged.",
		Input:       schema.Unstructured,
		OutputShape: "member shape when the item is a sequence, otherwise same as input",
		New:         newIterate,
	})
}

// Identity is conduit.Identity, used in tests and as a Fork path
// placeholder when a path should pass the forked item straight through.
type Identity struct{ element.Base }

func newIdentity(ctx element.BuildContext) (element.Element, error) {
	return &Identity{Base: element.NewBase("conduit.Identity", ctx.StageIndex)}, nil
}

func (e *Identity) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	return upstream, nil
}

func (e *Identity) Close() error { return nil }

// Empty is conduit.Empty.
type Empty struct{ element.Base }

func newEmpty(ctx element.BuildContext) (element.Element, error) {
	return &Empty{Base: element.NewBase("conduit.Empty", ctx.StageIndex)}, nil
}

func (e *Empty) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	return iter.Empty(), nil
}

func (e *Empty) Close() error { return nil }

// Iterate flattens each upstream item: a []any yields one item per
// member, anything else passes through as a single item. Unlike Fork,
// it has no sub-pipeline of its own — further processing of the
// flattened members is just the next stage in the same pipeline.
type Iterate struct{ element.Base }

func newIterate(ctx element.BuildContext) (element.Element, error) {
	return &Iterate{Base: element.NewBase("conduit.Iterate", ctx.StageIndex)}, nil
}

func (e *Iterate) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	var buf []any
	var bufPos int
	var single any
	var haveSingle bool

	return iter.Func(func(ctx context.Context) (any, bool, error) {
		for {
			if bufPos < len(buf) {
				v := buf[bufPos]
				bufPos++
				return v, true, nil
			}
			if haveSingle {
				haveSingle = false
				return single, true, nil
			}

			item, ok, err := upstream.Next(ctx)
			if err != nil || !ok {
				return nil, ok, err
			}
			if list, isList := item.([]any); isList {
				buf, bufPos = list, 0
				continue
			}
			single, haveSingle = item, true
		}
	}), nil
}

func (e *Iterate) Close() error { return nil }
