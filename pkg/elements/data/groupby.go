// Package data holds the tabular and buffered stages: conduit.CsvReader,
// which streams rows lazily, and the buffered (terminal-streaming)
// conduit.GroupBy and conduit.Sort. GroupBy and Sort consume their
// entire upstream before producing a single item of output, the
// exception to the lazy pull-based model.
package data

import (
	"context"
	"sort"

	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/element"
	"github.com/conduit-run/conduit/pkg/exprlang"
	"github.com/conduit-run/conduit/pkg/iter"
	"github.com/conduit-run/conduit/pkg/registry"
	"github.com/conduit-run/conduit/pkg/schema"
)

func init() {
	registry.Register(element.Descriptor{
		ID:      "conduit.GroupBy",
		Summary: "Buffers the entire upstream, groups items by `key`, and yields one {key, values} record per group.",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "key", Type: schema.TypeString},
		}},
		Input:       schema.Unstructured,
		OutputShape: "object {key: string, values: array}",
		New:         newGroupBy,
	})

	registry.Register(element.Descriptor{
		ID:      "conduit.Sort",
		Summary: "Buffers the entire upstream and yields it sorted by `key`.",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "key", Type: schema.TypeString},
			{Name: "reverse", Type: schema.TypeBoolean, Optional: true, Default: false},
		}},
		Input:       schema.Unstructured,
		OutputShape: "same as input, reordered",
		New:         newSort,
	})
}

// GroupBy is conduit.GroupBy.
type GroupBy struct {
	element.Base
	key *exprlang.Program
}

func newGroupBy(ctx element.BuildContext) (element.Element, error) {
	src, _ := ctx.Args["key"].(string)
	if src == "" {
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.GroupBy requires `key`")
	}
	prog, err := exprlang.Compile(src)
	if err != nil {
		return nil, err
	}
	return &GroupBy{Base: element.NewBase("conduit.GroupBy", ctx.StageIndex), key: prog}, nil
}

// Open defers draining upstream until the first Next call — the
// grouping cost lands on the pull that asks for a result, not on
// pipeline setup.
func (g *GroupBy) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	var results []any
	pos := 0
	started := false

	return iter.Func(func(ctx context.Context) (any, bool, error) {
		if !started {
			started = true
			all, err := iter.Drain(ctx, upstream)
			if err != nil {
				return nil, false, err
			}
			grouped, err := g.group(all)
			if err != nil {
				return nil, false, err
			}
			results = grouped
		}
		if pos >= len(results) {
			return nil, false, nil
		}
		v := results[pos]
		pos++
		return v, true, nil
	}), nil
}

func (g *GroupBy) group(all []any) ([]any, error) {
	order := []string{}
	groups := map[string][]any{}
	for _, item := range all {
		k, err := g.key.EvalString(item)
		if err != nil {
			return nil, conduiterr.Wrap(conduiterr.KindItem, err, "conduit.GroupBy")
		}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], item)
	}

	results := make([]any, len(order))
	for i, k := range order {
		results[i] = map[string]any{"key": k, "values": groups[k]}
	}
	return results, nil
}

func (g *GroupBy) Close() error { return nil }

// Sort is conduit.Sort.
type Sort struct {
	element.Base
	key     *exprlang.Program
	reverse bool
}

func newSort(ctx element.BuildContext) (element.Element, error) {
	src, _ := ctx.Args["key"].(string)
	if src == "" {
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.Sort requires `key`")
	}
	prog, err := exprlang.Compile(src)
	if err != nil {
		return nil, err
	}
	reverse, _ := ctx.Args["reverse"].(bool)
	return &Sort{Base: element.NewBase("conduit.Sort", ctx.StageIndex), key: prog, reverse: reverse}, nil
}

// Open defers draining upstream until the first Next call, same as
// GroupBy.
func (s *Sort) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	var results []any
	pos := 0
	started := false

	return iter.Func(func(ctx context.Context) (any, bool, error) {
		if !started {
			started = true
			all, err := iter.Drain(ctx, upstream)
			if err != nil {
				return nil, false, err
			}
			sorted, err := s.sort(all)
			if err != nil {
				return nil, false, err
			}
			results = sorted
		}
		if pos >= len(results) {
			return nil, false, nil
		}
		v := results[pos]
		pos++
		return v, true, nil
	}), nil
}

func (s *Sort) sort(all []any) ([]any, error) {
	keys := make([]string, len(all))
	for i, item := range all {
		k, err := s.key.EvalString(item)
		if err != nil {
			return nil, conduiterr.Wrap(conduiterr.KindItem, err, "conduit.Sort")
		}
		keys[i] = k
	}

	idx := make([]int, len(all))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		if s.reverse {
			return keys[idx[i]] > keys[idx[j]]
		}
		return keys[idx[i]] < keys[idx[j]]
	})

	results := make([]any, len(all))
	for i, j := range idx {
		results[i] = all[j]
	}
	return results, nil
}

func (s *Sort) Close() error { return nil }
