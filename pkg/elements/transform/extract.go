package transform

import (
	"context"
	"regexp"

	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/element"
	"github.com/conduit-run/conduit/pkg/iter"
	"github.com/conduit-run/conduit/pkg/registry"
	"github.com/conduit-run/conduit/pkg/schema"
)

func init() {
	registry.Register(element.Descriptor{
		ID: "conduit.Extract",
		Summary: "Matches `pattern` against each string item and yields capture group `group`, " +
			"or every match when `all_matches` is set.",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "pattern", Type: schema.TypeString},
			{Name: "group", Type: schema.TypeInteger, Optional: true, Default: 1},
			{Name: "all_matches", Type: schema.TypeBoolean, Optional: true, Default: false},
		}},
		Input:       schema.Unstructured,
		OutputShape: "string, or array of strings when `all_matches` is set",
		New:         newExtract,
	})

	registry.Register(element.Descriptor{
		ID:      "conduit.Replace",
		Summary: "Substitutes `replacement` for each match of `pattern` in each string item, up to `count` times (0 means unlimited).",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "pattern", Type: schema.TypeString},
			{Name: "replacement", Type: schema.TypeString},
			{Name: "count", Type: schema.TypeInteger, Optional: true, Default: 0},
		}},
		Input:       schema.Unstructured,
		OutputShape: "string",
		New:         newReplace,
	})
}

// Extract is conduit.Extract.
type Extract struct {
	element.Base
	re         *regexp.Regexp
	group      int
	allMatches bool
}

func newExtract(ctx element.BuildContext) (element.Element, error) {
	pattern, _ := ctx.Args["pattern"].(string)
	if pattern == "" {
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.Extract requires `pattern`")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, conduiterr.Wrap(conduiterr.KindSchemaMismatch, err, "conduit.Extract: invalid `pattern`")
	}
	group := 1
	if g, ok := schema.AsFloat64(ctx.Args["group"]); ok {
		group = int(g)
	}
	allMatches, _ := ctx.Args["all_matches"].(bool)
	return &Extract{
		Base:       element.NewBase("conduit.Extract", ctx.StageIndex),
		re:         re,
		group:      group,
		allMatches: allMatches,
	}, nil
}

func (e *Extract) extractOne(s string) any {
	if e.allMatches {
		matches := e.re.FindAllStringSubmatch(s, -1)
		out := make([]any, 0, len(matches))
		for _, m := range matches {
			if e.group < len(m) {
				out = append(out, m[e.group])
			}
		}
		return out
	}
	m := e.re.FindStringSubmatch(s)
	if m == nil || e.group >= len(m) {
		return nil
	}
	return m[e.group]
}

func (e *Extract) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	return iter.Func(func(ctx context.Context) (any, bool, error) {
		item, ok, err := upstream.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		s, ok := item.(string)
		if !ok {
			return nil, false, conduiterr.New(conduiterr.KindItem, "conduit.Extract: item is not a string (got %T)", item)
		}
		return e.extractOne(s), true, nil
	}), nil
}

func (e *Extract) Close() error { return nil }

// Replace is conduit.Replace.
type Replace struct {
	element.Base
	re          *regexp.Regexp
	replacement string
	count       int
}

func newReplace(ctx element.BuildContext) (element.Element, error) {
	pattern, _ := ctx.Args["pattern"].(string)
	if pattern == "" {
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.Replace requires `pattern`")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, conduiterr.Wrap(conduiterr.KindSchemaMismatch, err, "conduit.Replace: invalid `pattern`")
	}
	replacement, _ := ctx.Args["replacement"].(string)
	count := 0
	if c, ok := schema.AsFloat64(ctx.Args["count"]); ok {
		count = int(c)
	}
	return &Replace{
		Base:        element.NewBase("conduit.Replace", ctx.StageIndex),
		re:          re,
		replacement: replacement,
		count:       count,
	}, nil
}

func (r *Replace) replaceOne(s string) string {
	if r.count <= 0 {
		return r.re.ReplaceAllString(s, r.replacement)
	}
	remaining := r.count
	return r.re.ReplaceAllStringFunc(s, func(match string) string {
		if remaining <= 0 {
			return match
		}
		remaining--
		// ReplaceAllStringFunc hands us the raw match with no group
		// expansion, so run it back through a scoped ReplaceAll to
		// honor $1-style backreferences in replacement.
		return string(r.re.ReplaceAll([]byte(match), []byte(r.replacement)))
	})
}

func (r *Replace) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	return iter.Func(func(ctx context.Context) (any, bool, error) {
		item, ok, err := upstream.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		s, ok := item.(string)
		if !ok {
			return nil, false, conduiterr.New(conduiterr.KindItem, "conduit.Replace: item is not a string (got %T)", item)
		}
		return r.replaceOne(s), true, nil
	}), nil
}

func (r *Replace) Close() error { return nil }
