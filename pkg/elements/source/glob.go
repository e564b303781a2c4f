// Glob lists filesystem paths matching a recursive glob pattern,
// grounded on github.com/bmatcuk/doublestar — the pack's recursive-glob
// library (the `**` double-star form Go's stdlib path/filepath.Glob
// cannot express at all).
package source

import (
	"context"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/element"
	"github.com/conduit-run/conduit/pkg/iter"
	"github.com/conduit-run/conduit/pkg/registry"
	"github.com/conduit-run/conduit/pkg/schema"
)

func init() {
	registry.Register(element.Descriptor{
		ID:      "conduit.Glob",
		Summary: "Yields each filesystem path under `root_dir` matching `pattern`, recursively when `recursive` is set.",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "pattern", Type: schema.TypeString},
			{Name: "root_dir", Type: schema.TypeString, Optional: true, Default: "."},
			{Name: "recursive", Type: schema.TypeBoolean, Optional: true, Default: false},
		}},
		OutputShape: "string path",
		New:         newGlob,
	})
}

// Glob is conduit.Glob. When recursive is false it matches only within
// root_dir itself (a single path/filepath.Glob); when true it walks the
// whole tree via doublestar, which understands `**`.
type Glob struct {
	element.Base
	pattern, root string
	recursive     bool
}

func newGlob(ctx element.BuildContext) (element.Element, error) {
	pattern, _ := ctx.Args["pattern"].(string)
	if pattern == "" {
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.Glob requires `pattern`")
	}
	root, ok := ctx.Args["root_dir"].(string)
	if !ok || root == "" {
		root = "."
	}
	recursive, _ := ctx.Args["recursive"].(bool)
	return &Glob{Base: element.NewBase("conduit.Glob", ctx.StageIndex), pattern: pattern, root: root, recursive: recursive}, nil
}

func (g *Glob) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	var matches []string
	var err error
	if g.recursive {
		fsys := os.DirFS(g.root)
		matches, err = doublestar.Glob(fsys, g.pattern)
	} else {
		matches, err = filepath.Glob(filepath.Join(g.root, g.pattern))
	}
	if err != nil {
		return nil, conduiterr.Wrap(conduiterr.KindResource, err, "conduit.Glob: pattern %q", g.pattern)
	}
	vals := make([]any, len(matches))
	for i, m := range matches {
		vals[i] = m
	}
	return iter.FromSlice(vals), nil
}

func (g *Glob) Close() error { return nil }
