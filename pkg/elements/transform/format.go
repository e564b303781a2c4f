package transform

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/element"
	"github.com/conduit-run/conduit/pkg/iter"
	"github.com/conduit-run/conduit/pkg/registry"
	"github.com/conduit-run/conduit/pkg/schema"
	"github.com/conduit-run/conduit/pkg/tmpl"
)

func init() {
	registry.Register(element.Descriptor{
		ID:      "conduit.Format",
		Summary: "Renders a template against each item and yields the rendered string.",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "template", Type: schema.TypeString},
		}},
		Input:       schema.Unstructured,
		OutputShape: "string",
		New:         newFormat,
	})

	registry.Register(element.Descriptor{
		ID:      "conduit.Console",
		Summary: "Renders a template against each item, writes it to stdout, and passes the item through unchanged.",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "format", Type: schema.TypeString, Optional: true, Default: "{{ input }}"},
		}},
		Input:       schema.Unstructured,
		OutputShape: "same as input",
		New:         newConsole,
	})
}

// Format is conduit.Format.
type Format struct {
	element.Base
	tmpl *tmpl.Template
}

func newFormat(ctx element.BuildContext) (element.Element, error) {
	src, _ := ctx.Args["template"].(string)
	if src == "" {
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.Format requires `template`")
	}
	t, err := tmpl.Compile(src)
	if err != nil {
		return nil, err
	}
	return &Format{Base: element.NewBase("conduit.Format", ctx.StageIndex), tmpl: t}, nil
}

func (f *Format) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	return iter.Func(func(ctx context.Context) (any, bool, error) {
		item, ok, err := upstream.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		rendered, err := f.tmpl.Render(item)
		if err != nil {
			return nil, false, conduiterr.Wrap(conduiterr.KindItem, err, "conduit.Format")
		}
		return rendered, true, nil
	}), nil
}

func (f *Format) Close() error { return nil }

// Console writes a rendered line to stdout via an injected writer
// (defaulting to os.Stdout at runtime through the runner, see
// pkg/runner), letting tests and the HTTP driver capture output
// instead of it going straight to the process's real stdout.
type Console struct {
	element.Base
	tmpl   *tmpl.Template
	Writer io.Writer
}

func newConsole(ctx element.BuildContext) (element.Element, error) {
	src, ok := ctx.Args["format"].(string)
	if !ok || src == "" {
		src = "{{ input }}"
	}
	t, err := tmpl.Compile(src)
	if err != nil {
		return nil, err
	}
	return &Console{Base: element.NewBase("conduit.Console", ctx.StageIndex), tmpl: t, Writer: os.Stdout}, nil
}

// SetWriter redirects console output, used by the HTTP driver and
// tests to capture `stdout` into the run response instead of the
// process's real stdout.
func (c *Console) SetWriter(w io.Writer) { c.Writer = w }

func (c *Console) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	return iter.Func(func(ctx context.Context) (any, bool, error) {
		item, ok, err := upstream.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		line, err := c.tmpl.Render(item)
		if err != nil {
			return nil, false, conduiterr.Wrap(conduiterr.KindItem, err, "conduit.Console")
		}
		if c.Writer != nil {
			fmt.Fprintln(c.Writer, line)
		}
		return item, true, nil
	}), nil
}

func (c *Console) Close() error { return nil }
