// Package tmpl implements the per-item template evaluator: `{{ expr }}`
// interpolation and `{{ expr | filter }}` pipes over a context
// variable `input`.
//
// Go's text/template already speaks exactly this syntax — `{{ }}`
// delimiters and `|` pipes are its native grammar, not something
// bolted on. Filter functions are seeded from github.com/Masterminds/sprig
// and then a small set of path/size filters is layered on top.
package tmpl

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/conduit-run/conduit/pkg/conduiterr"
)

// Template is a compiled template, ready to render against many items.
// Compilation happens once per stage.
type Template struct {
	source  string
	tmpl    *template.Template
	mu      sync.Mutex
	current any
}

// Compile parses source, rejecting unknown filters at compile time as
// a stage-build error. Unknown variables are not a compile error —
// under text/template's default Option("missingkey=default") a
// missing map key in `input.field` prints as "<no value>", and Render
// blanks every "<no value>" in its output so the key renders as empty.
//
// `input` is bound as a zero-arg function rather than a struct field:
// text/template only recognizes a bare word as a field on the dot
// value or as a function, never as an arbitrary free variable, and
// `{{ input.message }}` parses as a function call chained with a
// field access regardless. Registering it as a function closing over
// the Template's current item lets `input`, `input.field`, and
// `input | filter` all resolve the same current-item value.
func Compile(source string) (*Template, error) {
	t := &Template{source: source}
	parsed, err := template.New("conduit").
		Funcs(sprig.TxtFuncMap()).
		Funcs(builtinFilters()).
		Funcs(template.FuncMap{"input": t.inputFunc}).
		Option("missingkey=default").
		Parse(source)
	if err != nil {
		return nil, conduiterr.Wrap(conduiterr.KindTemplate, err, "compile template %q", source)
	}
	t.tmpl = parsed
	return t, nil
}

func (t *Template) inputFunc() any { return t.current }

// Render evaluates the template against a single item, exposed to the
// template as `input` via inputFunc. The mutex serializes concurrent
// renders of the same compiled Template (e.g. a stage reused across
// parallel Fork paths) against the shared current-item slot.
func (t *Template) Render(input any) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = input
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, nil); err != nil {
		return "", conduiterr.Wrap(conduiterr.KindTemplate, err, "render template %q", t.source)
	}
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}

func builtinFilters() template.FuncMap {
	return template.FuncMap{
		"get_filename": func(path any) string {
			return filepath.Base(fmt.Sprint(path))
		},
		"get_dirname": func(path any) string {
			return filepath.Dir(fmt.Sprint(path))
		},
		"get_basename": func(path any) string {
			name := filepath.Base(fmt.Sprint(path))
			return strings.TrimSuffix(name, filepath.Ext(name))
		},
		"get_extension": func(path any) string {
			return filepath.Ext(fmt.Sprint(path))
		},
		"filesizeformat": filesizeformat,
		// process is an identity filter: a no-op placeholder for user
		// templates to chain onto.
		"process": func(v any) any { return v },
	}
}

func filesizeformat(size any) string {
	var bytesVal float64
	switch v := size.(type) {
	case int:
		bytesVal = float64(v)
	case int64:
		bytesVal = float64(v)
	case float64:
		bytesVal = v
	default:
		return fmt.Sprint(size)
	}

	const unit = 1024.0
	if bytesVal < unit {
		return fmt.Sprintf("%.0f B", bytesVal)
	}
	div, exp := unit, 0
	for n := bytesVal / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"KB", "MB", "GB", "TB", "PB"}
	return fmt.Sprintf("%.1f %s", bytesVal/div, units[exp])
}

// Source returns the original template text.
func (t *Template) Source() string { return t.source }
