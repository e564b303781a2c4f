// Package sink holds terminal/filesystem-facing elements: conduit.DownloadFile,
// conduit.Cli, conduit.FileInfo, conduit.Find, conduit.Path.
package sink

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/element"
	"github.com/conduit-run/conduit/pkg/iter"
	"github.com/conduit-run/conduit/pkg/registry"
	"github.com/conduit-run/conduit/pkg/schema"
	"github.com/conduit-run/conduit/pkg/tmpl"
)

func init() {
	registry.Register(element.Descriptor{
		ID: "conduit.DownloadFile",
		Summary: "Downloads the URL in each item's `url` field into `output_dir`, naming it `filename` " +
			"(a template, defaulting to the URL's basename).",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "output_dir", Type: schema.TypeString},
			{Name: "filename", Type: schema.TypeString, Optional: true},
			{Name: "create_dirs", Type: schema.TypeBoolean, Optional: true, Default: true},
			{Name: "overwrite", Type: schema.TypeBoolean, Optional: true, Default: false},
		}},
		Input: &schema.Input{Fields: []schema.Field{
			{Name: "url", Type: schema.TypeString},
		}},
		OutputShape: "object {url: string, path: string}",
		New:         newDownloadFile,
	})

	registry.Register(element.Descriptor{
		ID: "conduit.Path",
		Summary: "Applies `operation` (join, dirname, basename, extension, abs) to each item, or to the " +
			"constructor-supplied `parts` when operation is join and parts is declared.",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "operation", Type: schema.TypeString},
			{Name: "parts", Type: schema.TypeArray, Optional: true},
		}},
		Input:       schema.Unstructured,
		OutputShape: "string path",
		New:         newPath,
	})

	registry.Register(element.Descriptor{
		ID: "conduit.Find",
		Summary: "Walks `path` up to `max_depth` levels deep and yields every entry of `type` whose base " +
			"name matches `name`.",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "path", Type: schema.TypeString},
			{Name: "name", Type: schema.TypeString, Optional: true, Default: "*"},
			{Name: "type", Type: schema.TypeString, Optional: true, Default: "any"},
			{Name: "max_depth", Type: schema.TypeInteger, Optional: true, Default: -1},
		}},
		OutputShape: "string path",
		New:         newFind,
	})

	registry.Register(element.Descriptor{
		ID:      "conduit.FileInfo",
		Summary: "Stats the path in each item's `path` field and yields a new {path, size, mod_time, is_dir} " +
			"record; the item's other fields are not carried over.",
		Input: &schema.Input{Fields: []schema.Field{
			{Name: "path", Type: schema.TypeString},
		}},
		OutputShape: "object {path, size, mod_time, is_dir}",
		New:         newFileInfo,
	})

	registry.Register(element.Descriptor{
		ID: "conduit.Cli",
		Summary: "Renders `command` per item and runs it, attaching stdout/stderr/exit_code to the " +
			"item when `capture_output` is set.",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "command", Type: schema.TypeString},
			{Name: "args", Type: schema.TypeArray, Optional: true},
			{Name: "capture_output", Type: schema.TypeBoolean, Optional: true, Default: true},
			{Name: "shell", Type: schema.TypeBoolean, Optional: true, Default: true},
		}},
		Input:       schema.Unstructured,
		OutputShape: "object {input, stdout, stderr, exit_code}",
		New:         newCLI,
	})
}

// DownloadFile is conduit.DownloadFile.
type DownloadFile struct {
	element.Base
	outputDir  string
	filename   *tmpl.Template
	createDirs bool
	overwrite  bool
	client     *http.Client
}

func newDownloadFile(ctx element.BuildContext) (element.Element, error) {
	outputDir, _ := ctx.Args["output_dir"].(string)
	if outputDir == "" {
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.DownloadFile requires `output_dir`")
	}
	var filenameTmpl *tmpl.Template
	if src, ok := ctx.Args["filename"].(string); ok && src != "" {
		t, err := tmpl.Compile(src)
		if err != nil {
			return nil, err
		}
		filenameTmpl = t
	}
	createDirs := true
	if v, ok := ctx.Args["create_dirs"].(bool); ok {
		createDirs = v
	}
	overwrite, _ := ctx.Args["overwrite"].(bool)
	return &DownloadFile{
		Base:       element.NewBase("conduit.DownloadFile", ctx.StageIndex),
		outputDir:  outputDir,
		filename:   filenameTmpl,
		createDirs: createDirs,
		overwrite:  overwrite,
		client:     http.DefaultClient,
	}, nil
}

func (d *DownloadFile) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	return iter.Func(func(ctx context.Context) (any, bool, error) {
		item, ok, err := upstream.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, false, conduiterr.New(conduiterr.KindItem, "conduit.DownloadFile: item is not an object")
		}
		url, _ := rec["url"].(string)
		if url == "" {
			return nil, false, conduiterr.New(conduiterr.KindItem, "conduit.DownloadFile: item missing `url`")
		}

		name := filepath.Base(url)
		if d.filename != nil {
			rendered, err := d.filename.Render(item)
			if err != nil {
				return nil, false, err
			}
			name = rendered
		}
		path := filepath.Join(d.outputDir, name)

		if !d.overwrite {
			if _, statErr := os.Stat(path); statErr == nil {
				return map[string]any{"url": url, "path": path}, true, nil
			}
		}

		if d.createDirs {
			if err := os.MkdirAll(d.outputDir, 0o755); err != nil {
				return nil, false, conduiterr.Wrap(conduiterr.KindResource, err, "conduit.DownloadFile: mkdir %q", d.outputDir)
			}
		}
		if err := d.download(ctx, url, path); err != nil {
			return nil, false, conduiterr.Wrap(conduiterr.KindResource, err, "conduit.DownloadFile: %s -> %s", url, path)
		}
		return map[string]any{"url": url, "path": path}, true, nil
	}), nil
}

func (d *DownloadFile) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

func (d *DownloadFile) Close() error { return nil }

// Path is conduit.Path.
type Path struct {
	element.Base
	operation string
	parts     []string
}

func newPath(ctx element.BuildContext) (element.Element, error) {
	op, _ := ctx.Args["operation"].(string)
	switch op {
	case "join", "dirname", "basename", "extension", "abs":
	default:
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.Path: unknown `operation` %q", op)
	}
	var parts []string
	if raw, ok := ctx.Args["parts"].([]any); ok {
		for _, p := range raw {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
	}
	return &Path{Base: element.NewBase("conduit.Path", ctx.StageIndex), operation: op, parts: parts}, nil
}

func (p *Path) apply(item any) (string, error) {
	if p.operation == "join" && p.parts != nil {
		return filepath.Join(p.parts...), nil
	}
	s, ok := item.(string)
	if !ok {
		return "", conduiterr.New(conduiterr.KindItem, "conduit.Path: item is not a string (got %T)", item)
	}
	switch p.operation {
	case "join":
		return s, nil
	case "dirname":
		return filepath.Dir(s), nil
	case "basename":
		return filepath.Base(s), nil
	case "extension":
		return filepath.Ext(s), nil
	case "abs":
		abs, err := filepath.Abs(s)
		if err != nil {
			return "", err
		}
		return abs, nil
	default:
		return "", conduiterr.New(conduiterr.KindInternal, "conduit.Path: unreachable operation %q", p.operation)
	}
}

func (p *Path) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	return iter.Func(func(ctx context.Context) (any, bool, error) {
		item, ok, err := upstream.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		out, err := p.apply(item)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	}), nil
}

func (p *Path) Close() error { return nil }

// Find is conduit.Find.
type Find struct {
	element.Base
	root            string
	name, entryType string
	maxDepth        int
}

func newFind(ctx element.BuildContext) (element.Element, error) {
	root, _ := ctx.Args["path"].(string)
	if root == "" {
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.Find requires `path`")
	}
	name, ok := ctx.Args["name"].(string)
	if !ok || name == "" {
		name = "*"
	}
	entryType, ok := ctx.Args["type"].(string)
	if !ok || entryType == "" {
		entryType = "any"
	}
	maxDepth := -1
	if d, ok := schema.AsFloat64(ctx.Args["max_depth"]); ok {
		maxDepth = int(d)
	}
	return &Find{
		Base: element.NewBase("conduit.Find", ctx.StageIndex),
		root: root, name: name, entryType: entryType, maxDepth: maxDepth,
	}, nil
}

func (f *Find) depth(path string) int {
	rel, err := filepath.Rel(f.root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

func (f *Find) matches(path string, d fs.DirEntry) bool {
	if ok, _ := filepath.Match(f.name, d.Name()); !ok {
		return false
	}
	switch f.entryType {
	case "file":
		return !d.IsDir()
	case "dir":
		return d.IsDir()
	default:
		return true
	}
}

func (f *Find) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	var vals []any
	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == f.root {
			return nil
		}
		if f.maxDepth >= 0 && f.depth(path) > f.maxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if f.matches(path, d) {
			vals = append(vals, path)
		}
		return nil
	})
	if err != nil {
		return nil, conduiterr.Wrap(conduiterr.KindResource, err, "conduit.Find: walk %q", f.root)
	}
	return iter.FromSlice(vals), nil
}

func (f *Find) Close() error { return nil }

// FileInfo is conduit.FileInfo.
type FileInfo struct{ element.Base }

func newFileInfo(ctx element.BuildContext) (element.Element, error) {
	return &FileInfo{Base: element.NewBase("conduit.FileInfo", ctx.StageIndex)}, nil
}

func (fi *FileInfo) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	return iter.Func(func(ctx context.Context) (any, bool, error) {
		item, ok, err := upstream.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, false, conduiterr.New(conduiterr.KindItem, "conduit.FileInfo: item is not an object")
		}
		path, _ := rec["path"].(string)
		info, err := os.Stat(path)
		if err != nil {
			return nil, false, conduiterr.Wrap(conduiterr.KindItem, err, "conduit.FileInfo: stat %q", path)
		}
		return map[string]any{
			"path":     path,
			"size":     info.Size(),
			"mod_time": info.ModTime().Format(time.RFC3339),
			"is_dir":   info.IsDir(),
		}, true, nil
	}), nil
}

func (fi *FileInfo) Close() error { return nil }

// CLI is conduit.Cli.
type CLI struct {
	element.Base
	command       *tmpl.Template
	args          []*tmpl.Template
	captureOutput bool
	shell         bool
}

func newCLI(ctx element.BuildContext) (element.Element, error) {
	src, _ := ctx.Args["command"].(string)
	if src == "" {
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.Cli requires `command`")
	}
	t, err := tmpl.Compile(src)
	if err != nil {
		return nil, err
	}
	var argTmpls []*tmpl.Template
	if raw, ok := ctx.Args["args"].([]any); ok {
		for _, a := range raw {
			s, ok := a.(string)
			if !ok {
				return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.Cli: `args` entries must be strings")
			}
			at, err := tmpl.Compile(s)
			if err != nil {
				return nil, err
			}
			argTmpls = append(argTmpls, at)
		}
	}
	captureOutput := true
	if v, ok := ctx.Args["capture_output"].(bool); ok {
		captureOutput = v
	}
	shell := true
	if v, ok := ctx.Args["shell"].(bool); ok {
		shell = v
	}
	return &CLI{
		Base:          element.NewBase("conduit.Cli", ctx.StageIndex),
		command:       t,
		args:          argTmpls,
		captureOutput: captureOutput,
		shell:         shell,
	}, nil
}

func (c *CLI) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	return iter.Func(func(ctx context.Context) (any, bool, error) {
		item, ok, err := upstream.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		rendered, err := c.command.Render(item)
		if err != nil {
			return nil, false, err
		}
		renderedArgs := make([]string, 0, len(c.args))
		for _, at := range c.args {
			a, err := at.Render(item)
			if err != nil {
				return nil, false, err
			}
			renderedArgs = append(renderedArgs, a)
		}

		var cmd *exec.Cmd
		if c.shell {
			full := rendered
			if len(renderedArgs) > 0 {
				full = fmt.Sprintf("%s %s", rendered, strings.Join(renderedArgs, " "))
			}
			cmd = exec.CommandContext(ctx, "sh", "-c", full)
		} else {
			cmd = exec.CommandContext(ctx, rendered, renderedArgs...)
		}

		if !c.captureOutput {
			runErr := cmd.Run()
			return map[string]any{"input": item, "exit_code": exitCodeOf(runErr)}, true, nil
		}

		var stdout, stderr strings.Builder
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		runErr := cmd.Run()
		if _, isExit := runErr.(*exec.ExitError); runErr != nil && !isExit {
			return nil, false, conduiterr.Wrap(conduiterr.KindResource, runErr, "conduit.Cli: run %q", rendered)
		}
		return map[string]any{
			"input":     item,
			"stdout":    stdout.String(),
			"stderr":    stderr.String(),
			"exit_code": exitCodeOf(runErr),
		}, true, nil
	}), nil
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func (c *CLI) Close() error { return nil }
