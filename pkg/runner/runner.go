// Package runner ties the build, execution, and metrics
// stages together into the one entry point both the CLI and
// the HTTP driver call: parse a document, resolve variables,
// build the chain, run it, and assemble a Result. Keeping this as a
// single choke point means the CLI and HTTP driver never duplicate
// run logic.
package runner

import (
	"context"
	"strings"

	"github.com/conduit-run/conduit/pkg/builder"
	"github.com/conduit-run/conduit/pkg/config"
	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/elements/transform"
	"github.com/conduit-run/conduit/pkg/executor"
	"github.com/conduit-run/conduit/pkg/metrics"
	"github.com/conduit-run/conduit/pkg/resolve"
)

// Options configures one run.
type Options struct {
	Args        resolve.Args
	StopOnError bool
}

// Result is the outcome of one run, shaped to match the HTTP driver's
// response body so the CLI and HTTP paths share one type. Stdout holds
// one entry per conduit.Console rendering and Stderr one entry per
// per-item error recorded under the "continue" (stop_on_error=false)
// policy, followed by the error that ended the run if there was one,
// matching the array wire shape rather than a joined string.
type Result struct {
	Success bool                `json:"success"`
	Results []any               `json:"results"`
	Stdout  []string            `json:"stdout"`
	Stderr  []string            `json:"stderr"`
	Stats   metrics.RunSnapshot `json:"stats"`
	Error   string              `json:"error,omitempty"`
}

// lineCollector is an io.Writer that records one slice entry per
// Write call. conduit.Console calls fmt.Fprintln once per rendered
// item, so one Write arrives per item and the collected slice is
// exactly one entry per Console rendering.
type lineCollector struct {
	lines []string
}

func (l *lineCollector) Write(p []byte) (int, error) {
	l.lines = append(l.lines, strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// Run resolves variables in raw, parses it, builds the pipeline, and
// executes it to completion, capturing every conduit.Console write
// into the returned Stdout rather than the process's real stdout.
func Run(ctx context.Context, raw []byte, opts Options) (*Result, error) {
	resolved, err := resolve.Resolve(string(raw), opts.Args)
	if err != nil {
		return nil, err
	}

	doc, err := config.Parse([]byte(resolved))
	if err != nil {
		return nil, err
	}

	built, err := builder.Build(doc)
	if err != nil {
		return nil, err
	}

	stdout := &lineCollector{lines: []string{}}
	redirectConsole(built, stdout)

	run := metrics.NewRun()
	chain, err := executor.Open(ctx, built, run, nil)
	if err != nil {
		return nil, err
	}

	policy := executor.StopOnError
	if !opts.StopOnError {
		policy = executor.SkipOnError
	}

	results, runErr := chain.Run(ctx, policy)
	run.Finish()

	stderr := make([]string, 0, len(chain.SkippedErrors()))
	for _, e := range chain.SkippedErrors() {
		stderr = append(stderr, e.Error())
	}

	result := &Result{
		Success: runErr == nil,
		Results: results,
		Stdout:  stdout.lines,
		Stderr:  stderr,
		Stats:   run.Snapshot(),
	}
	if runErr != nil {
		result.Error = runErr.Error()
		result.Stderr = append(result.Stderr, runErr.Error())
	}

	if closeErr := chain.Close(); closeErr != nil && runErr == nil {
		return result, conduiterr.Wrap(conduiterr.KindResource, closeErr, "close pipeline")
	}
	return result, runErr
}

// redirectConsole finds every conduit.Console instance in the built
// chain (including inside fork paths isn't reached here since forks
// build their own sub-chains independently — each fork path's console
// output goes to the process's real stdout, which is the correct
// behavior for a long-running sub-pipeline rather than one swallowed
// into the parent's captured buffer) and points its writer at buf.
func redirectConsole(built []builder.Built, buf *lineCollector) {
	for _, b := range built {
		if c, ok := b.Element.(*transform.Console); ok {
			c.SetWriter(buf)
		}
	}
}
