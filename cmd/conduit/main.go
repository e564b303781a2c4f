// Command conduit is the CLI entry point: `conduit run`, `conduit
// serve`, `conduit schema`. Built on github.com/spf13/cobra.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/conduit-run/conduit/pkg/elements/data"
	_ "github.com/conduit-run/conduit/pkg/elements/flow"
	_ "github.com/conduit-run/conduit/pkg/elements/numeric"
	_ "github.com/conduit-run/conduit/pkg/elements/sftp"
	_ "github.com/conduit-run/conduit/pkg/elements/sink"
	_ "github.com/conduit-run/conduit/pkg/elements/source"
	_ "github.com/conduit-run/conduit/pkg/elements/transform"

	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/log"
	"github.com/conduit-run/conduit/pkg/registry"
	"github.com/conduit-run/conduit/pkg/resolve"
	"github.com/conduit-run/conduit/pkg/runner"
	"github.com/conduit-run/conduit/pkg/schema"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		var ce *conduiterr.Error
		if conduiterr.As(err, &ce) {
			log.Default().Error(err.Error(), "kind", string(ce.Kind))
			return conduiterr.ExitCode(err)
		}
		// Errors that never became a *conduiterr.Error come from cobra
		// itself — bad flags, wrong arg count, unknown subcommand —
		// an invalid-CLI-usage error, exit code 2.
		log.Default().Error(err.Error())
		return 2
	}
	return 0
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "conduit",
		Short:         "Run declarative YAML streaming pipelines.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newRunCmd(), newServeCmd(), newSchemaCmd())
	return cmd
}

func newRunCmd() *cobra.Command {
	var argFlags []string
	var stopOnError bool

	cmd := &cobra.Command{
		Use:   "run <pipeline.yaml>",
		Short: "Build and execute a pipeline document to completion.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return conduiterr.Wrap(conduiterr.KindResource, err, "read %q", args[0])
			}

			runArgs, err := parseArgFlags(argFlags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := runner.Run(ctx, raw, runner.Options{Args: runArgs, StopOnError: stopOnError})
			if result != nil {
				for _, line := range result.Stdout {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				for _, item := range result.Results {
					fmt.Fprintln(cmd.OutOrStdout(), item)
				}
			}
			return err
		},
	}
	cmd.Flags().StringArrayVar(&argFlags, "arg", nil, "pipeline argument override, NAME=VALUE (repeatable)")
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", true, "abort the run on the first recoverable item error")
	return cmd
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP driver (POST /run, GET /schema).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveHTTP(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of every registered element.",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := schema.Emit(registry.Schemas())
			body, err := schema.MarshalIndent(doc)
			if err != nil {
				return conduiterr.Wrap(conduiterr.KindInternal, err, "marshal schema")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return nil
		},
	}
}

// parseArgFlags returns a plain (non-*conduiterr.Error) error on
// malformed input deliberately: it's a CLI usage mistake, not a
// pipeline-run failure, and run() maps anything that isn't a
// *conduiterr.Error to exit code 2.
func parseArgFlags(flags []string) (resolve.Args, error) {
	out := make(resolve.Args, len(flags))
	for _, f := range flags {
		name, value, ok := splitArgFlag(f)
		if !ok {
			return nil, fmt.Errorf("--arg must be NAME=VALUE, got %q", f)
		}
		out[name] = value
	}
	return out, nil
}

func splitArgFlag(f string) (name, value string, ok bool) {
	for i := 0; i < len(f); i++ {
		if f[i] == '=' {
			return f[:i], f[i+1:], true
		}
	}
	return "", "", false
}
