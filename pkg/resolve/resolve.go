// Package resolve implements the build-time `${NAME}` / `${NAME:-default}`
// substitution pass over a raw pipeline descriptor, run before YAML is
// parsed into structured stages.
//
// Built on github.com/drone/envsubst, a POSIX-shell-style substitution
// library: take a document with `${NAME}` tokens and a lookup
// function, return the substituted text. drone/envsubst already
// implements the `${NAME:-x}` default-value form natively, so the
// resolver only needs to supply the lookup precedence.
package resolve

import (
	"fmt"
	"os"
	"regexp"

	"github.com/drone/envsubst"

	"github.com/conduit-run/conduit/pkg/conduiterr"
)

// Args are run-time `--arg NAME=VALUE` overrides, the highest-precedence
// source: run-args > process env > declared default > unset with no
// default is a build error.
type Args map[string]string

// bareToken matches a `${NAME}` reference with no `:-default` clause,
// the only form that is a hard build error when unresolved.
// drone/envsubst's mapping callback is invoked for every token
// including ones that carry a default, so the precedence check has to
// be done against the source text directly rather than inside the
// callback.
var bareToken = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Resolve substitutes every `${NAME}` / `${NAME:-default}` token in raw
// according to the precedence above. Any bare `${NAME}` with no
// default, resolved by neither a run-arg nor the process environment,
// fails the build with KindParse before the pipeline is otherwise usable.
func Resolve(raw string, args Args) (string, error) {
	var missing []string
	for _, m := range bareToken.FindAllStringSubmatch(raw, -1) {
		name := m[1]
		if _, ok := args[name]; ok {
			continue
		}
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) > 0 {
		return "", conduiterr.New(conduiterr.KindParse,
			"undefined variable(s) with no default and no run-arg or environment value: %s", formatNames(missing))
	}

	out, err := envsubst.Eval(raw, func(name string) string {
		if v, ok := args[name]; ok {
			return v
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return ""
	})
	if err != nil {
		return "", conduiterr.Wrap(conduiterr.KindParse, err, "resolve variable substitutions")
	}
	return out, nil
}

func formatNames(names []string) string {
	seen := make(map[string]bool, len(names))
	out := ""
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		if out != "" {
			out += ", "
		}
		out += fmt.Sprintf("%q", n)
	}
	return out
}
