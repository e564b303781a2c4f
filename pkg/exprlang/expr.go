// Package exprlang implements the sandboxed expression evaluator used
// by Filter.condition, GroupBy.key, Sort.key and Eval.expression.
// Built on github.com/expr-lang/expr, which refuses
// statements/imports/reflection by construction — exactly the
// sandboxing a per-item condition/key expression needs.
package exprlang

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/conduit-run/conduit/pkg/conduiterr"
)

// env is the variable/function surface exposed to expressions:
// exactly {input, len, any, all, min, max, abs}.
type env struct {
	Input any                               `expr:"input"`
	Len   func(any) int                     `expr:"len"`
	Any   func([]any, func(any) bool) bool  `expr:"any"`
	All   func([]any, func(any) bool) bool  `expr:"all"`
	Min   func(...float64) float64          `expr:"min"`
	Max   func(...float64) float64          `expr:"max"`
	Abs   func(float64) float64             `expr:"abs"`
}

func newEnv(input any) env {
	return env{
		Input: input,
		Len: func(v any) int {
			switch x := v.(type) {
			case []any:
				return len(x)
			case map[string]any:
				return len(x)
			case string:
				return len(x)
			default:
				return 0
			}
		},
		Any: func(items []any, pred func(any) bool) bool {
			for _, it := range items {
				if pred(it) {
					return true
				}
			}
			return false
		},
		All: func(items []any, pred func(any) bool) bool {
			for _, it := range items {
				if !pred(it) {
					return false
				}
			}
			return true
		},
		Min: func(vs ...float64) float64 {
			m := math.Inf(1)
			for _, v := range vs {
				if v < m {
					m = v
				}
			}
			return m
		},
		Max: func(vs ...float64) float64 {
			m := math.Inf(-1)
			for _, v := range vs {
				if v > m {
					m = v
				}
			}
			return m
		},
		Abs: math.Abs,
	}
}

// Program is a compiled expression, ready to run once per item.
// Compiling once per stage, not per item, keeps the hot path free of
// parse/compile overhead.
type Program struct {
	source string
	prog   *vm.Program
}

// Compile parses and statically checks expr, relying on expr's own
// restricted grammar — no statement forms, no import mechanism — to
// reject anything beyond a pure expression.
func Compile(source string) (*Program, error) {
	prog, err := expr.Compile(source, expr.Env(env{}), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, conduiterr.Wrap(conduiterr.KindExpression, err, "compile expression %q", source)
	}
	return &Program{source: source, prog: prog}, nil
}

// Eval runs the compiled expression against a per-item input value.
func (p *Program) Eval(input any) (any, error) {
	out, err := expr.Run(p.prog, newEnv(input))
	if err != nil {
		return nil, conduiterr.Wrap(conduiterr.KindExpression, err, "evaluate %q", p.source)
	}
	return out, nil
}

// EvalBool runs the expression and requires a boolean result, used by
// Filter.condition.
func (p *Program) EvalBool(input any) (bool, error) {
	out, err := p.Eval(input)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, conduiterr.New(conduiterr.KindExpression, "expression %q did not evaluate to a boolean (got %T)", p.source, out)
	}
	return b, nil
}

// EvalString runs the expression and stringifies the result, used by
// GroupBy.key and Sort.key which need a comparable/groupable scalar.
func (p *Program) EvalString(input any) (string, error) {
	out, err := p.Eval(input)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", out), nil
}

// Source returns the original expression text.
func (p *Program) Source() string { return p.source }
