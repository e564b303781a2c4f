// Package iter provides the lazy pull-based sequence abstraction that
// every pipeline stage is built from: a downstream pull drives
// upstream production one item at a time, so memory use is bounded by
// the in-flight item rather than the dataset size.
package iter

import "context"

// Iterator yields values one at a time under explicit pull.
// Next blocks until a value is ready, the sequence is exhausted, or ctx
// is cancelled. Close releases resources and is safe to call more than
// once; implementations must make the second call a no-op.
type Iterator interface {
	Next(ctx context.Context) (value any, ok bool, err error)
	Close() error
}

// Func adapts a plain function into an Iterator with a no-op Close.
type Func func(ctx context.Context) (any, bool, error)

func (f Func) Next(ctx context.Context) (any, bool, error) { return f(ctx) }
func (f Func) Close() error                                { return nil }

// Empty returns an iterator that immediately reports exhaustion.
func Empty() Iterator {
	return Func(func(ctx context.Context) (any, bool, error) { return nil, false, nil })
}

// Singleton returns an iterator yielding exactly one value.
func Singleton(v any) Iterator {
	done := false
	return Func(func(ctx context.Context) (any, bool, error) {
		if done {
			return nil, false, nil
		}
		done = true
		return v, true, nil
	})
}

// FromSlice yields each element of vs in order.
func FromSlice(vs []any) Iterator {
	i := 0
	return Func(func(ctx context.Context) (any, bool, error) {
		if i >= len(vs) {
			return nil, false, nil
		}
		v := vs[i]
		i++
		return v, true, nil
	})
}

// Drain pulls every remaining value from it into a slice. Used by
// buffered stages (GroupBy, Sort) and by Fork, which must fully
// enumerate a sub-pipeline's output for a single input item.
func Drain(ctx context.Context, it Iterator) ([]any, error) {
	var out []any
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// Take pulls at most n values, so upstream stages never produce more
// than what's actually consumed.
func Take(ctx context.Context, it Iterator, n int) ([]any, error) {
	var out []any
	for len(out) < n {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out, nil
}
