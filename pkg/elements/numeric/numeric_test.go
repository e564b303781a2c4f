package numeric

import (
	"context"
	"math"
	"testing"

	"github.com/conduit-run/conduit/pkg/element"
	"github.com/conduit-run/conduit/pkg/iter"
)

func TestEvalYieldsExpressionResultPerItem(t *testing.T) {
	el, err := newEval(element.BuildContext{Args: map[string]any{"expression": "input.x * 2"}})
	if err != nil {
		t.Fatal(err)
	}
	out, err := el.(*Eval).Open(context.Background(), iter.Singleton(map[string]any{"x": 5}))
	if err != nil {
		t.Fatal(err)
	}
	got, err := iter.Drain(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 10 {
		t.Fatalf("got %v", got[0])
	}
}

func TestEvalRequiresExpression(t *testing.T) {
	if _, err := newEval(element.BuildContext{Args: map[string]any{}}); err == nil {
		t.Fatal("expected an error for missing `expression`")
	}
}

func numpyRun(t *testing.T, op string, values []any) any {
	t.Helper()
	el, err := newNumpy(element.BuildContext{Args: map[string]any{"operation": op}})
	if err != nil {
		t.Fatal(err)
	}
	out, err := el.(*Numpy).Open(context.Background(), iter.FromSlice(values))
	if err != nil {
		t.Fatal(err)
	}
	got, err := iter.Drain(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %v", got)
	}
	return got[0]
}

func TestNumpySum(t *testing.T) {
	if got := numpyRun(t, "sum", []any{1.0, 2.0, 3.0}); got != 6.0 {
		t.Fatalf("got %v", got)
	}
}

func TestNumpyMean(t *testing.T) {
	if got := numpyRun(t, "mean", []any{2.0, 4.0, 6.0}); got != 4.0 {
		t.Fatalf("got %v", got)
	}
}

func TestNumpyMinMax(t *testing.T) {
	if got := numpyRun(t, "min", []any{5.0, 1.0, 3.0}); got != 1.0 {
		t.Fatalf("got min %v", got)
	}
	if got := numpyRun(t, "max", []any{5.0, 1.0, 3.0}); got != 5.0 {
		t.Fatalf("got max %v", got)
	}
}

func TestNumpyCount(t *testing.T) {
	if got := numpyRun(t, "count", []any{1.0, 2.0, 3.0}); got != 3 {
		t.Fatalf("got %v", got)
	}
}

func TestNumpyStd(t *testing.T) {
	got := numpyRun(t, "std", []any{2.0, 4.0, 4.0, 4.0, 5.0, 5.0, 7.0, 9.0}).(float64)
	if math.Abs(got-2.0) > 1e-9 {
		t.Fatalf("got %v, want ~2.0", got)
	}
}

func TestNumpyAcceptsValueFieldFromObjects(t *testing.T) {
	got := numpyRun(t, "sum", []any{
		map[string]any{"value": 1.0},
		map[string]any{"value": 2.0},
	})
	if got != 3.0 {
		t.Fatalf("got %v", got)
	}
}

func TestNumpyEmptyUpstreamYieldsNothing(t *testing.T) {
	el, err := newNumpy(element.BuildContext{Args: map[string]any{"operation": "sum"}})
	if err != nil {
		t.Fatal(err)
	}
	out, err := el.(*Numpy).Open(context.Background(), iter.Empty())
	if err != nil {
		t.Fatal(err)
	}
	got, err := iter.Drain(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestNumpyNonNumericItemIsItemError(t *testing.T) {
	el, err := newNumpy(element.BuildContext{Args: map[string]any{"operation": "sum"}})
	if err != nil {
		t.Fatal(err)
	}
	out, err := el.(*Numpy).Open(context.Background(), iter.Singleton("not a number"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := iter.Drain(context.Background(), out); err == nil {
		t.Fatal("expected an error for a non-numeric item")
	}
}

func TestNumpyRejectsUnknownOperation(t *testing.T) {
	if _, err := newNumpy(element.BuildContext{Args: map[string]any{"operation": "median"}}); err == nil {
		t.Fatal("expected an error for an unsupported `operation`")
	}
}
