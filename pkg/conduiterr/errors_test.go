package conduiterr_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/conduit-run/conduit/pkg/conduiterr"
)

func TestRecoverable(t *testing.T) {
	cases := map[conduiterr.Kind]bool{
		conduiterr.KindItem:           true,
		conduiterr.KindResource:       true,
		conduiterr.KindParse:          false,
		conduiterr.KindUnknownElement: false,
		conduiterr.KindSchemaMismatch: false,
		conduiterr.KindCancelled:      false,
	}
	for kind, want := range cases {
		if got := kind.Recoverable(); got != want {
			t.Errorf("%s.Recoverable() = %v, want %v", kind, got, want)
		}
	}
}

func TestErrorMessageIncludesKindStageAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := conduiterr.Wrap(conduiterr.KindItem, cause, "process item").WithStage(2, "conduit.Filter")

	msg := err.Error()
	for _, want := range []string{"ItemError", "process item", "conduit.Filter", "boom"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("root")
	err := conduiterr.Wrap(conduiterr.KindResource, cause, "open")
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
}

func TestAsFindsWrappedConduitError(t *testing.T) {
	inner := conduiterr.New(conduiterr.KindSchemaMismatch, "bad arg")
	outer := conduiterr.Wrap(conduiterr.KindElementInit, inner, "build stage")

	var ce *conduiterr.Error
	if !conduiterr.As(outer, &ce) {
		t.Fatal("expected As to succeed")
	}
	if ce.Kind != conduiterr.KindElementInit {
		t.Fatalf("got %s, want outermost kind ElementInitError", ce.Kind)
	}
}

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{conduiterr.New(conduiterr.KindUnknownElement, "x"), 3},
		{conduiterr.New(conduiterr.KindSchemaMismatch, "x"), 4},
		{conduiterr.New(conduiterr.KindItem, "x"), 1},
		{conduiterr.New(conduiterr.KindCancelled, "x"), 1},
		{errors.New("not a conduiterr"), 1},
	}
	for _, c := range cases {
		if got := conduiterr.ExitCode(c.err); got != c.want {
			t.Errorf("ExitCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
