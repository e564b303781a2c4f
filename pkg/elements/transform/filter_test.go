package transform

import (
	"context"
	"testing"

	"github.com/conduit-run/conduit/pkg/element"
	"github.com/conduit-run/conduit/pkg/iter"
)

func buildFilter(t *testing.T, args map[string]any) *Filter {
	t.Helper()
	el, err := newFilter(element.BuildContext{Args: args})
	if err != nil {
		t.Fatal(err)
	}
	return el.(*Filter)
}

func TestFilterKeepsMatchingByDefault(t *testing.T) {
	f := buildFilter(t, map[string]any{"condition": "input >= 3"})
	out, err := f.Open(context.Background(), iter.FromSlice([]any{1, 2, 3, 4, 5}))
	if err != nil {
		t.Fatal(err)
	}
	got, err := iter.Drain(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != 3 || got[2] != 5 {
		t.Fatalf("got %v", got)
	}
}

func TestFilterKeepMatchingFalseInvertsPredicate(t *testing.T) {
	f := buildFilter(t, map[string]any{"condition": "input >= 3", "keep_matching": false})
	out, err := f.Open(context.Background(), iter.FromSlice([]any{1, 2, 3, 4, 5}))
	if err != nil {
		t.Fatal(err)
	}
	got, err := iter.Drain(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("got %v", got)
	}
}

func TestFilterRequiresCondition(t *testing.T) {
	if _, err := newFilter(element.BuildContext{Args: map[string]any{}}); err == nil {
		t.Fatal("expected an error for missing `condition`")
	}
}

func TestFilterNonBoolConditionIsItemError(t *testing.T) {
	f := buildFilter(t, map[string]any{"condition": "input"})
	out, err := f.Open(context.Background(), iter.FromSlice([]any{1}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := iter.Drain(context.Background(), out); err == nil {
		t.Fatal("expected an item error for a non-boolean condition result")
	}
}
