package defaults_test

import (
	"reflect"
	"testing"

	"github.com/conduit-run/conduit/pkg/defaults"
	"github.com/conduit-run/conduit/pkg/schema"
)

func TestMergeNilItemReturnsDefaultsClone(t *testing.T) {
	d := map[string]any{"a": 1, "b": "x"}
	got := defaults.Merge(nil, d, nil)
	if !reflect.DeepEqual(got, d) {
		t.Fatalf("got %v, want %v", got, d)
	}

	gotMap := got.(map[string]any)
	gotMap["a"] = 999
	if d["a"] != 1 {
		t.Fatal("Merge must clone defaults, not alias them")
	}
}

func TestMergeNilItemNilDefaultsReturnsEmptyMap(t *testing.T) {
	got := defaults.Merge(nil, nil, nil)
	m, ok := got.(map[string]any)
	if !ok || len(m) != 0 {
		t.Fatalf("got %#v, want empty map", got)
	}
}

func TestMergeMapItemOverridesDefaults(t *testing.T) {
	d := map[string]any{"a": 1, "b": "default"}
	item := map[string]any{"b": "override", "c": true}
	got := defaults.Merge(nil, d, item).(map[string]any)

	want := map[string]any{"a": 1, "b": "override", "c": true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergeSingleFieldSchemaBindsScalar(t *testing.T) {
	s := &schema.Input{Fields: []schema.Field{{Name: "url", Type: schema.TypeString}}}
	d := map[string]any{"method": "GET"}
	got := defaults.Merge(s, d, "http://example.com").(map[string]any)

	want := map[string]any{"url": "http://example.com", "method": "GET"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergeScalarWithoutSingleFieldSchemaPassesThrough(t *testing.T) {
	d := map[string]any{"a": 1}
	got := defaults.Merge(nil, d, 42)
	if got != 42 {
		t.Fatalf("got %v, want 42 unchanged", got)
	}
}

func TestMergeMultiFieldSchemaScalarPassesThrough(t *testing.T) {
	s := &schema.Input{Fields: []schema.Field{
		{Name: "a", Type: schema.TypeString},
		{Name: "b", Type: schema.TypeString},
	}}
	got := defaults.Merge(s, map[string]any{"a": "x"}, "scalar")
	if got != "scalar" {
		t.Fatalf("got %v, want scalar unchanged", got)
	}
}
