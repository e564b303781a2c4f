package schema_test

import (
	"testing"

	"github.com/conduit-run/conduit/pkg/schema"
)

func TestNilInputHasNoFields(t *testing.T) {
	var s *schema.Input
	if s.Has("anything") {
		t.Fatal("nil schema should declare no fields")
	}
	if s.FieldNames() != nil {
		t.Fatalf("got %v, want nil", s.FieldNames())
	}
	if _, ok := s.SingleField(); ok {
		t.Fatal("nil schema has no single field")
	}
}

func TestHasAndFieldNames(t *testing.T) {
	s := &schema.Input{Fields: []schema.Field{
		{Name: "url", Type: schema.TypeString},
		{Name: "timeout", Type: schema.TypeNumber, Optional: true},
	}}
	if !s.Has("url") || !s.Has("timeout") {
		t.Fatal("expected both fields present")
	}
	if s.Has("missing") {
		t.Fatal("unexpected field present")
	}
	names := s.FieldNames()
	if len(names) != 2 || names[0] != "url" || names[1] != "timeout" {
		t.Fatalf("got %v", names)
	}
}

func TestSingleField(t *testing.T) {
	s := &schema.Input{Fields: []schema.Field{{Name: "value", Type: schema.TypeNumber}}}
	f, ok := s.SingleField()
	if !ok || f.Name != "value" {
		t.Fatalf("got %v, %v", f, ok)
	}

	multi := &schema.Input{Fields: []schema.Field{{Name: "a"}, {Name: "b"}}}
	if _, ok := multi.SingleField(); ok {
		t.Fatal("expected no single field for a two-field schema")
	}
}

func TestCheckType(t *testing.T) {
	cases := []struct {
		ft      schema.FieldType
		val     any
		wantErr bool
	}{
		{schema.TypeString, "x", false},
		{schema.TypeString, 5, true},
		{schema.TypeNumber, 5, false},
		{schema.TypeNumber, 5.5, false},
		{schema.TypeNumber, "x", true},
		{schema.TypeBoolean, true, false},
		{schema.TypeBoolean, "x", true},
		{schema.TypeArray, []any{1, 2}, false},
		{schema.TypeArray, "x", true},
		{schema.TypeObject, map[string]any{"a": 1}, false},
		{schema.TypeObject, "x", true},
		{schema.TypeAny, 12345, false},
		{"", "anything", false},
		{schema.TypeString, nil, false},
	}
	for _, c := range cases {
		err := schema.CheckType(c.ft, c.val)
		if (err != nil) != c.wantErr {
			t.Errorf("CheckType(%v, %v) error=%v, wantErr=%v", c.ft, c.val, err, c.wantErr)
		}
	}
}

func TestValidationErrors(t *testing.T) {
	var errs schema.ValidationErrors
	if errs.HasErrors() {
		t.Fatal("expected no errors initially")
	}
	errs.Add("url", "required")
	errs.Add("timeout", "must be a number")
	if !errs.HasErrors() {
		t.Fatal("expected errors after Add")
	}
	msg := errs.Error()
	if msg == "" {
		t.Fatal("expected non-empty error message")
	}
}

func TestAsFloat64(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{5, 5, true},
		{int32(5), 5, true},
		{int64(5), 5, true},
		{float32(5.5), 5.5, true},
		{5.5, 5.5, true},
		{"5", 0, false},
		{nil, 0, false},
	}
	for _, c := range cases {
		got, ok := schema.AsFloat64(c.in)
		if ok != c.ok {
			t.Errorf("AsFloat64(%v) ok=%v, want %v", c.in, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("AsFloat64(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
