// Package schema declares the typed shapes the element registry
// attaches to every element: constructor parameters and the
// InputRecord fields an element's process body consumes. A Field
// carries enough (name, type, required flag, default) to both split
// a descriptor's keys into constructor args vs. per-item defaults at
// build time, and to coerce/validate a record against the declared
// shape at run time.
package schema

import (
	"fmt"
	"strings"
)

// FieldType is the declared type of a constructor parameter or an
// InputRecord field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
	TypeAny     FieldType = "any"
)

// Field describes one member of an input schema or constructor
// parameter list: its name, declared type, and whether it is required.
type Field struct {
	Name     string
	Type     FieldType
	Optional bool
	Default  any
}

// Input is the declared shape an element's InputRecord is coerced
// into. A nil Input means the element accepts raw items verbatim
// ("unstructured" — declared by omitting a schema).
type Input struct {
	Fields []Field
}

// Unstructured is the zero value representing "no declared schema".
var Unstructured *Input

// FieldNames returns the declared field names in declaration order.
func (s *Input) FieldNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Has reports whether name is a declared field.
func (s *Input) Has(name string) bool {
	if s == nil {
		return false
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// SingleField returns the lone field of a single-field schema: when a
// schema declares exactly one field, a scalar upstream item is bound
// to that field rather than rejected for not being a map.
func (s *Input) SingleField() (Field, bool) {
	if s == nil || len(s.Fields) != 1 {
		return Field{}, false
	}
	return s.Fields[0], true
}

// ValidationErrors aggregates per-field validation failures.
type ValidationErrors struct {
	Errors []FieldError
}

type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

func (e *ValidationErrors) HasErrors() bool { return len(e.Errors) > 0 }

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// CheckType reports whether value satisfies ft, treating any of Go's
// numeric types as satisfying TypeNumber/TypeInteger since YAML/JSON
// decode to different concrete numeric types depending on source.
func CheckType(ft FieldType, value any) error {
	if ft == "" || ft == TypeAny || value == nil {
		return nil
	}
	switch ft {
	case TypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("must be a string")
		}
	case TypeNumber, TypeInteger:
		if !isNumeric(value) {
			return fmt.Errorf("must be a number")
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("must be a boolean")
		}
	case TypeArray:
		switch value.(type) {
		case []any:
		default:
			return fmt.Errorf("must be an array")
		}
	case TypeObject:
		switch value.(type) {
		case map[string]any:
		default:
			return fmt.Errorf("must be an object")
		}
	}
	return nil
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// AsFloat64 converts a numeric value decoded from YAML/JSON into a
// float64, accepting any of Go's concrete numeric types.
func AsFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
