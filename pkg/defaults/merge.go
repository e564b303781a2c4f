// Package defaults implements the per-item defaults-merge discipline:
// a declared `defaults` record, captured once at construction time,
// is combined field-by-field with each upstream item before an
// element's process body ever sees it. The merge is shallow and
// per-field — never a deep/recursive merge of nested objects — so an
// element's InputRecord semantics stay predictable. It runs once per
// upstream item rather than once at construction time, since the
// upstream value is only known per item.
package defaults

import "github.com/conduit-run/conduit/pkg/schema"

// Merge combines defaults (captured at construction time) with item
// (the current upstream value) according to these coercion rules:
//
//   - If item is nil, the result is defaults alone.
//   - If item is a map[string]any, each key present in item overrides
//     the same key in defaults; keys only in defaults pass through
//     unchanged. No recursion into nested maps.
//   - If schema declares exactly one field and item is a scalar (not a
//     map), item is bound to that single field, then merged as above.
//   - Otherwise (no single-field schema, non-map item) item itself is
//     returned — defaults do not apply to schemaless scalar streams.
func Merge(schemaIn *schema.Input, defaultsRecord map[string]any, item any) any {
	if item == nil {
		return cloneMap(defaultsRecord)
	}

	if m, ok := item.(map[string]any); ok {
		return mergeMaps(defaultsRecord, m)
	}

	if f, ok := schemaIn.SingleField(); ok {
		bound := map[string]any{f.Name: item}
		return mergeMaps(defaultsRecord, bound)
	}

	return item
}

func mergeMaps(defaultsRecord, item map[string]any) map[string]any {
	out := make(map[string]any, len(defaultsRecord)+len(item))
	for k, v := range defaultsRecord {
		out[k] = v
	}
	for k, v := range item {
		out[k] = v
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
