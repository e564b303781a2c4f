// Emit implements JSON Schema generation over every registered
// element, used by `conduit schema` and the HTTP driver's GET /schema
// route. Built by hand with encoding/json rather than a JSON Schema
// library: there is no validate-an-instance operation here to justify
// pulling one in just to emit a oneOf list.
package schema

import "encoding/json"

// ElementDescriptor is the subset of element.Descriptor the emitter
// needs; declared locally to avoid schema depending on the element
// package (element already depends on schema for Field/Input).
type ElementDescriptor struct {
	ID          string
	Summary     string
	Params      *Input
	OutputShape string
}

// Document is the emitted top-level JSON Schema: a `oneOf` listing
// every registered element's constructor shape.
type Document struct {
	Schema string        `json:"$schema"`
	Title  string        `json:"title"`
	OneOf  []ElementNode `json:"oneOf"`
}

// ElementNode describes one element's constructor shape.
type ElementNode struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Type        string            `json:"type"`
	Properties  map[string]Node   `json:"properties"`
	Required    []string          `json:"required,omitempty"`
	OutputShape string            `json:"x-output-shape,omitempty"`
}

// Node is one property's JSON Schema fragment.
type Node struct {
	Type    string `json:"type"`
	Default any    `json:"default,omitempty"`
}

func jsonType(ft FieldType) string {
	switch ft {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeInteger:
		return "integer"
	case TypeBoolean:
		return "boolean"
	case TypeObject:
		return "object"
	case TypeArray:
		return "array"
	default:
		return "object"
	}
}

// Emit builds the full Document for a set of descriptors, sorted by
// the caller (pkg/registry.All already returns them in ID order).
func Emit(descs []ElementDescriptor) *Document {
	doc := &Document{
		Schema: "http://json-schema.org/draft-07/schema#",
		Title:  "Conduit pipeline stage",
	}
	for _, d := range descs {
		doc.OneOf = append(doc.OneOf, emitOne(d))
	}
	return doc
}

// emitOne projects one element into the StageDescriptor shape
// describes: a mandatory `id` plus every constructor parameter as a
// flat sibling property, not nested under an `args`/`element` wrapper.
func emitOne(d ElementDescriptor) ElementNode {
	node := ElementNode{
		Title:       d.ID,
		Description: d.Summary,
		Type:        "object",
		Properties:  map[string]Node{"id": {Type: "string", Default: d.ID}},
		Required:    []string{"id"},
		OutputShape: d.OutputShape,
	}
	if d.Params != nil {
		for _, f := range d.Params.Fields {
			node.Properties[f.Name] = Node{Type: jsonType(f.Type), Default: f.Default}
			if !f.Optional {
				node.Required = append(node.Required, f.Name)
			}
		}
	}
	return node
}

// MarshalIndent is a small convenience wrapper so callers (CLI, HTTP
// driver) don't each re-import encoding/json just for this one call.
func MarshalIndent(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}
