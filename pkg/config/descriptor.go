// Package config parses a Conduit pipeline document into the
// structured descriptor the builder consumes, using gopkg.in/yaml.v3
// for node-based decoding. A stage descriptor is flat: a mandatory
// `id` plus string-keyed parameters as direct siblings of `id`, not
// nested under a wrapper key. At the top level, a document is either a
// bare non-empty list of stage descriptors or an object wrapping one
// with a run name and declared args.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/conduit-run/conduit/pkg/conduiterr"
)

// Document is the top-level pipeline descriptor. Its canonical wire
// shape is a bare YAML/JSON array of StageDescriptors; the mapping
// form below additionally carries a run `name` and declared `args`;
// `--arg` flags are not checked against the declared args. The HTTP driver's POST /run body supplies
// `pipeline` as a JSON array of StageDescriptors directly, wrapped
// into a Document by pkg/httpapi before reaching the same
// config.Parse/builder.Build path.
type Document struct {
	Name   string
	Stages []*Stage
	Args   []ArgSpec
}

// documentBody is the mapping-form decode target; kept separate from
// Document so Document.UnmarshalYAML can branch on the node kind
// without recursing into itself.
type documentBody struct {
	Name   string    `yaml:"name"`
	Stages []*Stage  `yaml:"stages"`
	Args   []ArgSpec `yaml:"args,omitempty"`
}

func (d *Document) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var stages []*Stage
		if err := value.Decode(&stages); err != nil {
			return err
		}
		d.Stages = stages
		return nil
	}
	var body documentBody
	if err := value.Decode(&body); err != nil {
		return err
	}
	d.Name, d.Stages, d.Args = body.Name, body.Stages, body.Args
	return nil
}

// ArgSpec declares a run-arg the document accepts. It is parsed into
// Document.Args only: `--arg` flags passed to `conduit run` are not
// validated against it, and its Default is not applied.
type ArgSpec struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Default     string `yaml:"default,omitempty" json:"default,omitempty"`
}

// Stage is one element invocation in the pipeline: a mandatory `id`
// (the dotted registry name itself — there is no separate instance
// label distinct from the type) plus every other mapping key as a
// declarative parameter, classified at build time into constructor
// args and per-item defaults. `paths` and `stop_on_error` are pulled
// out structurally since they aren't element parameters.
type Stage struct {
	ID          string
	Params      map[string]any
	Paths       []PathEntry
	StopOnError *bool
}

// PathEntry is one named sub-pipeline under a Fork stage's `paths`.
// Kept as an ordered slice rather than a map so the declared mapping
// order survives parsing — Fork's joined output field order follows
// this order.
type PathEntry struct {
	Name   string
	Stages []*Stage
}

func (s *Stage) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("stage must be a mapping, got %v", value.Kind)
	}
	s.Params = map[string]any{}
	for i := 0; i < len(value.Content); i += 2 {
		key, valNode := value.Content[i].Value, value.Content[i+1]
		switch key {
		case "id":
			if err := valNode.Decode(&s.ID); err != nil {
				return err
			}
		case "paths":
			paths, err := decodePathsNode(valNode)
			if err != nil {
				return err
			}
			s.Paths = paths
		case "stop_on_error":
			var b bool
			if err := valNode.Decode(&b); err != nil {
				return err
			}
			s.StopOnError = &b
		default:
			var v any
			if err := valNode.Decode(&v); err != nil {
				return err
			}
			s.Params[key] = v
		}
	}
	if s.ID == "" {
		return fmt.Errorf("stage missing required `id`")
	}
	return nil
}

// decodePathsNode decodes a `paths` mapping node into ordered entries,
// walking value.Content directly instead of decoding into a Go map so
// the declared key order survives — a MappingNode's Content alternates
// key/value pairs in source order.
func decodePathsNode(value *yaml.Node) ([]PathEntry, error) {
	if value.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("paths must be a mapping, got %v", value.Kind)
	}
	entries := make([]PathEntry, 0, len(value.Content)/2)
	for i := 0; i < len(value.Content); i += 2 {
		name := value.Content[i].Value
		var stages []*Stage
		if err := value.Content[i+1].Decode(&stages); err != nil {
			return nil, err
		}
		entries = append(entries, PathEntry{Name: name, Stages: stages})
	}
	return entries, nil
}

// MarshalYAML re-flattens a Stage back into a single mapping, the
// inverse of UnmarshalYAML — used by pkg/httpapi to round-trip a
// JSON-decoded stage list back into the YAML runner.Run expects.
// `paths` is re-encoded as an explicit ordered mapping node rather
// than handed to yaml.v3 as a Go map, so the declared path order
// carried through UnmarshalJSON survives the round-trip.
func (s *Stage) MarshalYAML() (any, error) {
	m := make(map[string]any, len(s.Params)+3)
	for k, v := range s.Params {
		m[k] = v
	}
	m["id"] = s.ID
	if s.StopOnError != nil {
		m["stop_on_error"] = *s.StopOnError
	}
	if len(s.Paths) == 0 {
		return m, nil
	}

	pathsNode := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range s.Paths {
		keyNode := &yaml.Node{}
		if err := keyNode.Encode(p.Name); err != nil {
			return nil, err
		}
		valNode := &yaml.Node{}
		if err := valNode.Encode(p.Stages); err != nil {
			return nil, err
		}
		pathsNode.Content = append(pathsNode.Content, keyNode, valNode)
	}
	m["paths"] = pathsNode
	return m, nil
}

// UnmarshalJSON mirrors UnmarshalYAML for the HTTP driver's `pipeline`
// array, which carries StageDescriptors as plain JSON objects with the
// same flat id-plus-parameters shape.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Params = map[string]any{}
	for key, val := range raw {
		switch key {
		case "id":
			if err := json.Unmarshal(val, &s.ID); err != nil {
				return err
			}
		case "paths":
			paths, err := decodePathsJSON(val)
			if err != nil {
				return err
			}
			s.Paths = paths
		case "stop_on_error":
			var b bool
			if err := json.Unmarshal(val, &b); err != nil {
				return err
			}
			s.StopOnError = &b
		default:
			var v any
			if err := json.Unmarshal(val, &v); err != nil {
				return err
			}
			s.Params[key] = v
		}
	}
	if s.ID == "" {
		return fmt.Errorf("stage missing required \"id\"")
	}
	return nil
}

// decodePathsJSON decodes a `paths` object into ordered entries. A
// plain `map[string][]*Stage` unmarshal would lose the declared key
// order, so this reads the object's tokens directly off a
// json.Decoder, which reports object keys in their source order.
func decodePathsJSON(data json.RawMessage) ([]PathEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("paths must be an object")
	}
	var entries []PathEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("paths key must be a string")
		}
		var stages []*Stage
		if err := dec.Decode(&stages); err != nil {
			return nil, err
		}
		entries = append(entries, PathEntry{Name: name, Stages: stages})
	}
	return entries, nil
}

// Parse decodes a pipeline document, already variable-substituted by
// pkg/resolve, into a Document tree. Malformed YAML is a KindParse
// error (exit code 1).
func Parse(raw []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, conduiterr.Wrap(conduiterr.KindParse, err, "parse pipeline document")
	}
	if len(doc.Stages) == 0 {
		return nil, conduiterr.New(conduiterr.KindParse, "pipeline declares no stages")
	}
	for i, s := range doc.Stages {
		if s.ID == "" {
			return nil, conduiterr.New(conduiterr.KindParse, "stage %d missing required `id`", i)
		}
	}
	return &doc, nil
}
