// Package builder turns a parsed config.Document into a runnable
// chain of element.Element instances, by looking each stage's element
// ID up in the registry and invoking its constructor with the stage's
// declarative arguments: walk the stage list, resolve each by name
// against the registry, build it, chain outputs to inputs, recursing
// into conduit.Fork's per-path sub-pipelines.
package builder

import (
	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/config"
	"github.com/conduit-run/conduit/pkg/element"
	"github.com/conduit-run/conduit/pkg/log"
	"github.com/conduit-run/conduit/pkg/registry"
	"github.com/conduit-run/conduit/pkg/schema"
)

// Built is the result of building one stage: the live element, the
// declared input schema and captured per-item defaults the executor's
// defaults-merger runs before the element ever sees an item, plus the
// stage's parsed stop_on_error value (nil when absent). pkg/executor
// does not read StopOnError: one pipeline-wide policy applies to every
// stage.
type Built struct {
	Stage       *config.Stage
	Element     element.Element
	InputSchema *schema.Input
	Defaults    map[string]any
	StopOnError *bool
}

// PathBuilt is one named Fork path, already built, in the order
// declared by the stage's `paths` mapping.
type PathBuilt struct {
	Name   string
	Stages []Built
}

// ForkConstructor is implemented by the conduit.Fork element so the
// builder can hand it pre-built sub-pipelines rather than raw stage
// lists — conduit.Fork's only declared Args entry is the optional
// `parallel` flag; the rest of its shape is the Paths list.
type ForkConstructor interface {
	element.Element
	SetPaths(paths []PathBuilt)
}

// Build constructs every stage in doc in order, wiring conduit.Fork
// stages recursively. It does not call Open on any element; that
// happens in pkg/executor when the run actually starts, keeping
// build (can this pipeline be constructed at all) separate from run
// (pull items through it).
func Build(doc *config.Document) ([]Built, error) {
	return buildStages(doc.Stages)
}

func buildStages(stages []*config.Stage) ([]Built, error) {
	out := make([]Built, 0, len(stages))
	for i, s := range stages {
		b, err := buildStage(i, s)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func buildStage(index int, s *config.Stage) (Built, error) {
	desc, err := registry.Lookup(s.ID)
	if err != nil {
		return Built{}, err
	}

	ctorArgs, itemDefaults := classify(desc, s.Params, index)

	if err := validateArgs(desc.Params, ctorArgs); err != nil {
		return Built{}, conduiterr.Wrap(conduiterr.KindSchemaMismatch, err, "stage %d (%s)", index, s.ID).WithStage(index, s.ID)
	}

	el, err := desc.New(element.BuildContext{
		StageIndex: index,
		StageID:    s.ID,
		Args:       ctorArgs,
		Defaults:   itemDefaults,
	})
	if err != nil {
		return Built{}, conduiterr.Wrap(conduiterr.KindElementInit, err, "build stage %d (%s)", index, s.ID).WithStage(index, s.ID)
	}

	if fc, ok := el.(ForkConstructor); ok {
		paths := make([]PathBuilt, 0, len(s.Paths))
		for _, p := range s.Paths {
			built, err := buildStages(p.Stages)
			if err != nil {
				return Built{}, conduiterr.Wrap(conduiterr.KindElementInit, err, "fork path %q in stage %q", p.Name, s.ID)
			}
			paths = append(paths, PathBuilt{Name: p.Name, Stages: built})
		}
		fc.SetPaths(paths)
	}

	return Built{Stage: s, Element: el, InputSchema: desc.Input, Defaults: itemDefaults, StopOnError: s.StopOnError}, nil
}

// classify separates a stage's flat parameter mapping into constructor
// args and per-item defaults: a key matching a declared ctor-param
// name becomes a ctor arg, a key matching a
// declared input-schema field name becomes a per-item default, a key
// may be both, and a key matching neither is logged as a build-time
// warning rather than rejected outright.
func classify(desc element.Descriptor, params map[string]any, stageIndex int) (ctorArgs, itemDefaults map[string]any) {
	ctorArgs = make(map[string]any, len(params))
	itemDefaults = make(map[string]any, len(params))
	for k, v := range params {
		matched := false
		if desc.Params.Has(k) {
			ctorArgs[k] = v
			matched = true
		}
		if desc.Input.Has(k) {
			itemDefaults[k] = v
			matched = true
		}
		if !matched {
			log.Default().Warn("stage parameter matches neither constructor args nor input schema",
				"stage", stageIndex, "element", desc.ID, "param", k)
		}
	}
	return ctorArgs, itemDefaults
}

// validateArgs checks declared, required constructor parameters are
// present and type-correct. Unstructured (nil) schemas accept
// anything.
func validateArgs(params *schema.Input, args map[string]any) error {
	if params == nil {
		return nil
	}
	var errs schema.ValidationErrors
	for _, f := range params.Fields {
		v, present := args[f.Name]
		if !present {
			if !f.Optional {
				errs.Add(f.Name, "required argument missing")
			}
			continue
		}
		if err := schema.CheckType(f.Type, v); err != nil {
			errs.Add(f.Name, err.Error())
		}
	}
	if errs.HasErrors() {
		return &errs
	}
	return nil
}
