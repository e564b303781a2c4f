// Package element defines the runtime contract every built-in and
// third-party element satisfies: a stream-of-T to stream-of-U stage,
// constructed once from declarative arguments and then pulled one
// item at a time through an Open/Next/Close lifecycle.
package element

import (
	"context"

	"github.com/conduit-run/conduit/pkg/iter"
	"github.com/conduit-run/conduit/pkg/metrics"
	"github.com/conduit-run/conduit/pkg/schema"
)

// Element is one node of a pipeline: it consumes an upstream Iterator
// (nil for a source element with no upstream) and produces a downstream
// Iterator of its own, pulled lazily one item at a time.
type Element interface {
	// ID is the element's dotted registry name, e.g. "conduit.Filter".
	ID() string

	// Open binds the element to its upstream and returns the element's
	// own output iterator. Called when the run starts, before any item
	// flows; an element inside a conduit.Fork path is opened again for
	// every forked item.
	Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error)

	// Close releases any resources opened by Open or by items pulled
	// through it (file handles, SFTP sessions). Safe to call more than
	// once.
	Close() error

	// Metrics returns the counters for this element instance.
	Metrics() *metrics.Element
}

// Base provides the bookkeeping every element embeds: its registry ID,
// stage index/position, and metrics counters, so built-ins only need
// to implement Open/Close.
type Base struct {
	id      string
	metrics *metrics.Element
}

func NewBase(id string, stageIndex int) Base {
	return Base{id: id, metrics: metrics.NewElement(stageIndex, id)}
}

func (b *Base) ID() string                   { return b.id }
func (b *Base) Metrics() *metrics.Element     { return b.metrics }

// Descriptor is what the registry stores per element type: its ID,
// the constructor it builds from declarative YAML args, the declared
// constructor-parameter schema, the declared InputRecord schema, and a
// human-readable output shape annotation used by schema emission.
type Descriptor struct {
	ID          string
	Summary     string
	Params      *schema.Input
	Input       *schema.Input
	OutputShape string
	New         Constructor
}

// Constructor builds one element instance from its already-merged,
// already-template/expr-compiled constructor arguments. The
// construction-time split between ctor args and per-item defaults
// happens in pkg/builder, upstream of this call.
type Constructor func(ctx BuildContext) (Element, error)

// BuildContext carries everything a constructor needs: its own
// declarative args, a stage index for metrics/errors, and the declared
// per-item defaults record to merge at process time.
type BuildContext struct {
	StageIndex int
	StageID    string
	Args       map[string]any
	Defaults   map[string]any
}
