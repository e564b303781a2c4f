// Package registry implements the element registry: a process-wide
// table of dotted element IDs (`conduit.*`) to constructors, populated
// by built-ins at init time via blank-import side effects
// (`func init() { Register(...) }`) and by third-party plugins
// discovered via CONDUIT_SEARCH_PATHS. This is the same registration
// idiom used across the wider Go ecosystem (database/sql drivers,
// image format decoders) for exactly this "pick an implementation by
// string name" problem, which is why it's kept rather than replaced
// with a DI container.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"sort"
	"strings"
	"sync"

	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/element"
	"github.com/conduit-run/conduit/pkg/schema"
)

var (
	mu    sync.RWMutex
	table = map[string]element.Descriptor{}
)

// Register adds a descriptor to the registry. Called from built-in
// elements' init() functions and from third-party plugins loaded by
// Discover. Registering the same ID twice is an error, reported by
// panicking at init time for built-ins (a programmer error caught
// immediately) and returned as an error from Discover for plugins (a
// deployment-time condition).
func Register(d element.Descriptor) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := table[d.ID]; exists {
		panic(fmt.Sprintf("conduit: element %q already registered", d.ID))
	}
	table[d.ID] = d
}

// registerPlugin is Register's non-panicking twin, used when loading
// third-party .so plugins where a collision is an operational error,
// not a programming mistake.
func registerPlugin(d element.Descriptor) error {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := table[d.ID]; exists {
		return conduiterr.New(conduiterr.KindElementInit, "element %q already registered", d.ID)
	}
	table[d.ID] = d
	return nil
}

// Lookup resolves an element ID to its descriptor, failing the pipeline
// build with KindUnknownElement (exit code 3) when the ID is
// not registered.
func Lookup(id string) (element.Descriptor, error) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := table[id]
	if !ok {
		return element.Descriptor{}, conduiterr.New(conduiterr.KindUnknownElement, "unknown element %q", id)
	}
	return d, nil
}

// All returns every registered descriptor sorted by ID, used by the
// schema emitter.
func All() []element.Descriptor {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]element.Descriptor, 0, len(table))
	for _, d := range table {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Schemas projects every registered descriptor into the shape
// pkg/schema.Emit consumes, decoupling the registry's richer
// element.Descriptor (which carries live constructors) from the
// serializable schema document.
func Schemas() []schema.ElementDescriptor {
	all := All()
	out := make([]schema.ElementDescriptor, len(all))
	for i, d := range all {
		out[i] = schema.ElementDescriptor{
			ID:          d.ID,
			Summary:     d.Summary,
			Params:      d.Params,
			OutputShape: d.OutputShape,
		}
	}
	return out
}

// pluginSymbol is the exported symbol every third-party element plugin
// must provide: a func returning the descriptors it contributes.
const pluginSymbol = "ConduitElements"

// Discover loads third-party element plugins from every directory
// listed in CONDUIT_SEARCH_PATHS (colon-separated), opening
// each `*.so` file with plugin.Open and registering the descriptors its
// ConduitElements() symbol returns. On platforms without plugin
// support, plugin.Open fails and Discover returns that error for the
// first `*.so` file it finds.
func Discover() error {
	raw := os.Getenv("CONDUIT_SEARCH_PATHS")
	if raw == "" {
		return nil
	}
	for _, dir := range strings.Split(raw, ":") {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(dir, "*.so"))
		if err != nil {
			return conduiterr.Wrap(conduiterr.KindElementInit, err, "scan search path %q", dir)
		}
		for _, path := range matches {
			if err := loadPlugin(path); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadPlugin(path string) error {
	p, err := plugin.Open(path)
	if err != nil {
		return conduiterr.Wrap(conduiterr.KindElementInit, err, "load plugin %q", path)
	}
	sym, err := p.Lookup(pluginSymbol)
	if err != nil {
		return conduiterr.Wrap(conduiterr.KindElementInit, err, "plugin %q missing %s symbol", path, pluginSymbol)
	}
	fn, ok := sym.(func() []element.Descriptor)
	if !ok {
		return conduiterr.New(conduiterr.KindElementInit, "plugin %q: %s has unexpected signature", path, pluginSymbol)
	}
	for _, d := range fn() {
		if err := registerPlugin(d); err != nil {
			return conduiterr.Wrap(conduiterr.KindElementInit, err, "plugin %q", path)
		}
	}
	return nil
}
