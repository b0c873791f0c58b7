package loader

import (
	"fmt"
	"slices"
	"sync"
)

// Namespace is the export surface of one loaded module. The set of names is
// fixed when the module is linked; values are filled in by evaluation.
type Namespace struct {
	id     string
	format Format
	names  []string

	mu     sync.RWMutex
	values map[string]any
}

func newNamespace(id string, format Format, names []string) *Namespace {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return &Namespace{
		id:     id,
		format: format,
		names:  sorted,
		values: make(map[string]any, len(sorted)),
	}
}

// Identifier returns the canonical identifier of the module.
func (n *Namespace) Identifier() string {
	return n.id
}

// Format returns the format of the module that produced the namespace.
func (n *Namespace) Format() Format {
	return n.format
}

// Names returns the sorted export names.
func (n *Namespace) Names() []string {
	return slices.Clone(n.names)
}

// Has reports whether name is exported.
func (n *Namespace) Has(name string) bool {
	_, ok := slices.BinarySearch(n.names, name)
	return ok
}

// Get returns the current value of an export.
func (n *Namespace) Get(name string) (any, bool) {
	if !n.Has(name) {
		return nil, false
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.values[name], true
}

// Set updates the value of an export. Unknown names are rejected.
func (n *Namespace) Set(name string, value any) error {
	if !n.Has(name) {
		return fmt.Errorf("module %s does not export %q", n.id, name)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.values[name] = value
	return nil
}

// Map returns a copy of all export values.
func (n *Namespace) Map() map[string]any {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[string]any, len(n.names))
	for _, name := range n.names {
		out[name] = n.values[name]
	}
	return out
}
