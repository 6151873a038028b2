package tool

import "sync"

// Registry exposes tool lookup for the responder loop.
type Registry interface {
	Get(name string) (Tool, bool)
	All() []Tool
	Excluding(names ...string) Registry
}

// MapRegistry implements Registry with a mutex-guarded map.
type MapRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewMapRegistry returns an empty registry.
func NewMapRegistry() *MapRegistry {
	return &MapRegistry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool by name.
func (r *MapRegistry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get looks up a tool by name.
func (r *MapRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// All returns every registered tool.
func (r *MapRegistry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Excluding returns a view of the registry without the named tools.
func (r *MapRegistry) Excluding(names ...string) Registry {
	excluded := make(map[string]bool, len(names))
	for _, n := range names {
		excluded[n] = true
	}
	return &filteredRegistry{base: r, excluded: excluded}
}

type filteredRegistry struct {
	base     *MapRegistry
	excluded map[string]bool
}

func (f *filteredRegistry) Get(name string) (Tool, bool) {
	if f.excluded[name] {
		return nil, false
	}
	return f.base.Get(name)
}

func (f *filteredRegistry) All() []Tool {
	all := f.base.All()
	out := make([]Tool, 0, len(all))
	for _, t := range all {
		if !f.excluded[t.Name()] {
			out = append(out, t)
		}
	}
	return out
}

func (f *filteredRegistry) Excluding(names ...string) Registry {
	merged := make(map[string]bool, len(f.excluded)+len(names))
	for n := range f.excluded {
		merged[n] = true
	}
	for _, n := range names {
		merged[n] = true
	}
	return &filteredRegistry{base: f.base, excluded: merged}
}
