package state

import "fmt"

// Registry is the ordered, fixed sequence of components participating in
// checkpointing. Order determines archive entry iteration only; components
// carry no correctness dependency on each other.
type Registry struct {
	components []Component
	byName     map[string]int
}

// NewRegistry builds a registry from the given components. Component
// filenames must be unique; the registry is immutable once built.
func NewRegistry(components ...Component) (*Registry, error) {
	byName := make(map[string]int, len(components))
	for i, c := range components {
		name := c.Filename()
		if name == "" {
			return nil, fmt.Errorf("component at index %d has an empty filename", i)
		}
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("duplicate component filename %q", name)
		}
		byName[name] = i
	}
	return &Registry{
		components: append([]Component(nil), components...),
		byName:     byName,
	}, nil
}

// Components returns the registered components in registration order.
func (r *Registry) Components() []Component {
	return r.components
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	return len(r.components)
}

// Lookup returns the component registered under name, or false when the
// name is unknown.
func (r *Registry) Lookup(name string) (Component, bool) {
	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.components[i], true
}
