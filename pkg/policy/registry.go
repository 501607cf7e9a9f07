package policy

import "fmt"

// Factory constructs a fresh, unparsed Policy instance.
type Factory func() Policy

// Registry resolves a policy name to a constructor and tracks the
// currently active instances, backing plugin.load/plugin.unload
// events. "path" in plugin.load(path, args) names a registered policy here
// rather than a dynamically loaded shared object — Go has no portable
// equivalent of dlopen for this.
type Registry struct {
	factories map[string]Factory
	active    map[string]Policy
}

// NewRegistry returns a Registry pre-populated with the built-in policies.
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}, active: map[string]Policy{}}
	r.Register("fcfs", func() Policy { return NewFCFS() })
	r.Register("backfill", func() Policy { return NewBackfill(0) })
	r.Register("topo", func() Policy { return NewTopology(0) })
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Load constructs name, parses args into it, and records it as active.
func (r *Registry) Load(name, args string) (Policy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("policy.Registry: unknown policy %q", name)
	}
	pol := f()
	if err := pol.Parse(args); err != nil {
		return nil, fmt.Errorf("policy.Registry: parse %q: %w", name, err)
	}
	r.active[name] = pol
	return pol, nil
}

// Unload removes name from the active set.
func (r *Registry) Unload(name string) {
	delete(r.active, name)
}

// Active returns the currently active policy instances by name.
func (r *Registry) Active() map[string]Policy {
	out := make(map[string]Policy, len(r.active))
	for k, v := range r.active {
		out[k] = v
	}
	return out
}
