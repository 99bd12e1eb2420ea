package endpoint

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds an endpoint from loose configuration.
type Factory func(config map[string]any) (Endpoint, error)

type template struct {
	factory Factory
	actions []*ActionDescriptor
}

// Registry maps template IDs (e.g. "http.salesforce") to factories and
// the actions they expose. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*template
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: map[string]*template{}}
}

func (r *Registry) entry(templateID string) *template {
	t, ok := r.templates[templateID]
	if !ok {
		t = &template{}
		r.templates[templateID] = t
	}
	return t
}

// Register adds the factory of templateID. It panics on a second factory
// for the same ID.
func (r *Registry) Register(templateID string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.entry(templateID)
	if t.factory != nil {
		panic(fmt.Sprintf("endpoint factory already registered: %s", templateID))
	}
	t.factory = factory
}

// RegisterActions sets the actions of templateID. It may run before or
// after Register.
func (r *Registry) RegisterActions(templateID string, actions []*ActionDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(templateID).actions = actions
}

// Get returns the factory of templateID.
func (r *Registry) Get(templateID string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.templates[templateID]; ok && t.factory != nil {
		return t.factory, true
	}
	return nil, false
}

// Actions returns the actions of templateID, nil when none were
// registered.
func (r *Registry) Actions(templateID string) []*ActionDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.templates[templateID]; ok {
		return t.actions
	}
	return nil
}

// List returns the IDs of templates with a factory, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.templates))
	for id, t := range r.templates {
		if t.factory != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Create builds an endpoint of templateID.
func (r *Registry) Create(templateID string, config map[string]any) (Endpoint, error) {
	factory, ok := r.Get(templateID)
	if !ok {
		return nil, fmt.Errorf("unknown endpoint template: %s", templateID)
	}
	return factory(config)
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry connectors add
// themselves to from init.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a factory to the default registry.
func Register(templateID string, factory Factory) {
	defaultRegistry.Register(templateID, factory)
}

// RegisterActions adds actions to the default registry.
func RegisterActions(templateID string, actions []*ActionDescriptor) {
	defaultRegistry.RegisterActions(templateID, actions)
}
