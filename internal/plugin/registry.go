package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Factory builds a configured plugin.
type Factory func(ctx context.Context, params Params, opts ...Option) (Plugin, error)

// Descriptor documents a plugin for the host.
type Descriptor struct {
	ID            string                `json:"id"`
	Label         string                `json:"label"`
	Description   string                `json:"description"`
	Documentation string                `json:"documentation"`
	Parameters    []ParameterDescriptor `json:"parameters"`
}

type registration struct {
	descriptor Descriptor
	factory    Factory
}

var (
	registryMu sync.RWMutex
	registry   = map[string]registration{}
)

// Register makes a plugin available by ID. Panics on duplicates.
func Register(d Descriptor, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[d.ID]; exists {
		panic(fmt.Sprintf("plugin already registered: %s", d.ID))
	}
	registry[d.ID] = registration{descriptor: d, factory: f}
}

// Lookup returns the descriptor of a registered plugin.
func Lookup(id string) (Descriptor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[id]
	return r.descriptor, ok
}

// Descriptors returns every registered plugin, sorted by ID.
func Descriptors() []Descriptor {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Descriptor, 0, len(registry))
	for _, r := range registry {
		out = append(out, r.descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Create builds the plugin registered under id.
func Create(ctx context.Context, id string, params Params, opts ...Option) (Plugin, error) {
	registryMu.RLock()
	r, ok := registry[id]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown plugin: %s", id)
	}
	return r.factory(ctx, params, opts...)
}
