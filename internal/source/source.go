// Package source defines the listing source adapters the comparison engine
// fetches candidates from, and the registry of configured adapters.
package source

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/listing-recon/internal/fieldmap"
	"github.com/sells-group/listing-recon/internal/model"
)

// Adapter searches one secondary listing source.
type Adapter interface {
	// Name returns the source name (matches the mapping table).
	Name() string
	// SearchByAddress returns candidates in the source's native shape.
	// No results is an empty slice, not an error.
	SearchByAddress(ctx context.Context, address string) ([]model.Candidate, error)
}

// IDLookup is implemented by adapters that can fetch a listing directly by
// its source id. A missing listing returns (nil, nil).
type IDLookup interface {
	GetByID(ctx context.Context, id string) (*model.Candidate, error)
}

// BreakerStater is implemented by adapters guarded by a circuit breaker.
type BreakerStater interface {
	BreakerState() string
}

// Registry manages the configured source adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns the adapter for name, or nil when the source is not configured.
func (r *Registry) Get(name string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[name]
}

// List returns the registered source names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// toCandidate wraps a native record as a Candidate, reading the id and
// display address through the source's declared field names.
func toCandidate(src *fieldmap.Source, rec map[string]any) model.Candidate {
	c := model.Candidate{Fields: rec}
	if src == nil {
		return c
	}
	c.Source = src.Name
	if v, ok := fieldmap.String(fieldmap.Native(&c, src.IDField)); ok {
		c.ID = v
	}
	if v, ok := fieldmap.String(fieldmap.Native(&c, src.AddressField)); ok {
		c.DisplayAddress = v
	}
	return c
}
