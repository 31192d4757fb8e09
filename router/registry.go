package router

import (
	"sort"
	"sync"
)

// Registry maps model identifiers to the backend that owns them.
//
// Each id has at most one owner. Registering an id that another backend
// already owns moves it to the new backend.
type Registry struct {
	mu     sync.RWMutex
	owners map[string]Backend
	models map[Backend][]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		owners: make(map[string]Backend),
		models: make(map[Backend][]string),
	}
}

// NewDefaultRegistry returns a registry populated from every backend's
// built-in catalog.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, backend := range Backends {
		entries := Catalogs[backend]
		ids := make([]string, len(entries))
		for i, m := range entries {
			ids[i] = m.ID
		}
		r.RegisterCatalog(backend, ids...)
	}
	return r
}

// RegisterCatalog records backend as the owner of every id in modelIDs.
func (r *Registry) RegisterCatalog(backend Backend, modelIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range modelIDs {
		prev, owned := r.owners[id]
		if owned && prev == backend {
			continue
		}
		if owned {
			r.models[prev] = remove(r.models[prev], id)
			if len(r.models[prev]) == 0 {
				delete(r.models, prev)
			}
		}
		r.owners[id] = backend
		r.models[backend] = append(r.models[backend], id)
	}
}

// ServiceForModel returns the backend owning modelID.
func (r *Registry) ServiceForModel(modelID string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.owners[modelID]
	return b, ok
}

// IsValidModel reports whether any backend owns modelID.
func (r *Registry) IsValidModel(modelID string) bool {
	_, ok := r.ServiceForModel(modelID)
	return ok
}

// ModelsForService returns the ids owned by backend in registration order.
// The result is empty for an unknown backend.
func (r *Registry) ModelsForService(backend Backend) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.models[backend]))
	copy(out, r.models[backend])
	return out
}

// Services returns every backend owning at least one model, sorted.
func (r *Registry) Services() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Backend, 0, len(r.models))
	for b := range r.models {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Models returns every registered id, sorted.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.owners))
	for id := range r.owners {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func remove(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
