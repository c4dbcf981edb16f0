package bundle

import (
	"sort"
	"sync"
)

// Registry is a thread-safe set of loaded sites keyed by ID.
type Registry struct {
	mu    sync.RWMutex
	sites map[string]*Site
}

func NewRegistry() *Registry {
	return &Registry{sites: make(map[string]*Site)}
}

// Put adds or replaces a site.
func (r *Registry) Put(site *Site) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sites[site.ID] = site
}

func (r *Registry) Get(id string) *Site {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sites[id]
}

// Delete removes a site and reports whether it was present.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sites[id]
	delete(r.sites, id)
	return ok
}

// FindByHash returns a loaded site with the given content hash.
func (r *Registry) FindByHash(hash string) *Site {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sites {
		if s.ContentHash == hash {
			return s
		}
	}
	return nil
}

// List returns all sites ordered by ID.
func (r *Registry) List() []*Site {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Site, 0, len(r.sites))
	for _, s := range r.sites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
