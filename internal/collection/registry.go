package collection

import (
	"context"
	"fmt"
	"sync"
)

// Name derives the deterministic collection name for a user and modality.
// Deriving the name from nothing but (user_id, modality) is what keeps one
// user's operations from ever touching another user's partition.
func Name(userID, modality string) string {
	return fmt.Sprintf("%s_collection_%s", modality, userID)
}

// Registry lazily creates and caches collection handles. GetOrCreate is the
// atomic unit: two concurrent first accesses for the same (user, modality)
// key always converge on a single collection.
type Registry struct {
	store *Store // nil for fully in-memory registries

	mu          sync.Mutex
	collections map[string]*Collection
}

// NewRegistry creates a registry backed by the given store. A nil store
// yields in-memory collections with no persistence.
func NewRegistry(store *Store) *Registry {
	return &Registry{
		store:       store,
		collections: make(map[string]*Collection),
	}
}

// GetOrCreate returns the collection for (userID, modality), creating it on
// first access and loading any persisted entries.
func (r *Registry) GetOrCreate(ctx context.Context, userID, modality string) (*Collection, error) {
	name := Name(userID, modality)

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.collections[name]; ok {
		return c, nil
	}

	c := newCollection(name, r.store)
	if r.store != nil {
		entries, err := r.store.load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("collection %s: load persisted entries: %w", name, err)
		}
		for _, e := range entries {
			c.entries[e.ID] = e
		}
	}

	r.collections[name] = c
	return c, nil
}

// Loaded returns the currently cached collection handles.
func (r *Registry) Loaded() []*Collection {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Collection, 0, len(r.collections))
	for _, c := range r.collections {
		out = append(out, c)
	}
	return out
}
