// Package collection implements the per-user, per-modality partition that
// backs the content store: a vector index combined with a document and
// metadata store, optionally persisted to SQLite.
package collection

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// ErrNotFound is returned when an entry id does not exist in a collection.
var ErrNotFound = errors.New("collection: entry not found")

// ErrDimMismatch is returned when a query vector's dimensionality differs
// from a stored embedding's. This happens when the configured embedding
// dims change while old vectors are still persisted; the partition must be
// re-ingested before it can be searched again.
var ErrDimMismatch = errors.New("collection: embedding dimension mismatch")

// Entry is one indexed item: its content-addressed id, the document text
// (literal content for text items, a file URI for binary items), the
// embedding vector, and the sanitized metadata.
type Entry struct {
	ID        string
	Document  string
	Embedding []float32
	Metadata  map[string]any
}

// Result is an entry returned from a similarity query, with its cosine
// distance to the query vector. Lower distance means more similar.
type Result struct {
	Entry
	Distance float32
}

// Collection holds the entries of one (user, modality) partition. Writes
// are serialized by a single mutex so that concurrent ingestion of the same
// content id cannot interleave partial updates. Queries run an exact scan
// over the partition, which stays small enough per user that approximate
// indexing is not worth its delete-consistency cost.
type Collection struct {
	name  string
	store *Store // nil for in-memory collections

	mu      sync.RWMutex
	entries map[string]Entry
}

func newCollection(name string, store *Store) *Collection {
	return &Collection{
		name:    name,
		store:   store,
		entries: make(map[string]Entry),
	}
}

// Name returns the deterministic collection name.
func (c *Collection) Name() string { return c.name }

// Len returns the number of entries.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Has reports whether id exists in the collection.
func (c *Collection) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[id]
	return ok
}

// Upsert inserts or replaces the entry with e.ID. Re-adding an existing id
// replaces its document, embedding, and metadata; it never duplicates the
// entry. Persistence is write-through: the durable store is updated before
// the in-memory state so a failure leaves the previous state intact.
func (c *Collection) Upsert(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("collection %s: upsert with empty id", c.name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		if err := c.store.upsert(ctx, c.name, e); err != nil {
			return fmt.Errorf("collection %s: persist entry: %w", c.name, err)
		}
	}
	c.entries[e.ID] = e
	return nil
}

// Get returns the entry with the given id.
func (c *Collection) Get(id string) (Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

// Delete removes the entry with the given id. Returns ErrNotFound when the
// id is absent; the durable store is still asked to delete so a previous
// partial failure cannot strand a row.
func (c *Collection) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		if err := c.store.delete(ctx, c.name, id); err != nil {
			return fmt.Errorf("collection %s: delete entry: %w", c.name, err)
		}
	}

	if _, ok := c.entries[id]; !ok {
		return ErrNotFound
	}
	delete(c.entries, id)
	return nil
}

// List returns all entries ordered by id.
func (c *Collection) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Query returns the k entries nearest to the query embedding, ordered by
// ascending cosine distance. An empty collection yields an empty result,
// not an error; an entry whose stored embedding has a different
// dimensionality yields ErrDimMismatch.
func (c *Collection) Query(embedding []float32, k int) ([]Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if k <= 0 || len(c.entries) == 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(c.entries))
	for _, e := range c.entries {
		if len(e.Embedding) != len(embedding) {
			return nil, fmt.Errorf("%w: query has %d dims, entry %s has %d",
				ErrDimMismatch, len(embedding), e.ID, len(e.Embedding))
		}
		results = append(results, Result{
			Entry:    e,
			Distance: cosineDistance(embedding, e.Embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// cosineDistance is 1 minus the cosine of the angle between a and b,
// computed in one pass. 0 means identical direction, 2 opposite; a zero
// vector is maximally distant from everything.
func cosineDistance(a, b []float32) float32 {
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/float32(math.Sqrt(float64(na))*math.Sqrt(float64(nb)))
}
