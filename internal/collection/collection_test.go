package collection

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertAndGet(t *testing.T) {
	c := newCollection("text_collection_u1", nil)
	ctx := context.Background()

	e := Entry{
		ID:        "abc",
		Document:  "hello world",
		Embedding: []float32{1, 0},
		Metadata:  map[string]any{"user_id": "u1"},
	}
	require.NoError(t, c.Upsert(ctx, e))

	got, err := c.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, e, got)
	assert.True(t, c.Has("abc"))
	assert.Equal(t, 1, c.Len())
}

func TestUpsertReplacesNotDuplicates(t *testing.T) {
	c := newCollection("text_collection_u1", nil)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, Entry{ID: "abc", Document: "v1", Embedding: []float32{1, 0}}))
	require.NoError(t, c.Upsert(ctx, Entry{ID: "abc", Document: "v2", Embedding: []float32{0, 1}}))

	assert.Equal(t, 1, c.Len())
	got, err := c.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Document)
}

func TestUpsertEmptyID(t *testing.T) {
	c := newCollection("text_collection_u1", nil)
	require.Error(t, c.Upsert(context.Background(), Entry{Document: "x"}))
}

func TestDeleteNotFound(t *testing.T) {
	c := newCollection("text_collection_u1", nil)
	err := c.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueryRanksByDistance(t *testing.T) {
	c := newCollection("image_collection_u1", nil)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, Entry{ID: "far", Embedding: []float32{0, 1}}))
	require.NoError(t, c.Upsert(ctx, Entry{ID: "near", Embedding: []float32{1, 0.1}}))
	require.NoError(t, c.Upsert(ctx, Entry{ID: "exact", Embedding: []float32{1, 0}}))

	results, err := c.Query([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].ID)
	assert.Equal(t, "near", results[1].ID)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
}

func TestQueryEmptyCollection(t *testing.T) {
	c := newCollection("image_collection_u1", nil)
	results, err := c.Query([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryDimensionMismatch(t *testing.T) {
	c := newCollection("text_collection_u1", nil)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, Entry{ID: "old", Embedding: []float32{1, 0}}))

	// A provider reconfigured to a different dimensionality must get an
	// error back, not crash the scan.
	results, err := c.Query([]float32{1, 0, 0, 0}, 1)
	assert.ErrorIs(t, err, ErrDimMismatch)
	assert.Nil(t, results)
}

func TestListOrderedByID(t *testing.T) {
	c := newCollection("text_collection_u1", nil)
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, c.Upsert(ctx, Entry{ID: id, Embedding: []float32{1}}))
	}

	entries := c.List()
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "b", entries[1].ID)
	assert.Equal(t, "c", entries[2].ID)
}

func TestRegistryNaming(t *testing.T) {
	assert.Equal(t, "text_collection_u42", Name("u42", "text"))
	assert.Equal(t, "audio_collection_alice", Name("alice", "audio"))
}

func TestRegistryGetOrCreateIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	a, err := r.GetOrCreate(ctx, "u1", "text")
	require.NoError(t, err)
	b, err := r.GetOrCreate(ctx, "u1", "text")
	require.NoError(t, err)
	assert.Same(t, a, b)

	other, err := r.GetOrCreate(ctx, "u2", "text")
	require.NoError(t, err)
	assert.NotSame(t, a, other)
}

func TestRegistryConcurrentFirstAccess(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	const n = 16
	got := make([]*Collection, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := r.GetOrCreate(ctx, "u1", "image")
			assert.NoError(t, err)
			got[i] = c
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, got[0], got[i], "divergent collection for one logical key")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "collections.db")
	ctx := context.Background()

	store, err := OpenStore(dbPath)
	require.NoError(t, err)

	r := NewRegistry(store)
	c, err := r.GetOrCreate(ctx, "u1", "text")
	require.NoError(t, err)
	require.NoError(t, c.Upsert(ctx, Entry{
		ID:        "abc",
		Document:  "persisted doc",
		Embedding: []float32{0.5, -0.5},
		Metadata:  map[string]any{"user_id": "u1", "pinned": true},
	}))
	require.NoError(t, store.Close())

	// Reopen and verify the entry survived.
	store2, err := OpenStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	r2 := NewRegistry(store2)
	c2, err := r2.GetOrCreate(ctx, "u1", "text")
	require.NoError(t, err)

	got, err := c2.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, "persisted doc", got.Document)
	assert.Equal(t, []float32{0.5, -0.5}, got.Embedding)
	assert.Equal(t, "u1", got.Metadata["user_id"])
	assert.Equal(t, true, got.Metadata["pinned"])
}

func TestPersistenceDelete(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "collections.db")
	ctx := context.Background()

	store, err := OpenStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	r := NewRegistry(store)
	c, err := r.GetOrCreate(ctx, "u1", "audio")
	require.NoError(t, err)
	require.NoError(t, c.Upsert(ctx, Entry{ID: "x", Embedding: []float32{1}}))
	require.NoError(t, c.Delete(ctx, "x"))

	entries, err := store.load(ctx, c.Name())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStoreNames(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "collections.db")
	ctx := context.Background()

	store, err := OpenStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	r := NewRegistry(store)
	for _, m := range []string{"text", "image"} {
		c, err := r.GetOrCreate(ctx, "u1", m)
		require.NoError(t, err)
		require.NoError(t, c.Upsert(ctx, Entry{ID: "e", Embedding: []float32{1}}))
	}

	names, err := store.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"image_collection_u1", "text_collection_u1"}, names)
}
