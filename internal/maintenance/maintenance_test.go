package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbit/internal/collection"
)

func TestOrphanSweepRemovesUnindexedFiles(t *testing.T) {
	base := t.TempDir()
	registry := collection.NewRegistry(nil)
	ctx := context.Background()

	userDir := filepath.Join(base, "alice")
	require.NoError(t, os.MkdirAll(userDir, 0700))

	// An indexed file, an orphan, and a stale temp file. All aged past
	// the grace period.
	coll, err := registry.GetOrCreate(ctx, "alice", "text")
	require.NoError(t, err)
	require.NoError(t, coll.Upsert(ctx, collection.Entry{ID: "indexed", Embedding: []float32{1}}))

	indexed := filepath.Join(userDir, "indexed.json")
	orphan := filepath.Join(userDir, "orphan.json")
	stale := filepath.Join(userDir, ".deadbeef.tmp")
	for _, p := range []string{indexed, orphan, stale} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0600))
		old := time.Now().Add(-2 * time.Hour)
		require.NoError(t, os.Chtimes(p, old, old))
	}

	task := NewOrphanSweepTask(registry, map[string]string{"text": base}, time.Hour, nil)
	result := task.Execute(ctx)
	require.True(t, result.Success)
	assert.Equal(t, 3, result.RecordsProcessed)

	_, err = os.Stat(indexed)
	assert.NoError(t, err, "indexed file must survive")
	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err), "orphan must be removed")
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale temp file must be removed")
}

func TestOrphanSweepHonorsGracePeriod(t *testing.T) {
	base := t.TempDir()
	registry := collection.NewRegistry(nil)

	userDir := filepath.Join(base, "alice")
	require.NoError(t, os.MkdirAll(userDir, 0700))
	fresh := filepath.Join(userDir, "fresh.json")
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0600))

	task := NewOrphanSweepTask(registry, map[string]string{"text": base}, time.Hour, nil)
	result := task.Execute(context.Background())
	require.True(t, result.Success)

	_, err := os.Stat(fresh)
	assert.NoError(t, err, "files inside the grace period are untouched")
}

func TestStatsTask(t *testing.T) {
	registry := collection.NewRegistry(nil)
	ctx := context.Background()

	coll, err := registry.GetOrCreate(ctx, "alice", "text")
	require.NoError(t, err)
	require.NoError(t, coll.Upsert(ctx, collection.Entry{ID: "a", Embedding: []float32{1}}))
	require.NoError(t, coll.Upsert(ctx, collection.Entry{ID: "b", Embedding: []float32{1}}))

	result := NewStatsTask(registry, nil).Execute(ctx)
	require.True(t, result.Success)
	assert.Equal(t, 2, result.RecordsProcessed)
}

func TestSchedulerLifecycle(t *testing.T) {
	registry := collection.NewRegistry(nil)
	s := NewScheduler(Config{Enabled: true, Schedule: "@hourly"}, nil)
	s.RegisterTask(NewStatsTask(registry, nil))

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start(), "double start must fail")

	s.RunNow(context.Background())
	status := s.GetStatus()
	require.Contains(t, status, "index_stats")
	assert.True(t, status["index_stats"].LastResult.Success)
	assert.False(t, status["index_stats"].LastRun.IsZero())

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func TestSchedulerDisabled(t *testing.T) {
	s := NewScheduler(Config{Enabled: false, Schedule: "@hourly"}, nil)
	require.NoError(t, s.Start())
	assert.False(t, s.IsRunning())
}

func TestRunTaskUnknown(t *testing.T) {
	s := NewScheduler(DefaultConfig(), nil)
	assert.Error(t, s.RunTask(context.Background(), "nope"))
}
