package maintenance

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"orbit/internal/collection"
)

// OrphanSweepTask removes stored files that have no index entry. A crash
// between the file write and the index upsert can leave such a file; the
// sweep finishes the cleanup the ingestion path could not.
type OrphanSweepTask struct {
	registry *collection.Registry
	// roots maps modality name to the base directory of its per-user tree.
	roots  map[string]string
	grace  time.Duration
	logger *log.Logger
}

// NewOrphanSweepTask creates the sweep over the given modality trees.
func NewOrphanSweepTask(registry *collection.Registry, roots map[string]string, grace time.Duration, logger *log.Logger) *OrphanSweepTask {
	if logger == nil {
		logger = log.Default()
	}
	if grace <= 0 {
		grace = time.Hour
	}
	return &OrphanSweepTask{registry: registry, roots: roots, grace: grace, logger: logger}
}

func (t *OrphanSweepTask) Name() string { return "orphan_sweep" }

func (t *OrphanSweepTask) Description() string {
	return "Removes stored files that are missing from the index"
}

func (t *OrphanSweepTask) IsDestructive() bool { return true }

// Execute scans every per-user folder and deletes files whose id is not
// indexed. Files younger than the grace period are skipped: they may
// belong to an ingestion still in flight.
func (t *OrphanSweepTask) Execute(ctx context.Context) TaskResult {
	var scanned, removed int
	var reclaimed int64
	cutoff := time.Now().Add(-t.grace)

	for modality, root := range t.roots {
		userDirs, err := os.ReadDir(root)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return TaskResult{Success: false, Message: "cannot read " + root, Error: err}
		}

		for _, userDir := range userDirs {
			if !userDir.IsDir() {
				continue
			}
			userID := userDir.Name()

			coll, err := t.registry.GetOrCreate(ctx, userID, modality)
			if err != nil {
				return TaskResult{Success: false, Message: "cannot open collection", Error: err}
			}

			files, err := os.ReadDir(filepath.Join(root, userID))
			if err != nil {
				continue
			}
			for _, f := range files {
				if f.IsDir() {
					continue
				}
				scanned++

				info, err := f.Info()
				if err != nil || info.ModTime().After(cutoff) {
					continue
				}

				name := f.Name()
				// Stale temp files from interrupted atomic writes.
				isTemp := strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp")
				id, _, _ := strings.Cut(name, ".")

				if !isTemp && coll.Has(id) {
					continue
				}

				path := filepath.Join(root, userID, name)
				if err := os.Remove(path); err != nil {
					t.logger.Printf("[Maintenance] Cannot remove orphan %s: %v", path, err)
					continue
				}
				removed++
				reclaimed += info.Size()
				t.logger.Printf("[Maintenance] Removed orphan file %s", path)
			}
		}
	}

	return TaskResult{
		Success:          true,
		Message:          fmt.Sprintf("scanned %d files, removed %d orphans", scanned, removed),
		RecordsProcessed: scanned,
		SpaceReclaimed:   reclaimed,
	}
}
