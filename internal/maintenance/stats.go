package maintenance

import (
	"context"
	"fmt"
	"log"

	"orbit/internal/collection"
)

// StatsTask reports per-collection entry counts. Purely observational.
type StatsTask struct {
	registry *collection.Registry
	logger   *log.Logger
}

// NewStatsTask creates the stats reporter.
func NewStatsTask(registry *collection.Registry, logger *log.Logger) *StatsTask {
	if logger == nil {
		logger = log.Default()
	}
	return &StatsTask{registry: registry, logger: logger}
}

func (t *StatsTask) Name() string { return "index_stats" }

func (t *StatsTask) Description() string {
	return "Logs entry counts for every loaded collection"
}

func (t *StatsTask) IsDestructive() bool { return false }

func (t *StatsTask) Execute(ctx context.Context) TaskResult {
	collections := t.registry.Loaded()

	total := 0
	for _, c := range collections {
		n := c.Len()
		total += n
		t.logger.Printf("[Maintenance] Collection %s: %d entries", c.Name(), n)
	}

	return TaskResult{
		Success:          true,
		Message:          fmt.Sprintf("%d collections, %d entries", len(collections), total),
		RecordsProcessed: total,
	}
}
