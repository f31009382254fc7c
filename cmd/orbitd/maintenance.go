package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"orbit/internal/collection"
	"orbit/internal/config"
	"orbit/internal/datadir"
	"orbit/internal/maintenance"

	"github.com/spf13/cobra"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Store maintenance operations",
	Long:  `Manage store maintenance tasks including orphan cleanup, statistics and scheduling.`,
}

var maintenanceRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run maintenance tasks immediately",
	Long:  `Execute all configured maintenance tasks immediately, bypassing the scheduler.`,
	RunE:  runMaintenanceTasks,
}

var maintenanceRunTaskCmd = &cobra.Command{
	Use:   "run-task [task-name]",
	Short: "Run a specific maintenance task",
	Long:  `Execute a specific maintenance task by name.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSpecificMaintenanceTask,
}

var maintenanceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show maintenance task status",
	Long:  `Display the current status of all maintenance tasks including last run times and results.`,
	RunE:  showMaintenanceStatus,
}

var maintenanceJSONOutput bool

func init() {
	maintenanceCmd.AddCommand(maintenanceRunCmd)
	maintenanceCmd.AddCommand(maintenanceRunTaskCmd)
	maintenanceCmd.AddCommand(maintenanceStatusCmd)

	maintenanceCmd.PersistentFlags().BoolVar(&maintenanceJSONOutput, "json", false, "Output results in JSON format")

	rootCmd.AddCommand(maintenanceCmd)
}

// newMaintenanceScheduler wires the sweep and stats tasks over the
// configured data directories.
func newMaintenanceScheduler(cfg *config.Config, dd *datadir.DataDir, registry *collection.Registry) *maintenance.Scheduler {
	mcfg := maintenance.DefaultConfig()
	mcfg.Enabled = cfg.Maintenance.Enabled
	if cfg.Maintenance.Schedule != "" {
		mcfg.Schedule = cfg.Maintenance.Schedule
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	scheduler := maintenance.NewScheduler(mcfg, logger)

	roots := map[string]string{
		"text":  dd.TextsDir(),
		"image": dd.ImagesDir(),
		"audio": dd.AudioDir(),
	}
	scheduler.RegisterTask(maintenance.NewOrphanSweepTask(registry, roots, mcfg.GracePeriod, logger))
	scheduler.RegisterTask(maintenance.NewStatsTask(registry, logger))

	return scheduler
}

// openScheduler builds a scheduler over the real store for CLI runs.
func openScheduler() (*maintenance.Scheduler, func(), error) {
	cfg, dd, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	_, registry, index, err := buildContentStore(cfg, dd)
	if err != nil {
		return nil, nil, err
	}

	scheduler := newMaintenanceScheduler(cfg, dd, registry)
	return scheduler, func() { index.Close() }, nil
}

func runMaintenanceTasks(cmd *cobra.Command, args []string) error {
	scheduler, cleanup, err := openScheduler()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	scheduler.RunNow(ctx)
	return printMaintenanceStatus(scheduler)
}

func runSpecificMaintenanceTask(cmd *cobra.Command, args []string) error {
	scheduler, cleanup, err := openScheduler()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := scheduler.RunTask(ctx, args[0]); err != nil {
		return err
	}
	return printMaintenanceStatus(scheduler)
}

func showMaintenanceStatus(cmd *cobra.Command, args []string) error {
	scheduler, cleanup, err := openScheduler()
	if err != nil {
		return err
	}
	defer cleanup()

	return printMaintenanceStatus(scheduler)
}

func printMaintenanceStatus(scheduler *maintenance.Scheduler) error {
	status := scheduler.GetStatus()

	if maintenanceJSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tLAST RUN\tRESULT\tMESSAGE")
	for _, s := range status {
		lastRun := "never"
		result := "-"
		message := "-"
		if !s.LastRun.IsZero() {
			lastRun = s.LastRun.Format(time.RFC3339)
			if s.LastResult.Success {
				result = "ok"
			} else {
				result = "failed"
			}
			if s.LastResult.Message != "" {
				message = s.LastResult.Message
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, lastRun, result, message)
	}
	return w.Flush()
}
