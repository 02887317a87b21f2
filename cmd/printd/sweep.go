package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/printsmart/printd/internal/core"
)

var (
	sweepPendingTimeout    int
	sweepProcessingTimeout int
	sweepDryRun            bool
	sweepTestMode          bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire timed-out print jobs",
	Long: `Run one pass of the timeout sweeper and exit.

Pending jobs older than the pending timeout are cancelled and refunded;
processing jobs stuck past the processing timeout go back to pending
for retry. Per-job timeouts scale with priority, file format and
printer type. Use --dry-run to see what would happen, or --test-mode
to perform the transitions without the refunds.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().IntVar(&sweepPendingTimeout, "pending-timeout", 30, "pending timeout in minutes")
	sweepCmd.Flags().IntVar(&sweepProcessingTimeout, "processing-timeout", 60, "processing timeout in minutes")
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "report without changing anything")
	sweepCmd.Flags().BoolVar(&sweepTestMode, "test-mode", false, "transition jobs but skip refunds")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	clock := core.SystemClock()
	ledger := core.NewLedger(database, clock)
	registry := core.NewRegistry(database, clock)
	files := core.NewFileStore(database)
	jobs := core.NewJobManager(database, ledger, registry, files, core.NoopNotifier(), clock, core.JobManagerOptions{
		MaxRetries:      cfg.Jobs.MaxRetries,
		DefaultPriority: cfg.Jobs.DefaultPriority,
	})

	sweeper := core.NewSweeper(database, jobs, registry, clock, core.Modifiers{
		Priority:    cfg.Sweeper.PriorityModifiers,
		FileType:    cfg.Sweeper.FileTypeModifiers,
		PrinterType: cfg.Sweeper.PrinterTypeModifiers,
	}, cfg.Sweeper.Interval, core.SweepOptions{
		AbandonedAfter: cfg.Sweeper.AbandonedAfter,
	})

	summary, err := sweeper.Sweep(context.Background(), core.SweepOptions{
		PendingTimeout:    time.Duration(sweepPendingTimeout) * time.Minute,
		ProcessingTimeout: time.Duration(sweepProcessingTimeout) * time.Minute,
		AbandonedAfter:    cfg.Sweeper.AbandonedAfter,
		DryRun:            sweepDryRun,
		TestMode:          sweepTestMode,
		Verbose:           verbose,
	})
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	log.Info("sweep complete",
		"dry_run", sweepDryRun,
		"expired_pending", summary.ExpiredPending,
		"retried_pending", summary.RetriedPending,
		"stuck_processing", summary.StuckProcessing,
		"abandoned", summary.Abandoned,
		"errors", summary.Errors)
	return nil
}
