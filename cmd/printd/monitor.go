package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/printsmart/printd/internal/core"
	"github.com/printsmart/printd/internal/netprobe"
)

var (
	monitorInterval int
	monitorOnce     bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Probe printer health",
	Long: `Check every active printer's reachability and service port, update
its stored status and cascade failures and recoveries to its jobs.
Runs continuously unless --once is given.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().IntVar(&monitorInterval, "interval", 60, "seconds between passes")
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "run a single pass and exit")
}

func runMonitor(cmd *cobra.Command, args []string) error {
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

	prober := netprobe.New(cfg.Monitor.PingTimeout, cfg.Monitor.PortTimeout)
	interval := time.Duration(monitorInterval) * time.Second
	monitor := core.NewHealthMonitor(registry, jobs, prober, clock, interval)

	if monitorOnce {
		summary, err := monitor.CheckAll(context.Background())
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		log.Info("health check complete",
			"checked", summary.Checked, "online", summary.Online,
			"offline", summary.Offline, "errored", summary.Errored,
			"skipped", summary.Skipped, "transitions", summary.Transition)
		return nil
	}

	monitor.Start()
	defer monitor.Stop()
	waitForSignal()
	return nil
}
