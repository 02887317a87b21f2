package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/printsmart/printd/internal/api"
	"github.com/printsmart/printd/internal/api/middleware"
	"github.com/printsmart/printd/internal/archive"
	"github.com/printsmart/printd/internal/core"
	"github.com/printsmart/printd/internal/netprobe"
	"github.com/printsmart/printd/internal/notify"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the print daemon",
	Long:  "Start the HTTP API together with the printer health monitor, the timeout sweeper and the retention archiver.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	notifier := notify.New(database, notify.Config{
		RetryCount:  cfg.Webhooks.RetryCount,
		RetryDelay:  cfg.Webhooks.RetryDelay,
		Timeout:     cfg.Webhooks.Timeout,
		WorkerCount: cfg.Webhooks.WorkerCount,
		QueueSize:   cfg.Webhooks.QueueSize,
	})
	notifier.Start()
	defer notifier.Stop()

	clock := core.SystemClock()
	ledger := core.NewLedger(database, clock)
	registry := core.NewRegistry(database, clock)
	files := core.NewFileStore(database)

	jobs := core.NewJobManager(database, ledger, registry, files, notifier, clock, core.JobManagerOptions{
		MaxRetries:      cfg.Jobs.MaxRetries,
		DefaultPriority: cfg.Jobs.DefaultPriority,
	})

	prober := netprobe.New(cfg.Monitor.PingTimeout, cfg.Monitor.PortTimeout)
	monitor := core.NewHealthMonitor(registry, jobs, prober, clock, cfg.Monitor.Interval)
	monitor.Start()
	defer monitor.Stop()

	sweeper := core.NewSweeper(database, jobs, registry, clock, core.Modifiers{
		Priority:    cfg.Sweeper.PriorityModifiers,
		FileType:    cfg.Sweeper.FileTypeModifiers,
		PrinterType: cfg.Sweeper.PrinterTypeModifiers,
	}, cfg.Sweeper.Interval, core.SweepOptions{
		PendingTimeout:    cfg.Sweeper.PendingTimeout,
		ProcessingTimeout: cfg.Sweeper.ProcessingTimeout,
		AbandonedAfter:    cfg.Sweeper.AbandonedAfter,
	})
	sweeper.Start()
	defer sweeper.Stop()

	archiver, err := archive.New(database, archive.Config{
		ArchivePath: cfg.Database.ArchivePath,
		ArchiveDays: cfg.Database.ArchiveDays,
	})
	if err != nil {
		return fmt.Errorf("failed to init archiver: %w", err)
	}
	archiver.Start()
	defer archiver.Stop()

	auth, err := middleware.NewAuthMiddleware(database)
	if err != nil {
		return fmt.Errorf("failed to init auth: %w", err)
	}

	router := api.NewRouter(api.Services{
		DB:       database,
		Ledger:   ledger,
		Registry: registry,
		Jobs:     jobs,
		Monitor:  monitor,
		Sweeper:  sweeper,
		Archiver: archiver,
	}, auth)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
