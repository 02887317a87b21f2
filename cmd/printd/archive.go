package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/printsmart/printd/internal/archive"
)

var archiveList bool

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive old terminal jobs",
	Long:  "Move completed, failed and cancelled jobs past the retention window into monthly archive files.",
	RunE:  runArchive,
}

func init() {
	archiveCmd.Flags().BoolVar(&archiveList, "list", false, "list existing archives instead of running a pass")
}

func runArchive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	archiver, err := archive.New(database, archive.Config{
		ArchivePath: cfg.Database.ArchivePath,
		ArchiveDays: cfg.Database.ArchiveDays,
	})
	if err != nil {
		return fmt.Errorf("failed to init archiver: %w", err)
	}

	if archiveList {
		archives, err := archiver.ListArchives()
		if err != nil {
			return err
		}
		for _, a := range archives {
			log.Info("archive", "file", a.Filename, "size", a.Size, "range", a.DateRange)
		}
		return nil
	}

	count, err := archiver.Run(context.Background())
	if err != nil {
		return fmt.Errorf("archive pass failed: %w", err)
	}
	log.Info("archive complete", "jobs", count)
	return nil
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
