// Package archive moves terminal print jobs past the retention window
// out of the live database into monthly SQLite archive files.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"

	"github.com/printsmart/printd/internal/db"
)

type Config struct {
	ArchivePath string
	ArchiveDays int
}

type Archiver struct {
	db          *sql.DB
	archivePath string
	archiveDays int
	stopCh      chan struct{}
	mu          sync.Mutex
}

type ArchiveFile struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	DateRange string    `json:"date_range"`
}

func New(database *sql.DB, cfg Config) (*Archiver, error) {
	if cfg.ArchivePath == "" {
		cfg.ArchivePath = "./data/archives"
	}
	if cfg.ArchiveDays <= 0 {
		cfg.ArchiveDays = 30
	}

	if err := os.MkdirAll(cfg.ArchivePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &Archiver{
		db:          database,
		archivePath: cfg.ArchivePath,
		archiveDays: cfg.ArchiveDays,
		stopCh:      make(chan struct{}),
	}, nil
}

func (a *Archiver) Start() {
	go a.runDailyArchive()
}

func (a *Archiver) Stop() {
	close(a.stopCh)
}

func (a *Archiver) runDailyArchive() {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			if count, err := a.Run(context.Background()); err != nil {
				log.Error("archive pass failed", "err", err)
			} else if count > 0 {
				log.Info("archive pass finished", "jobs", count)
			}
		}
	}
}

// Run archives every terminal job whose completion is older than the
// retention window. Jobs land in an archive file named after the month
// they completed in and are removed from the live table only after the
// archive commit succeeds. Returns the number of jobs moved.
func (a *Archiver) Run(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -a.archiveDays)
	jobs, err := db.QueryJobs(ctx, a.db, db.ListArchivableJobs, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to get jobs for archival: %w", err)
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	byMonth := make(map[string][]*db.PrintJob)
	for _, job := range jobs {
		month := job.CompletedAt.Format("2006_01")
		byMonth[month] = append(byMonth[month], job)
	}

	archived := 0
	for month, monthJobs := range byMonth {
		path := filepath.Join(a.archivePath, fmt.Sprintf("archive_%s.db", month))
		if err := a.archiveBatch(ctx, path, monthJobs); err != nil {
			return archived, fmt.Errorf("failed to archive jobs for %s: %w", month, err)
		}
		archived += len(monthJobs)
	}
	return archived, nil
}

func (a *Archiver) archiveBatch(ctx context.Context, path string, jobs []*db.PrintJob) error {
	archiveDB, err := a.openOrCreateArchiveDB(path)
	if err != nil {
		return fmt.Errorf("failed to open archive database: %w", err)
	}
	defer archiveDB.Close()

	tx, err := archiveDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}

	for _, job := range jobs {
		if err := insertArchivedJob(ctx, tx, job); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert job %s: %w", job.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO archive_metadata (id, archived_at, source_database)
		VALUES (1, ?, 'main')
	`, time.Now().UTC()); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to update archive metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive transaction: %w", err)
	}

	return a.deleteArchivedJobs(ctx, jobs)
}

func (a *Archiver) openOrCreateArchiveDB(path string) (*sql.DB, error) {
	archiveDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = archiveDB.Exec(`
		CREATE TABLE IF NOT EXISTS print_jobs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			file_id TEXT NOT NULL,
			printer_id TEXT,
			copies INTEGER NOT NULL,
			pages TEXT NOT NULL,
			color_mode TEXT NOT NULL,
			paper_size TEXT NOT NULL,
			print_quality TEXT NOT NULL,
			duplex INTEGER NOT NULL,
			collate_pages INTEGER NOT NULL,
			orientation TEXT NOT NULL,
			status TEXT NOT NULL,
			priority INTEGER NOT NULL,
			total_pages INTEGER NOT NULL,
			total_cost REAL NOT NULL,
			tokens_required INTEGER NOT NULL,
			tokens_deducted INTEGER NOT NULL,
			pages_printed INTEGER NOT NULL,
			progress_percentage INTEGER NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			retry_count INTEGER NOT NULL,
			max_retries INTEGER NOT NULL,
			submitted_at DATETIME NOT NULL,
			started_at DATETIME,
			completed_at DATETIME
		);

		CREATE TABLE IF NOT EXISTS archive_metadata (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			archived_at DATETIME,
			source_database TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_archive_jobs_completed_at ON print_jobs(completed_at);
		CREATE INDEX IF NOT EXISTS idx_archive_jobs_status ON print_jobs(status);
	`)
	if err != nil {
		archiveDB.Close()
		return nil, err
	}
	return archiveDB, nil
}

func insertArchivedJob(ctx context.Context, tx *sql.Tx, j *db.PrintJob) error {
	var printerID any
	if j.PrinterID != "" {
		printerID = j.PrinterID
	}
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO print_jobs (
			id, user_id, file_id, printer_id, copies, pages, color_mode,
			paper_size, print_quality, duplex, collate_pages, orientation, status,
			priority, total_pages, total_cost, tokens_required, tokens_deducted,
			pages_printed, progress_percentage, error_message, retry_count,
			max_retries, submitted_at, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.UserID, j.FileID, printerID, j.Copies, j.Pages, j.ColorMode,
		j.PaperSize, j.PrintQuality, j.Duplex, j.Collate, j.Orientation, j.Status,
		j.Priority, j.TotalPages, j.TotalCost, j.TokensRequired, j.TokensDeducted,
		j.PagesPrinted, j.ProgressPercentage, j.ErrorMessage, j.RetryCount,
		j.MaxRetries, j.SubmittedAt, j.StartedAt, j.CompletedAt)
	return err
}

func (a *Archiver) deleteArchivedJobs(ctx context.Context, jobs []*db.PrintJob) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if _, err := tx.ExecContext(ctx, db.DeleteJob, job.ID); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListArchives returns the archive files on disk, newest first by the
// month embedded in the filename.
func (a *Archiver) ListArchives() ([]*ArchiveFile, error) {
	files, err := os.ReadDir(a.archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var archives []*ArchiveFile
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".db") {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}

		af := &ArchiveFile{
			Filename:  file.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		}
		if strings.HasPrefix(file.Name(), "archive_") {
			af.DateRange = strings.TrimSuffix(strings.TrimPrefix(file.Name(), "archive_"), ".db")
		}
		archives = append(archives, af)
	}
	return archives, nil
}
