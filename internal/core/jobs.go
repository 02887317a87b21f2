package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/printsmart/printd/internal/db"
)

const notifyCategoryPrintJob = "print_job"

// SubmitRequest carries the print options for a new job.
type SubmitRequest struct {
	UserID    string
	FileID    string
	PrinterID string

	Copies      int
	Pages       string
	ColorMode   ColorMode
	PaperSize   string
	Quality     PrintQuality
	Duplex      bool
	Collate     bool
	Orientation string
	Priority    int
}

func (r *SubmitRequest) applyDefaults(defaultPriority int) {
	if r.Copies < 1 {
		r.Copies = 1
	}
	if r.Pages == "" {
		r.Pages = "all"
	}
	if r.ColorMode == "" {
		r.ColorMode = ColorModeBW
	}
	if r.PaperSize == "" {
		r.PaperSize = "A4"
	}
	if r.Quality == "" {
		r.Quality = QualityNormal
	}
	if r.Orientation == "" {
		r.Orientation = "portrait"
	}
	if r.Priority < 1 || r.Priority > 10 {
		r.Priority = defaultPriority
	}
}

// JobManager owns the print job lifecycle: submission, progress,
// failure, retry, cancellation and the printer failure/recovery
// cascades. Every funds-affecting transition commits atomically with
// its ledger entry.
type JobManager struct {
	db       *sql.DB
	ledger   *Ledger
	registry *Registry
	files    FileStore
	notifier Notifier
	clock    Clock

	maxRetries      int
	defaultPriority int
}

type JobManagerOptions struct {
	MaxRetries      int
	DefaultPriority int
}

func NewJobManager(database *sql.DB, ledger *Ledger, registry *Registry, files FileStore, notifier Notifier, clock Clock, opts JobManagerOptions) *JobManager {
	if notifier == nil {
		notifier = NoopNotifier()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.DefaultPriority < 1 || opts.DefaultPriority > 10 {
		opts.DefaultPriority = 5
	}
	return &JobManager{
		db:              database,
		ledger:          ledger,
		registry:        registry,
		files:           files,
		notifier:        notifier,
		clock:           clock,
		maxRetries:      opts.MaxRetries,
		defaultPriority: opts.DefaultPriority,
	}
}

// Submit validates the request, prices it, reserves the funds and
// creates the job in pending. On insufficient funds no job row and no
// ledger entry are created.
func (m *JobManager) Submit(ctx context.Context, req SubmitRequest) (*db.PrintJob, error) {
	req.applyDefaults(m.defaultPriority)

	printer, err := m.registry.Get(ctx, req.PrinterID)
	if err != nil {
		if errors.Is(err, ErrPrinterNotFound) {
			return nil, &ValidationError{Field: "printer_id", Reason: "printer not found"}
		}
		return nil, err
	}

	// Printer state is re-validated here, at submission time only.
	if !printer.IsActive || PrinterStatus(printer.Status) != PrinterOnline {
		return nil, &ValidationError{
			Field:  "printer_id",
			Reason: fmt.Sprintf("printer %q is currently %s", printer.Name, printer.Status),
		}
	}

	if (req.ColorMode == ColorModeColor || req.ColorMode == ColorModeGrayscale) && !printer.SupportsColor {
		return nil, &ValidationError{
			Field:  "color_mode",
			Reason: fmt.Sprintf("printer %q does not support color printing", printer.Name),
		}
	}

	if req.Duplex && !printer.SupportsDuplex {
		return nil, &ValidationError{
			Field:  "duplex",
			Reason: fmt.Sprintf("printer %q does not support duplex printing", printer.Name),
		}
	}

	file, err := m.files.GetFile(ctx, req.FileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &ValidationError{Field: "file_id", Reason: "file not found"}
		}
		return nil, err
	}
	pageCount := file.PageCount
	if pageCount < 1 {
		pageCount = 1
	}

	resolvedPages := ResolvePages(req.Pages, pageCount)
	totalCost := TotalCost(resolvedPages, req.Copies, req.ColorMode, req.Quality)

	job := &db.PrintJob{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		FileID:         req.FileID,
		PrinterID:      req.PrinterID,
		Copies:         req.Copies,
		Pages:          req.Pages,
		ColorMode:      string(req.ColorMode),
		PaperSize:      req.PaperSize,
		PrintQuality:   string(req.Quality),
		Duplex:         req.Duplex,
		Collate:        req.Collate,
		Orientation:    req.Orientation,
		Status:         string(JobStatusPending),
		Priority:       req.Priority,
		TotalPages:     resolvedPages,
		TotalCost:      totalCost,
		TokensRequired: TokensRequired(totalCost),
		TokensDeducted: true,
		MaxRetries:     m.maxRetries,
		SubmittedAt:    m.clock.Now().UTC(),
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := m.ledger.DebitTx(ctx, tx, req.UserID, totalCost, ReasonPrintJob, job.ID); err != nil {
		return nil, err
	}

	if err := db.CreateJob(ctx, tx, job); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit submission: %w", err)
	}

	m.notifier.Notify(ctx, req.UserID, "Print Job Submitted",
		fmt.Sprintf("Print job for %q submitted to %s. Total cost: %.2f.", file.Filename, printer.Name, totalCost),
		notifyCategoryPrintJob)

	return job, nil
}

// Get returns a job by id.
func (m *JobManager) Get(ctx context.Context, jobID string) (*db.PrintJob, error) {
	job, err := db.GetJob(ctx, m.db, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// Start moves a pending or queued job into processing.
func (m *JobManager) Start(ctx context.Context, jobID string) error {
	now := m.clock.Now().UTC()
	result, err := m.db.ExecContext(ctx, `
		UPDATE print_jobs SET status = 'processing', started_at = ?
		WHERE id = ? AND status IN ('pending', 'queued')
	`, now, jobID)
	if err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrInvalidState
	}
	return nil
}

// MarkPrinting moves a processing job into printing.
func (m *JobManager) MarkPrinting(ctx context.Context, jobID string) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE print_jobs SET status = 'printing' WHERE id = ? AND status = 'processing'
	`, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job printing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrInvalidState
	}
	return nil
}

// UpdateProgress records pages printed so far. Progress is monotonic;
// a lower value than already recorded is ignored. Reaching 100%
// completes the job and bumps the printer's page counter.
func (m *JobManager) UpdateProgress(ctx context.Context, jobID string, pagesPrinted int) (*db.PrintJob, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	job, err := db.GetJob(ctx, tx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	// Only statuses that can still reach completed accept progress.
	if !CanTransition(JobStatus(job.Status), JobStatusCompleted) {
		return nil, ErrInvalidState
	}

	if pagesPrinted < job.PagesPrinted {
		return job, nil
	}

	totalUnits := job.TotalPages * job.Copies
	if totalUnits < 1 {
		totalUnits = 1
	}
	percentage := pagesPrinted * 100 / totalUnits
	if percentage > 100 {
		percentage = 100
	}
	if percentage < 0 {
		percentage = 0
	}

	completed := percentage >= 100
	if completed {
		now := m.clock.Now().UTC()
		if pagesPrinted > totalUnits {
			pagesPrinted = totalUnits
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE print_jobs SET status = 'completed', pages_printed = ?, progress_percentage = 100, completed_at = ?
			WHERE id = ?
		`, pagesPrinted, now, jobID)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE print_jobs SET pages_printed = ?, progress_percentage = ? WHERE id = ?
		`, pagesPrinted, percentage, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit progress: %w", err)
	}

	job, err = m.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if completed {
		if job.PrinterID != "" {
			if err := m.registry.RecordPagesPrinted(ctx, job.PrinterID, pagesPrinted); err != nil {
				log.Warn("failed to record printed pages", "printer", job.PrinterID, "err", err)
			}
		}
		m.notifier.Notify(ctx, job.UserID, "Print Job Completed",
			fmt.Sprintf("Print job %s finished printing.", job.ID), notifyCategoryPrintJob)
	}

	return job, nil
}

// MarkFailed records a job failure. With retry budget left and
// shouldRetry set, the job returns to pending with its funds still
// committed and the return value is true. Otherwise the failure is
// permanent: the job is refunded in full, exactly once, no matter how
// many times MarkFailed is called.
func (m *JobManager) MarkFailed(ctx context.Context, jobID, reason string, shouldRetry bool) (bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	job, err := db.GetJob(ctx, tx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrJobNotFound
		}
		return false, err
	}

	from := JobStatus(job.Status)
	if IsTerminal(from) {
		return false, nil
	}

	if shouldRetry && CanTransition(from, JobStatusFailed) && job.RetryCount < job.MaxRetries {
		_, err := tx.ExecContext(ctx, `
			UPDATE print_jobs SET status = 'pending', retry_count = retry_count + 1,
				error_message = ?, started_at = NULL, pages_printed = 0, progress_percentage = 0
			WHERE id = ?
		`, reason, jobID)
		if err != nil {
			return false, fmt.Errorf("failed to queue job for retry: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit retry: %w", err)
		}

		m.notifier.Notify(ctx, job.UserID, "Print Job Queued for Retry",
			fmt.Sprintf("Print job %s will be retried (attempt %d of %d): %s", job.ID, job.RetryCount+1, job.MaxRetries, reason),
			notifyCategoryPrintJob)
		return true, nil
	}

	// Guarded flip makes the permanent path idempotent: a second call
	// affects zero rows and must not refund again.
	now := m.clock.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		UPDATE print_jobs SET status = 'failed', error_message = ?, completed_at = ?
		WHERE id = ? AND status != 'failed'
	`, reason, now, jobID)
	if err != nil {
		return false, fmt.Errorf("failed to mark job failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	refunded := false
	if affected == 1 && job.TokensDeducted && job.TotalCost > 0 {
		if _, err := m.ledger.CreditTx(ctx, tx, job.UserID, job.TotalCost, ReasonRefund, job.ID); err != nil {
			return false, fmt.Errorf("failed to refund job %s: %w", jobID, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE print_jobs SET tokens_deducted = 0 WHERE id = ?`, jobID); err != nil {
			return false, fmt.Errorf("failed to clear deduction flag: %w", err)
		}
		refunded = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit failure: %w", err)
	}

	if affected == 1 {
		msg := fmt.Sprintf("Print job %s failed permanently: %s", job.ID, reason)
		if refunded {
			msg += fmt.Sprintf(" You have been refunded %.2f.", job.TotalCost)
		}
		m.notifier.Notify(ctx, job.UserID, "Print Job Failed", msg, notifyCategoryPrintJob)
	}
	return false, nil
}

// Retry re-queues a failed job. Preconditions: status failed, retry
// budget left and the assigned printer online. A job that was already
// refunded is re-debited; insufficient funds abort the retry.
func (m *JobManager) Retry(ctx context.Context, jobID string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	job, err := db.GetJob(ctx, tx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrJobNotFound
		}
		return err
	}

	if !CanTransition(JobStatus(job.Status), JobStatusPending) {
		return fmt.Errorf("%w: status is %s", ErrNotRetryable, job.Status)
	}
	if job.RetryCount >= job.MaxRetries {
		return fmt.Errorf("%w: retries exhausted (%d of %d)", ErrNotRetryable, job.RetryCount, job.MaxRetries)
	}
	if job.PrinterID == "" {
		return fmt.Errorf("%w: no printer assigned", ErrNotRetryable)
	}

	printer, err := db.GetPrinter(ctx, tx, job.PrinterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: assigned printer no longer exists", ErrNotRetryable)
		}
		return err
	}
	if !printer.IsActive || PrinterStatus(printer.Status) != PrinterOnline {
		return fmt.Errorf("%w: printer %q is %s", ErrNotRetryable, printer.Name, printer.Status)
	}

	if !job.TokensDeducted && job.TotalCost > 0 {
		if _, err := m.ledger.DebitTx(ctx, tx, job.UserID, job.TotalCost, ReasonPrintJob, job.ID); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE print_jobs SET status = 'pending', retry_count = retry_count + 1,
			error_message = '', tokens_deducted = 1, started_at = NULL, completed_at = NULL,
			pages_printed = 0, progress_percentage = 0
		WHERE id = ?
	`, jobID)
	if err != nil {
		return fmt.Errorf("failed to retry job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit retry: %w", err)
	}

	m.notifier.Notify(ctx, job.UserID, "Print Job Retried",
		fmt.Sprintf("Print job %s was re-queued on printer %s.", job.ID, printer.Name),
		notifyCategoryPrintJob)
	return nil
}

// Cancel aborts a pending job at the user's request and refunds it.
// Jobs that have started printing cannot be cancelled.
func (m *JobManager) Cancel(ctx context.Context, jobID string) error {
	return m.expire(ctx, jobID, "Cancelled by user", false, "Print Job Cancelled")
}

// Expire force-cancels a pending job on behalf of the timeout sweeper.
// With skipRefund set the state still transitions but no ledger entry
// is written (operational rehearsal mode).
func (m *JobManager) Expire(ctx context.Context, jobID, reason string, skipRefund bool) error {
	return m.expire(ctx, jobID, reason, skipRefund, "Print Job Expired")
}

func (m *JobManager) expire(ctx context.Context, jobID, reason string, skipRefund bool, title string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	job, err := db.GetJob(ctx, tx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrJobNotFound
		}
		return err
	}

	if !CanTransition(JobStatus(job.Status), JobStatusCancelled) {
		return ErrInvalidState
	}

	now := m.clock.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		UPDATE print_jobs SET status = 'cancelled', error_message = ?, completed_at = ?
		WHERE id = ? AND status IN ('pending', 'queued', 'paused')
	`, reason, now, jobID)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrInvalidState
	}

	refunded := false
	if !skipRefund && job.TokensDeducted && job.TotalCost > 0 {
		if _, err := m.ledger.CreditTx(ctx, tx, job.UserID, job.TotalCost, ReasonRefund, job.ID); err != nil {
			return fmt.Errorf("failed to refund job %s: %w", jobID, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE print_jobs SET tokens_deducted = 0 WHERE id = ?`, jobID); err != nil {
			return fmt.Errorf("failed to clear deduction flag: %w", err)
		}
		refunded = true
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cancellation: %w", err)
	}

	msg := fmt.Sprintf("Print job %s was cancelled: %s", job.ID, reason)
	if refunded {
		msg += fmt.Sprintf(" You have been refunded %.2f.", job.TotalCost)
	}
	m.notifier.Notify(ctx, job.UserID, title, msg, notifyCategoryPrintJob)
	return nil
}

// HandlePrinterFailure cascades a printer going offline or into error
// to every job active on it. Returns the number of jobs touched.
func (m *JobManager) HandlePrinterFailure(ctx context.Context, printer *db.Printer) int {
	jobs, err := db.QueryJobs(ctx, m.db, db.ListActiveJobsByPrinter, printer.ID)
	if err != nil {
		log.Error("failed to list jobs for failed printer", "printer", printer.Name, "err", err)
		return 0
	}

	touched := 0
	for _, job := range jobs {
		reason := fmt.Sprintf("Printer %s went %s", printer.Name, printer.Status)
		retried, err := m.MarkFailed(ctx, job.ID, reason, true)
		if err != nil {
			log.Error("failed to fail job after printer failure", "job", job.ID, "err", err)
			continue
		}
		touched++
		if retried {
			log.Info("job queued for retry after printer failure", "job", job.ID, "printer", printer.Name)
		} else {
			log.Info("job failed permanently after printer failure", "job", job.ID, "printer", printer.Name)
		}
	}
	return touched
}

// HandlePrinterRecovery re-queues retryable failed jobs when their
// printer comes back online. Returns the number of jobs re-queued.
func (m *JobManager) HandlePrinterRecovery(ctx context.Context, printer *db.Printer) int {
	jobs, err := db.QueryJobs(ctx, m.db, db.ListFailedJobsByPrinter, printer.ID)
	if err != nil {
		log.Error("failed to list failed jobs for recovered printer", "printer", printer.Name, "err", err)
		return 0
	}

	requeued := 0
	for _, job := range jobs {
		if job.RetryCount >= job.MaxRetries {
			continue
		}
		if err := m.Retry(ctx, job.ID); err != nil {
			log.Warn("failed to retry job on recovered printer", "job", job.ID, "err", err)
			continue
		}
		requeued++
		log.Info("job re-queued on recovered printer", "job", job.ID, "printer", printer.Name)
	}
	return requeued
}
