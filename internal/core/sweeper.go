package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/printsmart/printd/internal/db"
)

// SweepOptions controls one sweeper pass. DryRun reports what would
// happen without touching any row. TestMode performs the state
// transitions but skips the refunds.
type SweepOptions struct {
	PendingTimeout    time.Duration
	ProcessingTimeout time.Duration
	AbandonedAfter    time.Duration
	DryRun            bool
	TestMode          bool
	Verbose           bool
}

// SweepSummary reports the outcome of one pass, per scan.
type SweepSummary struct {
	PendingScanned  int
	ExpiredPending  int
	RetriedPending  int
	StuckScanned    int
	StuckProcessing int
	Abandoned       int
	Errors          int
}

// Modifiers scale the base timeouts per job. Higher priority jobs get
// longer to live, heavier file formats and slower printer types too.
// Unknown keys count as 1.0.
type Modifiers struct {
	Priority    map[int]float64
	FileType    map[string]float64
	PrinterType map[string]float64
}

// Sweeper expires jobs that outstayed their welcome. Three scans per
// pass: pending jobs past their submission timeout, processing or
// printing jobs stuck past their start timeout, and pending or failed
// jobs abandoned beyond the hard age limit.
type Sweeper struct {
	db        *sql.DB
	jobs      *JobManager
	registry  *Registry
	clock     Clock
	modifiers Modifiers

	interval time.Duration
	defaults SweepOptions

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

func NewSweeper(database *sql.DB, jobs *JobManager, registry *Registry, clock Clock, modifiers Modifiers, interval time.Duration, defaults SweepOptions) *Sweeper {
	if clock == nil {
		clock = SystemClock()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if defaults.PendingTimeout <= 0 {
		defaults.PendingTimeout = 30 * time.Minute
	}
	if defaults.ProcessingTimeout <= 0 {
		defaults.ProcessingTimeout = 60 * time.Minute
	}
	if defaults.AbandonedAfter <= 0 {
		defaults.AbandonedAfter = 7 * 24 * time.Hour
	}
	return &Sweeper{
		db:        database,
		jobs:      jobs,
		registry:  registry,
		clock:     clock,
		modifiers: modifiers,
		interval:  interval,
		defaults:  defaults,
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true
	go s.loop(s.stopCh, s.doneCh)
	log.Info("timeout sweeper started", "interval", s.interval)
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
	log.Info("timeout sweeper stopped")
}

func (s *Sweeper) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			summary, err := s.Sweep(context.Background(), s.defaults)
			if err != nil {
				log.Error("sweep pass failed", "err", err)
				continue
			}
			if summary.ExpiredPending+summary.RetriedPending+summary.StuckProcessing+summary.Abandoned > 0 {
				log.Info("sweep pass finished",
					"expired", summary.ExpiredPending, "retried", summary.RetriedPending,
					"stuck", summary.StuckProcessing, "abandoned", summary.Abandoned,
					"errors", summary.Errors)
			}
		case <-stopCh:
			return
		}
	}
}

// Sweep runs the three scans once and returns the summary.
func (s *Sweeper) Sweep(ctx context.Context, opts SweepOptions) (SweepSummary, error) {
	if opts.PendingTimeout <= 0 {
		opts.PendingTimeout = s.defaults.PendingTimeout
	}
	if opts.ProcessingTimeout <= 0 {
		opts.ProcessingTimeout = s.defaults.ProcessingTimeout
	}
	if opts.AbandonedAfter <= 0 {
		opts.AbandonedAfter = s.defaults.AbandonedAfter
	}

	var summary SweepSummary
	env := newSweepEnv(s)

	if err := s.sweepPending(ctx, env, opts, &summary); err != nil {
		return summary, err
	}
	if err := s.sweepStuck(ctx, env, opts, &summary); err != nil {
		return summary, err
	}
	if err := s.sweepAbandoned(ctx, opts, &summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// sweepPending expires pending jobs whose effective timeout has run
// out. Jobs whose printer is down get a retry lease instead of an
// expiry, so the health monitor's recovery path can still rescue them.
func (s *Sweeper) sweepPending(ctx context.Context, env *sweepEnv, opts SweepOptions, summary *SweepSummary) error {
	now := s.clock.Now().UTC()
	candidates, err := db.QueryJobs(ctx, s.db, db.ListPendingJobsBefore, now)
	if err != nil {
		return fmt.Errorf("failed to scan pending jobs: %w", err)
	}

	for _, job := range candidates {
		effective := env.effectiveTimeout(ctx, job, opts.PendingTimeout)
		age := now.Sub(job.SubmittedAt)
		if age < effective {
			continue
		}
		summary.PendingScanned++

		printerDown := false
		if job.PrinterID != "" {
			if printer, err := env.printer(ctx, job.PrinterID); err == nil {
				switch PrinterStatus(printer.Status) {
				case PrinterOffline, PrinterError, PrinterMaintenance:
					printerDown = true
				}
			}
		}

		if opts.Verbose {
			log.Info("pending job timed out", "job", job.ID,
				"age", age.Round(time.Second), "timeout", effective, "printer_down", printerDown)
		}
		if opts.DryRun {
			if printerDown {
				summary.RetriedPending++
			} else {
				summary.ExpiredPending++
			}
			continue
		}

		if printerDown {
			retried, err := s.jobs.MarkFailed(ctx, job.ID, "Printer unavailable past pending timeout", true)
			if err != nil {
				log.Error("failed to fail timed-out pending job", "job", job.ID, "err", err)
				summary.Errors++
				continue
			}
			if retried {
				summary.RetriedPending++
			} else {
				summary.ExpiredPending++
			}
			continue
		}

		reason := fmt.Sprintf("Expired after %s in pending", age.Round(time.Minute))
		if err := s.jobs.Expire(ctx, job.ID, reason, opts.TestMode); err != nil {
			if errors.Is(err, ErrInvalidState) {
				continue
			}
			log.Error("failed to expire pending job", "job", job.ID, "err", err)
			summary.Errors++
			continue
		}
		summary.ExpiredPending++
	}
	return nil
}

// sweepStuck fails processing or printing jobs whose start time is
// older than the effective processing timeout, with a retry so they
// return to pending.
func (s *Sweeper) sweepStuck(ctx context.Context, env *sweepEnv, opts SweepOptions, summary *SweepSummary) error {
	now := s.clock.Now().UTC()
	candidates, err := db.QueryJobs(ctx, s.db, db.ListStuckJobsBefore, now)
	if err != nil {
		return fmt.Errorf("failed to scan stuck jobs: %w", err)
	}

	for _, job := range candidates {
		if job.StartedAt == nil {
			continue
		}
		effective := env.effectiveTimeout(ctx, job, opts.ProcessingTimeout)
		age := now.Sub(*job.StartedAt)
		if age < effective {
			continue
		}
		summary.StuckScanned++

		if opts.Verbose {
			log.Info("job stuck in processing", "job", job.ID,
				"status", job.Status, "age", age.Round(time.Second), "timeout", effective)
		}
		if opts.DryRun {
			summary.StuckProcessing++
			continue
		}

		reason := fmt.Sprintf("Stuck in %s for %s", job.Status, age.Round(time.Minute))
		if _, err := s.jobs.MarkFailed(ctx, job.ID, reason, true); err != nil {
			log.Error("failed to fail stuck job", "job", job.ID, "err", err)
			summary.Errors++
			continue
		}
		summary.StuckProcessing++
	}
	return nil
}

// sweepAbandoned handles jobs beyond the hard age limit regardless of
// modifiers. Pending jobs are expired; failed jobs are only logged,
// the archiver picks them up once they are terminal.
func (s *Sweeper) sweepAbandoned(ctx context.Context, opts SweepOptions, summary *SweepSummary) error {
	cutoff := s.clock.Now().UTC().Add(-opts.AbandonedAfter)
	candidates, err := db.QueryJobs(ctx, s.db, db.ListAbandonedJobsBefore, cutoff)
	if err != nil {
		return fmt.Errorf("failed to scan abandoned jobs: %w", err)
	}

	for _, job := range candidates {
		if JobStatus(job.Status) == JobStatusFailed {
			if opts.Verbose {
				log.Info("abandoned failed job awaiting archival", "job", job.ID, "submitted", job.SubmittedAt)
			}
			continue
		}

		if opts.Verbose {
			log.Info("abandoned pending job", "job", job.ID, "submitted", job.SubmittedAt)
		}
		if opts.DryRun {
			summary.Abandoned++
			continue
		}

		reason := fmt.Sprintf("Abandoned since %s", job.SubmittedAt.Format(time.RFC3339))
		if err := s.jobs.Expire(ctx, job.ID, reason, opts.TestMode); err != nil {
			if errors.Is(err, ErrInvalidState) {
				continue
			}
			log.Error("failed to expire abandoned job", "job", job.ID, "err", err)
			summary.Errors++
			continue
		}
		summary.Abandoned++
	}
	return nil
}

// sweepEnv caches file and printer lookups for the duration of a pass.
type sweepEnv struct {
	s        *Sweeper
	files    map[string]*db.File
	printers map[string]*db.Printer
}

func newSweepEnv(s *Sweeper) *sweepEnv {
	return &sweepEnv{
		s:        s,
		files:    make(map[string]*db.File),
		printers: make(map[string]*db.Printer),
	}
}

func (e *sweepEnv) file(ctx context.Context, id string) (*db.File, error) {
	if f, ok := e.files[id]; ok {
		return f, nil
	}
	f, err := db.GetFile(ctx, e.s.db, id)
	if err != nil {
		return nil, err
	}
	e.files[id] = f
	return f, nil
}

func (e *sweepEnv) printer(ctx context.Context, id string) (*db.Printer, error) {
	if p, ok := e.printers[id]; ok {
		return p, nil
	}
	p, err := db.GetPrinter(ctx, e.s.db, id)
	if err != nil {
		return nil, err
	}
	e.printers[id] = p
	return p, nil
}

// effectiveTimeout scales the base timeout by the job's priority, its
// file's format and its printer's type. Lookup failures leave the
// corresponding factor at 1.0.
func (e *sweepEnv) effectiveTimeout(ctx context.Context, job *db.PrintJob, base time.Duration) time.Duration {
	factor := 1.0
	if m, ok := e.s.modifiers.Priority[job.Priority]; ok {
		factor *= m
	}
	if file, err := e.file(ctx, job.FileID); err == nil {
		if m, ok := e.s.modifiers.FileType[file.FileType]; ok {
			factor *= m
		}
	}
	if job.PrinterID != "" {
		if printer, err := e.printer(ctx, job.PrinterID); err == nil {
			if m, ok := e.s.modifiers.PrinterType[printer.PrinterType]; ok {
				factor *= m
			}
		}
	}
	return time.Duration(float64(base) * factor)
}
