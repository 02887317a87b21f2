package core

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/printsmart/printd/internal/db"
)

type jobFixture struct {
	db       *sql.DB
	clock    *fakeClock
	ledger   *Ledger
	registry *Registry
	notifier *recordingNotifier
	jobs     *JobManager

	userID    string
	printerID string
	fileID    string
}

func newJobFixture(t *testing.T, balance float64) *jobFixture {
	t.Helper()
	database := testDB(t)
	clock := newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	ledger := NewLedger(database, clock)
	registry := NewRegistry(database, clock)
	notifier := &recordingNotifier{}

	f := &jobFixture{
		db:       database,
		clock:    clock,
		ledger:   ledger,
		registry: registry,
		notifier: notifier,
	}
	f.jobs = NewJobManager(database, ledger, registry, NewFileStore(database), notifier, clock, JobManagerOptions{
		MaxRetries:      3,
		DefaultPriority: 5,
	})

	f.userID = seedUser(t, database, balance)
	f.printerID = seedPrinter(t, database, nil)
	f.fileID = seedFile(t, database, f.userID, "pdf", 10)
	return f
}

func (f *jobFixture) submit(t *testing.T, mutate func(*SubmitRequest)) *db.PrintJob {
	t.Helper()
	req := SubmitRequest{
		UserID:    f.userID,
		FileID:    f.fileID,
		PrinterID: f.printerID,
	}
	if mutate != nil {
		mutate(&req)
	}
	job, err := f.jobs.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	return job
}

func TestSubmitDebitsAndCreatesJob(t *testing.T) {
	f := newJobFixture(t, 100)
	ctx := context.Background()

	job := f.submit(t, func(r *SubmitRequest) {
		r.Copies = 2
		r.Pages = "1-5"
		r.ColorMode = ColorModeColor
		r.Quality = QualityHigh
	})

	// 5 pages x 2 copies x 2.0 color x 1.5 high = 30.
	if job.TotalCost != 30.0 {
		t.Errorf("TotalCost = %v, want 30.0", job.TotalCost)
	}
	if job.TotalPages != 5 {
		t.Errorf("TotalPages = %d, want 5", job.TotalPages)
	}
	if job.Status != string(JobStatusPending) {
		t.Errorf("Status = %s, want pending", job.Status)
	}
	if !job.TokensDeducted {
		t.Error("TokensDeducted should be true after submission")
	}

	if got := getBalance(t, f.db, f.userID); got != 70.0 {
		t.Errorf("balance = %v, want 70.0", got)
	}

	entries, err := db.GetLedgerEntriesByReference(ctx, f.db, job.ID)
	if err != nil {
		t.Fatalf("failed to list entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Amount != -30.0 {
		t.Fatalf("ledger entries = %+v, want one -30.0 debit", entries)
	}
}

func TestSubmitInsufficientFundsLeavesNoState(t *testing.T) {
	f := newJobFixture(t, 5)
	ctx := context.Background()

	_, err := f.jobs.Submit(ctx, SubmitRequest{
		UserID:    f.userID,
		FileID:    f.fileID,
		PrinterID: f.printerID,
		Copies:    2,
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Submit() error = %v, want ErrInsufficientFunds", err)
	}

	if got := getBalance(t, f.db, f.userID); got != 5 {
		t.Errorf("balance = %v, want untouched 5", got)
	}
	jobs, err := db.QueryJobs(ctx, f.db, db.ListJobsByUser, f.userID, 10, 0)
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("jobs = %d, want 0", len(jobs))
	}
	entries, _ := db.GetLedgerEntriesByUser(ctx, f.db, f.userID, 10, 0)
	if len(entries) != 0 {
		t.Errorf("ledger entries = %d, want 0", len(entries))
	}
}

func TestSubmitValidatesPrinter(t *testing.T) {
	f := newJobFixture(t, 100)
	ctx := context.Background()

	offlineID := seedPrinter(t, f.db, func(p *db.Printer) {
		p.Status = string(PrinterOffline)
	})
	monoID := seedPrinter(t, f.db, func(p *db.Printer) {
		p.SupportsColor = false
		p.SupportsDuplex = false
	})

	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
	}{
		{"unknown printer", func(r *SubmitRequest) { r.PrinterID = "nope" }},
		{"offline printer", func(r *SubmitRequest) { r.PrinterID = offlineID }},
		{"color on mono printer", func(r *SubmitRequest) {
			r.PrinterID = monoID
			r.ColorMode = ColorModeColor
		}},
		{"grayscale on mono printer", func(r *SubmitRequest) {
			r.PrinterID = monoID
			r.ColorMode = ColorModeGrayscale
		}},
		{"duplex unsupported", func(r *SubmitRequest) {
			r.PrinterID = monoID
			r.Duplex = true
		}},
		{"unknown file", func(r *SubmitRequest) { r.FileID = "nope" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := SubmitRequest{UserID: f.userID, FileID: f.fileID, PrinterID: f.printerID}
			tt.mutate(&req)
			_, err := f.jobs.Submit(ctx, req)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("Submit() error = %v, want ValidationError", err)
			}
		})
	}

	if got := getBalance(t, f.db, f.userID); got != 100 {
		t.Errorf("balance after rejected submissions = %v, want 100", got)
	}
}

func TestMarkFailedRetryPath(t *testing.T) {
	f := newJobFixture(t, 100)
	ctx := context.Background()
	job := f.submit(t, nil)

	if err := f.jobs.Start(ctx, job.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	retried, err := f.jobs.MarkFailed(ctx, job.ID, "paper jam", true)
	if err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if !retried {
		t.Fatal("MarkFailed() retried = false, want true")
	}

	got := getJob(t, f.db, job.ID)
	if got.Status != string(JobStatusPending) {
		t.Errorf("Status = %s, want pending", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", got.RetryCount)
	}
	if !got.TokensDeducted {
		t.Error("funds must stay committed across a retry")
	}
	// No refund on the retry path.
	if balance := getBalance(t, f.db, f.userID); balance != 100-job.TotalCost {
		t.Errorf("balance = %v, want %v", balance, 100-job.TotalCost)
	}
}

func TestMarkFailedPermanentRefundsOnce(t *testing.T) {
	f := newJobFixture(t, 100)
	ctx := context.Background()
	job := f.submit(t, nil)
	balanceAfterSubmit := getBalance(t, f.db, f.userID)

	retried, err := f.jobs.MarkFailed(ctx, job.ID, "printer on fire", false)
	if err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if retried {
		t.Fatal("MarkFailed() retried = true, want false")
	}

	got := getJob(t, f.db, job.ID)
	if got.Status != string(JobStatusFailed) {
		t.Errorf("Status = %s, want failed", got.Status)
	}
	if got.TokensDeducted {
		t.Error("TokensDeducted should be cleared after refund")
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be stamped on permanent failure")
	}

	if balance := getBalance(t, f.db, f.userID); balance != balanceAfterSubmit+job.TotalCost {
		t.Errorf("balance = %v, want full refund to %v", balance, balanceAfterSubmit+job.TotalCost)
	}

	// Calling again must not refund a second time.
	if _, err := f.jobs.MarkFailed(ctx, job.ID, "still on fire", false); err != nil {
		t.Fatalf("second MarkFailed() error = %v", err)
	}
	if balance := getBalance(t, f.db, f.userID); balance != balanceAfterSubmit+job.TotalCost {
		t.Errorf("balance after double fail = %v, refund must happen exactly once", balance)
	}

	entries, _ := db.GetLedgerEntriesByReference(ctx, f.db, job.ID)
	refunds := 0
	for _, e := range entries {
		if e.Reason == string(ReasonRefund) {
			refunds++
		}
	}
	if refunds != 1 {
		t.Errorf("refund entries = %d, want exactly 1", refunds)
	}
}

func TestMarkFailedRetryBudgetExhausted(t *testing.T) {
	f := newJobFixture(t, 100)
	ctx := context.Background()
	job := f.submit(t, nil)

	// Burn through the retry budget.
	for i := 0; i < 3; i++ {
		retried, err := f.jobs.MarkFailed(ctx, job.ID, "flaky", true)
		if err != nil {
			t.Fatalf("MarkFailed() #%d error = %v", i, err)
		}
		if !retried {
			t.Fatalf("MarkFailed() #%d retried = false, want true", i)
		}
	}

	// Fourth failure is permanent even with shouldRetry set.
	retried, err := f.jobs.MarkFailed(ctx, job.ID, "flaky", true)
	if err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if retried {
		t.Fatal("retry budget exhausted, MarkFailed() should fail permanently")
	}

	got := getJob(t, f.db, job.ID)
	if got.Status != string(JobStatusFailed) {
		t.Errorf("Status = %s, want failed", got.Status)
	}
	if balance := getBalance(t, f.db, f.userID); balance != 100 {
		t.Errorf("balance = %v, want 100 after refund", balance)
	}
}

func TestRetryRequiresBudgetAndPrinter(t *testing.T) {
	f := newJobFixture(t, 100)
	ctx := context.Background()
	job := f.submit(t, nil)

	// Not failed yet.
	if err := f.jobs.Retry(ctx, job.ID); !errors.Is(err, ErrNotRetryable) {
		t.Errorf("Retry() on pending error = %v, want ErrNotRetryable", err)
	}

	if _, err := f.jobs.MarkFailed(ctx, job.ID, "jam", false); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}

	// Printer offline blocks the retry.
	if _, err := f.registry.SetStatus(ctx, f.printerID, PrinterOffline); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if err := f.jobs.Retry(ctx, job.ID); !errors.Is(err, ErrNotRetryable) {
		t.Errorf("Retry() with offline printer error = %v, want ErrNotRetryable", err)
	}

	if _, err := f.registry.SetStatus(ctx, f.printerID, PrinterOnline); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if err := f.jobs.Retry(ctx, job.ID); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}

	got := getJob(t, f.db, job.ID)
	if got.Status != string(JobStatusPending) {
		t.Errorf("Status = %s, want pending", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", got.RetryCount)
	}
	if !got.TokensDeducted {
		t.Error("retry must re-commit the funds")
	}
	// The job was refunded on permanent failure; the retry re-debits.
	if balance := getBalance(t, f.db, f.userID); balance != 100-job.TotalCost {
		t.Errorf("balance = %v, want %v", balance, 100-job.TotalCost)
	}
}

func TestRetryInsufficientFundsAborts(t *testing.T) {
	f := newJobFixture(t, 10)
	ctx := context.Background()
	job := f.submit(t, nil)

	if _, err := f.jobs.MarkFailed(ctx, job.ID, "jam", false); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}

	// Drain the refunded wallet so the re-debit cannot succeed.
	if _, err := f.ledger.Debit(ctx, f.userID, 10, ReasonPrintJob, "other"); err != nil {
		t.Fatalf("Debit() error = %v", err)
	}

	if err := f.jobs.Retry(ctx, job.ID); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Retry() error = %v, want ErrInsufficientFunds", err)
	}

	got := getJob(t, f.db, job.ID)
	if got.Status != string(JobStatusFailed) {
		t.Errorf("Status = %s, failed retry must not change state", got.Status)
	}
	if got.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", got.RetryCount)
	}
}

func TestCancelOnlyPending(t *testing.T) {
	f := newJobFixture(t, 100)
	ctx := context.Background()

	job := f.submit(t, nil)
	if err := f.jobs.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	got := getJob(t, f.db, job.ID)
	if got.Status != string(JobStatusCancelled) {
		t.Errorf("Status = %s, want cancelled", got.Status)
	}
	if balance := getBalance(t, f.db, f.userID); balance != 100 {
		t.Errorf("balance = %v, want full refund to 100", balance)
	}

	// A started job cannot be cancelled.
	job2 := f.submit(t, nil)
	if err := f.jobs.Start(ctx, job2.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := f.jobs.Cancel(ctx, job2.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Cancel() on processing error = %v, want ErrInvalidState", err)
	}

	// Cancelling twice is rejected, not double-refunded.
	if err := f.jobs.Cancel(ctx, job.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Cancel() error = %v, want ErrInvalidState", err)
	}
	if balance := getBalance(t, f.db, f.userID); balance != 100-job2.TotalCost {
		t.Errorf("balance = %v, want %v", balance, 100-job2.TotalCost)
	}
}

func TestUpdateProgressMonotonicAndCompletes(t *testing.T) {
	f := newJobFixture(t, 100)
	ctx := context.Background()

	job := f.submit(t, func(r *SubmitRequest) {
		r.Pages = "1-5"
		r.Copies = 2
	})
	if err := f.jobs.Start(ctx, job.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	got, err := f.jobs.UpdateProgress(ctx, job.ID, 5)
	if err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	if got.ProgressPercentage != 50 {
		t.Errorf("progress = %d, want 50", got.ProgressPercentage)
	}

	// A lower value is ignored.
	got, err = f.jobs.UpdateProgress(ctx, job.ID, 3)
	if err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	if got.PagesPrinted != 5 {
		t.Errorf("PagesPrinted = %d, regression must be ignored", got.PagesPrinted)
	}

	got, err = f.jobs.UpdateProgress(ctx, job.ID, 10)
	if err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	if got.Status != string(JobStatusCompleted) {
		t.Errorf("Status = %s, want completed", got.Status)
	}
	if got.ProgressPercentage != 100 {
		t.Errorf("progress = %d, want 100", got.ProgressPercentage)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be stamped on completion")
	}

	// Completion bumps the printer's lifetime page counter.
	printer, err := f.registry.Get(ctx, f.printerID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if printer.TotalPagesPrinted != 10 {
		t.Errorf("TotalPagesPrinted = %d, want 10", printer.TotalPagesPrinted)
	}

	// Progress on a terminal job is rejected.
	if _, err := f.jobs.UpdateProgress(ctx, job.ID, 10); !errors.Is(err, ErrInvalidState) {
		t.Errorf("UpdateProgress() on completed error = %v, want ErrInvalidState", err)
	}
}

func TestExpireTestModeSkipsRefund(t *testing.T) {
	f := newJobFixture(t, 100)
	ctx := context.Background()

	job := f.submit(t, nil)
	balanceAfterSubmit := getBalance(t, f.db, f.userID)

	if err := f.jobs.Expire(ctx, job.ID, "timed out", true); err != nil {
		t.Fatalf("Expire() error = %v", err)
	}

	got := getJob(t, f.db, job.ID)
	if got.Status != string(JobStatusCancelled) {
		t.Errorf("Status = %s, want cancelled", got.Status)
	}
	if got.ErrorMessage != "timed out" {
		t.Errorf("ErrorMessage = %q, want reason recorded", got.ErrorMessage)
	}
	if balance := getBalance(t, f.db, f.userID); balance != balanceAfterSubmit {
		t.Errorf("balance = %v, test mode must not refund", balance)
	}
}

func TestPrinterFailureCascade(t *testing.T) {
	f := newJobFixture(t, 100)
	ctx := context.Background()

	active := f.submit(t, nil)
	if err := f.jobs.Start(ctx, active.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	pending := f.submit(t, nil)

	printer, _ := f.registry.Get(ctx, f.printerID)
	printer.Status = string(PrinterOffline)

	touched := f.jobs.HandlePrinterFailure(ctx, printer)
	if touched != 2 {
		t.Fatalf("HandlePrinterFailure() touched = %d, want 2", touched)
	}

	for _, id := range []string{active.ID, pending.ID} {
		got := getJob(t, f.db, id)
		if got.Status != string(JobStatusPending) {
			t.Errorf("job %s status = %s, want pending for retry", id, got.Status)
		}
		if got.RetryCount != 1 {
			t.Errorf("job %s RetryCount = %d, want 1", id, got.RetryCount)
		}
	}
}

func TestPrinterRecoveryRequeuesFailedJobs(t *testing.T) {
	f := newJobFixture(t, 100)
	ctx := context.Background()

	job := f.submit(t, nil)
	if _, err := f.jobs.MarkFailed(ctx, job.ID, "offline", false); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}

	printer, _ := f.registry.Get(ctx, f.printerID)
	requeued := f.jobs.HandlePrinterRecovery(ctx, printer)
	if requeued != 1 {
		t.Fatalf("HandlePrinterRecovery() requeued = %d, want 1", requeued)
	}

	got := getJob(t, f.db, job.ID)
	if got.Status != string(JobStatusPending) {
		t.Errorf("Status = %s, want pending", got.Status)
	}
	if !got.TokensDeducted {
		t.Error("recovery retry must re-commit funds")
	}
}

func TestMarkFailedRetryOnFailedJobIsNoOp(t *testing.T) {
	f := newJobFixture(t, 100)
	ctx := context.Background()

	job := f.submit(t, nil)
	if _, err := f.jobs.MarkFailed(ctx, job.ID, "paper jam", false); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	balanceAfterRefund := getBalance(t, f.db, f.userID)

	// Re-queueing a job that is already failed is not a legal move;
	// only Retry brings it back, with its printer and funds checks.
	retried, err := f.jobs.MarkFailed(ctx, job.ID, "paper jam again", true)
	if err != nil {
		t.Fatalf("MarkFailed() second call error = %v", err)
	}
	if retried {
		t.Error("MarkFailed(shouldRetry) on a failed job must not re-queue it")
	}

	got := getJob(t, f.db, job.ID)
	if got.Status != string(JobStatusFailed) {
		t.Errorf("Status = %s, want still failed", got.Status)
	}
	if got.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", got.RetryCount)
	}
	if balance := getBalance(t, f.db, f.userID); balance != balanceAfterRefund {
		t.Errorf("balance = %v, want unchanged %v", balance, balanceAfterRefund)
	}
}

func TestUpdateProgressRejectsPendingJob(t *testing.T) {
	f := newJobFixture(t, 100)

	job := f.submit(t, nil)
	if _, err := f.jobs.UpdateProgress(context.Background(), job.ID, 3); !errors.Is(err, ErrInvalidState) {
		t.Errorf("UpdateProgress(pending) error = %v, want ErrInvalidState", err)
	}
}

func TestSubmitNotifies(t *testing.T) {
	f := newJobFixture(t, 100)
	f.submit(t, nil)

	titles := f.notifier.titles()
	if len(titles) != 1 || titles[0] != "Print Job Submitted" {
		t.Errorf("notifications = %v, want one submission notice", titles)
	}
}
