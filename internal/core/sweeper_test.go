package core

import (
	"context"
	"testing"
	"time"

	"github.com/printsmart/printd/internal/db"
)

func testModifiers() Modifiers {
	return Modifiers{
		Priority: map[int]float64{
			1: 0.5, 2: 0.7, 3: 0.9, 4: 1.0, 5: 1.0,
			6: 1.2, 7: 1.5, 8: 2.0, 9: 3.0, 10: 5.0,
		},
		FileType: map[string]float64{
			"pdf": 1.0, "docx": 1.2, "xlsx": 1.5, "pptx": 1.3,
			"jpg": 0.8, "png": 0.8, "txt": 0.5,
		},
		PrinterType: map[string]float64{
			"laser": 1.0, "inkjet": 1.5, "thermal": 0.8, "dot_matrix": 2.0,
		},
	}
}

func newSweeperFixture(t *testing.T) (*jobFixture, *Sweeper) {
	t.Helper()
	f := newJobFixture(t, 1000)
	sweeper := NewSweeper(f.db, f.jobs, f.registry, f.clock, testModifiers(), 5*time.Minute, SweepOptions{
		PendingTimeout:    30 * time.Minute,
		ProcessingTimeout: 60 * time.Minute,
		AbandonedAfter:    7 * 24 * time.Hour,
	})
	return f, sweeper
}

func TestSweepExpiresTimedOutPending(t *testing.T) {
	f, sweeper := newSweeperFixture(t)
	ctx := context.Background()

	job := f.submit(t, nil)
	balanceAfterSubmit := getBalance(t, f.db, f.userID)

	// Within the timeout nothing happens.
	f.clock.Advance(29 * time.Minute)
	summary, err := sweeper.Sweep(ctx, SweepOptions{})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if summary.ExpiredPending != 0 {
		t.Fatalf("ExpiredPending = %d, want 0 before timeout", summary.ExpiredPending)
	}

	f.clock.Advance(2 * time.Minute)
	summary, err = sweeper.Sweep(ctx, SweepOptions{})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if summary.ExpiredPending != 1 {
		t.Fatalf("ExpiredPending = %d, want 1", summary.ExpiredPending)
	}

	got := getJob(t, f.db, job.ID)
	if got.Status != string(JobStatusCancelled) {
		t.Errorf("Status = %s, want cancelled", got.Status)
	}
	if balance := getBalance(t, f.db, f.userID); balance != balanceAfterSubmit+job.TotalCost {
		t.Errorf("balance = %v, expiry must refund", balance)
	}
}

func TestSweepModifiersExtendTimeout(t *testing.T) {
	f, sweeper := newSweeperFixture(t)
	ctx := context.Background()

	urgent := f.submit(t, func(r *SubmitRequest) { r.Priority = 1 })
	relaxed := f.submit(t, func(r *SubmitRequest) { r.Priority = 10 })

	// Priority 1 halves the 30m allowance, priority 10 stretches it
	// to 150m.
	f.clock.Advance(20 * time.Minute)
	summary, err := sweeper.Sweep(ctx, SweepOptions{})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if summary.ExpiredPending != 1 {
		t.Fatalf("ExpiredPending = %d, want only the urgent job", summary.ExpiredPending)
	}
	if got := getJob(t, f.db, urgent.ID); got.Status != string(JobStatusCancelled) {
		t.Errorf("urgent job status = %s, want cancelled", got.Status)
	}
	if got := getJob(t, f.db, relaxed.ID); got.Status != string(JobStatusPending) {
		t.Errorf("relaxed job status = %s, want still pending", got.Status)
	}

	f.clock.Advance(131 * time.Minute)
	if _, err := sweeper.Sweep(ctx, SweepOptions{}); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if got := getJob(t, f.db, relaxed.ID); got.Status != string(JobStatusCancelled) {
		t.Errorf("relaxed job status = %s, want cancelled after 150m", got.Status)
	}
}

func TestSweepFileAndPrinterTypeModifiers(t *testing.T) {
	f, sweeper := newSweeperFixture(t)
	ctx := context.Background()

	thermalID := seedPrinter(t, f.db, func(p *db.Printer) {
		p.PrinterType = "thermal"
		p.IPAddress = "192.0.2.30"
	})
	txtID := seedFile(t, f.db, f.userID, "txt", 2)

	// txt on a thermal printer: 30m x 0.5 x 0.8 = 12m.
	quick := f.submit(t, func(r *SubmitRequest) {
		r.FileID = txtID
		r.PrinterID = thermalID
	})
	// xlsx on the laser printer: 30m x 1.5 = 45m.
	slow := f.submit(t, func(r *SubmitRequest) {
		r.FileID = seedFile(t, f.db, f.userID, "xlsx", 2)
	})

	f.clock.Advance(13 * time.Minute)
	summary, err := sweeper.Sweep(ctx, SweepOptions{})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if summary.ExpiredPending != 1 {
		t.Fatalf("ExpiredPending = %d, want only the txt job", summary.ExpiredPending)
	}
	if got := getJob(t, f.db, quick.ID); got.Status != string(JobStatusCancelled) {
		t.Errorf("txt job status = %s, want cancelled", got.Status)
	}
	if got := getJob(t, f.db, slow.ID); got.Status != string(JobStatusPending) {
		t.Errorf("xlsx job status = %s, want still pending at 13m", got.Status)
	}

	f.clock.Advance(33 * time.Minute)
	if _, err := sweeper.Sweep(ctx, SweepOptions{}); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if got := getJob(t, f.db, slow.ID); got.Status != string(JobStatusCancelled) {
		t.Errorf("xlsx job status = %s, want cancelled after 45m", got.Status)
	}
}

func TestSweepPendingWithPrinterDownGetsRetry(t *testing.T) {
	f, sweeper := newSweeperFixture(t)
	ctx := context.Background()

	job := f.submit(t, nil)
	if _, err := f.registry.SetStatus(ctx, f.printerID, PrinterOffline); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	f.clock.Advance(31 * time.Minute)
	summary, err := sweeper.Sweep(ctx, SweepOptions{})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if summary.RetriedPending != 1 || summary.ExpiredPending != 0 {
		t.Fatalf("summary = %+v, want one retried and none expired", summary)
	}

	got := getJob(t, f.db, job.ID)
	if got.Status != string(JobStatusPending) {
		t.Errorf("Status = %s, want pending for retry", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", got.RetryCount)
	}
	if !got.TokensDeducted {
		t.Error("retry lease must keep funds committed")
	}
}

func TestSweepStuckProcessing(t *testing.T) {
	f, sweeper := newSweeperFixture(t)
	ctx := context.Background()

	job := f.submit(t, nil)
	if err := f.jobs.Start(ctx, job.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f.clock.Advance(59 * time.Minute)
	summary, err := sweeper.Sweep(ctx, SweepOptions{})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if summary.StuckProcessing != 0 {
		t.Fatalf("StuckProcessing = %d, want 0 before timeout", summary.StuckProcessing)
	}

	f.clock.Advance(2 * time.Minute)
	summary, err = sweeper.Sweep(ctx, SweepOptions{})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if summary.StuckProcessing != 1 {
		t.Fatalf("StuckProcessing = %d, want 1", summary.StuckProcessing)
	}

	got := getJob(t, f.db, job.ID)
	if got.Status != string(JobStatusPending) {
		t.Errorf("Status = %s, stuck jobs go back to pending", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", got.RetryCount)
	}
}

func TestSweepDryRunChangesNothing(t *testing.T) {
	f, sweeper := newSweeperFixture(t)
	ctx := context.Background()

	job := f.submit(t, nil)
	balanceAfterSubmit := getBalance(t, f.db, f.userID)

	f.clock.Advance(31 * time.Minute)
	summary, err := sweeper.Sweep(ctx, SweepOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if summary.ExpiredPending != 1 {
		t.Fatalf("ExpiredPending = %d, dry run must still report", summary.ExpiredPending)
	}

	got := getJob(t, f.db, job.ID)
	if got.Status != string(JobStatusPending) {
		t.Errorf("Status = %s, dry run must not touch the job", got.Status)
	}
	if balance := getBalance(t, f.db, f.userID); balance != balanceAfterSubmit {
		t.Errorf("balance = %v, dry run must not refund", balance)
	}
}

func TestSweepTestModeSkipsRefunds(t *testing.T) {
	f, sweeper := newSweeperFixture(t)
	ctx := context.Background()

	job := f.submit(t, nil)
	balanceAfterSubmit := getBalance(t, f.db, f.userID)

	f.clock.Advance(31 * time.Minute)
	summary, err := sweeper.Sweep(ctx, SweepOptions{TestMode: true})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if summary.ExpiredPending != 1 {
		t.Fatalf("ExpiredPending = %d, want 1", summary.ExpiredPending)
	}

	got := getJob(t, f.db, job.ID)
	if got.Status != string(JobStatusCancelled) {
		t.Errorf("Status = %s, test mode must still transition", got.Status)
	}
	if balance := getBalance(t, f.db, f.userID); balance != balanceAfterSubmit {
		t.Errorf("balance = %v, test mode must not refund", balance)
	}
}

func TestSweepAbandoned(t *testing.T) {
	f, sweeper := newSweeperFixture(t)
	ctx := context.Background()

	pending := f.submit(t, nil)
	failed := f.submit(t, nil)
	if _, err := f.jobs.MarkFailed(ctx, failed.ID, "gone", false); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}

	f.clock.Advance(8 * 24 * time.Hour)

	// A huge pending timeout isolates the abandoned scan.
	summary, err := sweeper.Sweep(ctx, SweepOptions{
		PendingTimeout: 30 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if summary.Abandoned != 1 {
		t.Fatalf("Abandoned = %d, want 1", summary.Abandoned)
	}

	if got := getJob(t, f.db, pending.ID); got.Status != string(JobStatusCancelled) {
		t.Errorf("abandoned pending status = %s, want cancelled", got.Status)
	}
	// Abandoned failed jobs are left for the archiver.
	if got := getJob(t, f.db, failed.ID); got.Status != string(JobStatusFailed) {
		t.Errorf("abandoned failed status = %s, want untouched", got.Status)
	}
}
