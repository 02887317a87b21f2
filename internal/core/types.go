package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/printsmart/printd/internal/db"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusPrinting   JobStatus = "printing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
	JobStatusPaused     JobStatus = "paused"
)

type PrinterStatus string

const (
	PrinterOnline      PrinterStatus = "online"
	PrinterOffline     PrinterStatus = "offline"
	PrinterBusy        PrinterStatus = "busy"
	PrinterError       PrinterStatus = "error"
	PrinterMaintenance PrinterStatus = "maintenance"
)

type ColorMode string

const (
	ColorModeColor     ColorMode = "color"
	ColorModeBW        ColorMode = "bw"
	ColorModeGrayscale ColorMode = "grayscale"
)

type PrintQuality string

const (
	QualityDraft  PrintQuality = "draft"
	QualityNormal PrintQuality = "normal"
	QualityHigh   PrintQuality = "high"
	QualityBest   PrintQuality = "best"
)

// jobTransitions is the closed set of legal status moves. Terminal
// permanence of "failed" (retries exhausted) is enforced by the state
// machine on top of this table.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusQueued, JobStatusProcessing, JobStatusFailed, JobStatusCancelled, JobStatusPaused},
	JobStatusQueued:     {JobStatusProcessing, JobStatusFailed, JobStatusCancelled, JobStatusPaused},
	JobStatusProcessing: {JobStatusPrinting, JobStatusCompleted, JobStatusFailed},
	JobStatusPrinting:   {JobStatusCompleted, JobStatusFailed},
	JobStatusPaused:     {JobStatusPending, JobStatusCancelled},
	JobStatusFailed:     {JobStatusPending},
}

func CanTransition(from, to JobStatus) bool {
	for _, s := range jobTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(s JobStatus) bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

var (
	ErrPrinterNotFound   = errors.New("printer not found")
	ErrJobNotFound       = errors.New("job not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrFileNotFound      = errors.New("file not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotRetryable      = errors.New("job is not retryable")
	ErrInvalidState      = errors.New("operation not allowed in current job state")
)

// ValidationError reports a submission-time rejection (printer choice,
// capability mismatch). Malformed page selections are NOT validation
// errors; they fall back to all pages.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// Notifier delivers user-facing messages. Implementations must be
// fire-and-forget: a delivery failure never fails the state transition
// that triggered it.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message, category string)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, string, string, string) {}

// NoopNotifier is used when no notification sink is configured.
func NoopNotifier() Notifier { return noopNotifier{} }

// Prober answers printer connectivity questions with bounded timeouts.
// Errors and timeouts are equivalent to an unreachable result.
type Prober interface {
	Reachable(ctx context.Context, host string) bool
	PortOpen(ctx context.Context, host string, port int) bool
}

// Clock abstracts time.Now so timeout logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// FileStore resolves file metadata (page count, type) for submissions.
type FileStore interface {
	GetFile(ctx context.Context, id string) (*db.File, error)
}
