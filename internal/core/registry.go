package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/printsmart/printd/internal/db"
)

// CapabilityFilter narrows printer selection to required capabilities.
type CapabilityFilter struct {
	Color  bool
	Duplex bool
}

// Registry is the passive printer store: status writes, capability
// queries and the page counter. Capability validation happens in the
// job state machine at submission time, not here.
type Registry struct {
	db    *sql.DB
	clock Clock
}

func NewRegistry(database *sql.DB, clock Clock) *Registry {
	if clock == nil {
		clock = SystemClock()
	}
	return &Registry{db: database, clock: clock}
}

func (r *Registry) Get(ctx context.Context, id string) (*db.Printer, error) {
	p, err := db.GetPrinter(ctx, r.db, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPrinterNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *Registry) List(ctx context.Context) ([]*db.Printer, error) {
	return db.GetPrinters(ctx, r.db)
}

func (r *Registry) ListActive(ctx context.Context) ([]*db.Printer, error) {
	return db.GetActivePrinters(ctx, r.db)
}

// ListAvailable returns active online printers matching the required
// capabilities at call time. The snapshot is not re-validated after
// return.
func (r *Registry) ListAvailable(ctx context.Context, filter CapabilityFilter) ([]*db.Printer, error) {
	return db.GetAvailablePrinters(ctx, r.db, filter.Color, filter.Duplex)
}

// SetStatus writes the printer status and returns the previous one.
// The write is idempotent: an unchanged status is a no-op apart from
// refreshing last_seen_at.
func (r *Registry) SetStatus(ctx context.Context, id string, status PrinterStatus) (PrinterStatus, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := db.GetPrinter(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrPrinterNotFound
		}
		return "", err
	}

	previous := PrinterStatus(p.Status)
	if err := db.SetPrinterStatus(ctx, tx, id, string(status), r.clock.Now().UTC()); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit status update: %w", err)
	}
	return previous, nil
}

// RecordPagesPrinted adds to the printer's lifetime page counter. The
// counter is monotonic: non-positive increments are ignored.
func (r *Registry) RecordPagesPrinted(ctx context.Context, id string, pages int) error {
	if pages <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, db.AddPrinterPagesPrinted, pages, id)
	if err != nil {
		return fmt.Errorf("failed to record pages printed: %w", err)
	}
	return nil
}

func (r *Registry) Create(ctx context.Context, p *db.Printer) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = string(PrinterOffline)
	}
	return db.CreatePrinter(ctx, r.db, p)
}

func (r *Registry) Update(ctx context.Context, p *db.Printer) error {
	return db.UpdatePrinterRecord(ctx, r.db, p)
}

// Deactivate soft-disables a printer. Printers referenced by jobs are
// never deleted.
func (r *Registry) Deactivate(ctx context.Context, id string) error {
	p, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	p.IsActive = false
	return r.Update(ctx, p)
}
