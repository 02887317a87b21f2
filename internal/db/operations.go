package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the helpers below
// compose into caller-managed transactions.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanPrinter(row interface{ Scan(...any) error }) (*Printer, error) {
	p := &Printer{}
	var lastSeen sql.NullTime
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.PrinterType, &p.IPAddress, &p.Port,
		&p.SupportsColor, &p.SupportsDuplex, &p.MaxPaperSize, &p.Status,
		&p.IsDefault, &p.IsActive, &p.TotalPagesPrinted, &lastSeen,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		p.LastSeenAt = &lastSeen.Time
	}
	return p, nil
}

func CreatePrinter(ctx context.Context, q DBTX, p *Printer) error {
	_, err := q.ExecContext(ctx, InsertPrinter,
		p.ID, p.Name, p.Description, p.PrinterType, p.IPAddress, p.Port,
		p.SupportsColor, p.SupportsDuplex, p.MaxPaperSize, p.Status,
		p.IsDefault, p.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create printer: %w", err)
	}
	return nil
}

func GetPrinter(ctx context.Context, q DBTX, id string) (*Printer, error) {
	p, err := scanPrinter(q.QueryRowContext(ctx, GetPrinterByID, id))
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get printer: %w", err)
	}
	return p, nil
}

func queryPrinters(ctx context.Context, q DBTX, query string, args ...any) ([]*Printer, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query printers: %w", err)
	}
	defer rows.Close()

	var printers []*Printer
	for rows.Next() {
		p, err := scanPrinter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan printer: %w", err)
		}
		printers = append(printers, p)
	}
	return printers, rows.Err()
}

func GetPrinters(ctx context.Context, q DBTX) ([]*Printer, error) {
	return queryPrinters(ctx, q, ListPrinters)
}

func GetActivePrinters(ctx context.Context, q DBTX) ([]*Printer, error) {
	return queryPrinters(ctx, q, ListActivePrinters)
}

func GetAvailablePrinters(ctx context.Context, q DBTX, needColor, needDuplex bool) ([]*Printer, error) {
	return queryPrinters(ctx, q, ListAvailablePrinters, boolArg(needColor), boolArg(needDuplex))
}

func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}

func UpdatePrinterRecord(ctx context.Context, q DBTX, p *Printer) error {
	_, err := q.ExecContext(ctx, UpdatePrinter,
		p.Name, p.Description, p.PrinterType, p.IPAddress, p.Port,
		p.SupportsColor, p.SupportsDuplex, p.MaxPaperSize,
		p.IsDefault, p.IsActive, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update printer: %w", err)
	}
	return nil
}

func SetPrinterStatus(ctx context.Context, q DBTX, id, status string, lastSeen time.Time) error {
	_, err := q.ExecContext(ctx, UpdatePrinterStatus, status, lastSeen, id)
	if err != nil {
		return fmt.Errorf("failed to update printer status: %w", err)
	}
	return nil
}

func scanJob(row interface{ Scan(...any) error }) (*PrintJob, error) {
	j := &PrintJob{}
	var printerID sql.NullString
	var startedAt, completedAt sql.NullTime
	err := row.Scan(
		&j.ID, &j.UserID, &j.FileID, &printerID, &j.Copies, &j.Pages,
		&j.ColorMode, &j.PaperSize, &j.PrintQuality, &j.Duplex, &j.Collate,
		&j.Orientation, &j.Status, &j.Priority, &j.TotalPages, &j.TotalCost,
		&j.TokensRequired, &j.TokensDeducted, &j.PagesPrinted,
		&j.ProgressPercentage, &j.ErrorMessage, &j.RetryCount, &j.MaxRetries,
		&j.SubmittedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if printerID.Valid {
		j.PrinterID = printerID.String
	}
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	return j, nil
}

func CreateJob(ctx context.Context, q DBTX, j *PrintJob) error {
	var printerID any
	if j.PrinterID != "" {
		printerID = j.PrinterID
	}
	_, err := q.ExecContext(ctx, InsertJob,
		j.ID, j.UserID, j.FileID, printerID, j.Copies, j.Pages,
		j.ColorMode, j.PaperSize, j.PrintQuality, j.Duplex, j.Collate,
		j.Orientation, j.Status, j.Priority, j.TotalPages, j.TotalCost,
		j.TokensRequired, j.TokensDeducted, j.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func GetJob(ctx context.Context, q DBTX, id string) (*PrintJob, error) {
	j, err := scanJob(q.QueryRowContext(ctx, GetJobByID, id))
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

func QueryJobs(ctx context.Context, q DBTX, query string, args ...any) ([]*PrintJob, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*PrintJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func CreateUser(ctx context.Context, q DBTX, u *User) error {
	_, err := q.ExecContext(ctx, InsertUser, u.ID, u.Email, u.WalletBalance, u.Tokens)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func GetUser(ctx context.Context, q DBTX, id string) (*User, error) {
	u := &User{}
	err := q.QueryRowContext(ctx, GetUserByID, id).Scan(
		&u.ID, &u.Email, &u.WalletBalance, &u.Tokens, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func CreateFile(ctx context.Context, q DBTX, f *File) error {
	_, err := q.ExecContext(ctx, InsertFile, f.ID, f.UserID, f.Filename, f.FileType, f.PageCount)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

func GetFile(ctx context.Context, q DBTX, id string) (*File, error) {
	f := &File{}
	err := q.QueryRowContext(ctx, GetFileByID, id).Scan(
		&f.ID, &f.UserID, &f.Filename, &f.FileType, &f.PageCount, &f.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

func CreateLedgerEntry(ctx context.Context, q DBTX, e *LedgerEntry) error {
	_, err := q.ExecContext(ctx, InsertLedgerEntry,
		e.ID, e.UserID, e.Amount, e.Reason, e.Reference, e.BalanceAfter, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return nil
}

func GetLedgerEntriesByReference(ctx context.Context, q DBTX, reference string) ([]*LedgerEntry, error) {
	rows, err := q.QueryContext(ctx, ListLedgerEntriesByReference, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		e := &LedgerEntry{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Reason, &e.Reference, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func GetLedgerEntriesByUser(ctx context.Context, q DBTX, userID string, limit, offset int) ([]*LedgerEntry, error) {
	rows, err := q.QueryContext(ctx, ListLedgerEntriesByUser, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		e := &LedgerEntry{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Reason, &e.Reference, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func CreateNotification(ctx context.Context, q DBTX, n *Notification) error {
	_, err := q.ExecContext(ctx, InsertNotification,
		n.ID, n.UserID, n.Title, n.Message, n.Category, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func GetNotificationsByUser(ctx context.Context, q DBTX, userID string, limit, offset int) ([]*Notification, error) {
	rows, err := q.QueryContext(ctx, ListNotificationsByUser, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Category, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func GetSettingValue(ctx context.Context, q DBTX, key string) (string, error) {
	var value string
	var updatedAt time.Time
	err := q.QueryRowContext(ctx, GetSetting, key).Scan(&value, &updatedAt)
	if err != nil {
		return "", err
	}
	return value, nil
}

func SetSettingValue(ctx context.Context, q DBTX, key, value string) error {
	_, err := q.ExecContext(ctx, SetSetting, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}
