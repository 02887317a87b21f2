package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/printsmart/printd/internal/db"
)

type LedgerReason string

const (
	ReasonPrintJob    LedgerReason = "print_job"
	ReasonRefund      LedgerReason = "refund"
	ReasonTopUp       LedgerReason = "top_up"
	ReasonAdminCredit LedgerReason = "admin_credit"
)

// Ledger mutates wallet balances and appends one immutable audit entry
// per mutation. Entries are never updated or deleted; the balance
// after any entry equals the balance before plus the signed amount.
type Ledger struct {
	db    *sql.DB
	clock Clock
}

func NewLedger(database *sql.DB, clock Clock) *Ledger {
	if clock == nil {
		clock = SystemClock()
	}
	return &Ledger{db: database, clock: clock}
}

// Credit adds amount to the user's wallet. It has no upper bound and
// always succeeds for an existing user.
func (l *Ledger) Credit(ctx context.Context, userID string, amount float64, reason LedgerReason, reference string) (float64, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	balance, err := l.CreditTx(ctx, tx, userID, amount, reason, reference)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit credit: %w", err)
	}
	return balance, nil
}

// Debit removes amount from the user's wallet, failing atomically with
// ErrInsufficientFunds when the balance does not cover it.
func (l *Ledger) Debit(ctx context.Context, userID string, amount float64, reason LedgerReason, reference string) (float64, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	balance, err := l.DebitTx(ctx, tx, userID, amount, reason, reference)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit debit: %w", err)
	}
	return balance, nil
}

// CreditTx is Credit running inside a caller-managed transaction, so a
// wallet mutation can commit or roll back together with the state
// change that caused it.
func (l *Ledger) CreditTx(ctx context.Context, tx db.DBTX, userID string, amount float64, reason LedgerReason, reference string) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %.2f", amount)
	}

	result, err := tx.ExecContext(ctx, db.CreditWallet, amount, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to credit wallet: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return 0, ErrUserNotFound
	}

	return l.appendEntry(ctx, tx, userID, amount, reason, reference)
}

// DebitTx is Debit running inside a caller-managed transaction.
func (l *Ledger) DebitTx(ctx context.Context, tx db.DBTX, userID string, amount float64, reason LedgerReason, reference string) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be positive, got %.2f", amount)
	}

	result, err := tx.ExecContext(ctx, db.DebitWallet, amount, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to debit wallet: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		if _, err := db.GetUser(ctx, tx, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, ErrUserNotFound
			}
			return 0, err
		}
		return 0, ErrInsufficientFunds
	}

	return l.appendEntry(ctx, tx, userID, -amount, reason, reference)
}

func (l *Ledger) appendEntry(ctx context.Context, tx db.DBTX, userID string, signedAmount float64, reason LedgerReason, reference string) (float64, error) {
	user, err := db.GetUser(ctx, tx, userID)
	if err != nil {
		return 0, err
	}

	entry := &db.LedgerEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		Amount:       signedAmount,
		Reason:       string(reason),
		Reference:    reference,
		BalanceAfter: user.WalletBalance,
		CreatedAt:    l.clock.Now().UTC(),
	}
	if err := db.CreateLedgerEntry(ctx, tx, entry); err != nil {
		return 0, err
	}
	return user.WalletBalance, nil
}

// Balance returns the user's current wallet balance.
func (l *Ledger) Balance(ctx context.Context, userID string) (float64, error) {
	user, err := db.GetUser(ctx, l.db, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return user.WalletBalance, nil
}

// Entries lists the user's ledger history, newest first.
func (l *Ledger) Entries(ctx context.Context, userID string, limit, offset int) ([]*db.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return db.GetLedgerEntriesByUser(ctx, l.db, userID, limit, offset)
}
