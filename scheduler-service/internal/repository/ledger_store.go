package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joelsaunders/bilbo/shared/models"
	"github.com/joelsaunders/bilbo/shared/utils"
)

// PassKind names the ledger a pass writes to. Passes of different kinds for
// the same user do not block each other.
type PassKind string

const (
	DepositPass    PassKind = "deposit"
	WithdrawalPass PassKind = "withdrawal"
)

// LedgerTx is the view of the ledger a pass works against. Reads observe
// every row committed by earlier holders of the pass lock.
type LedgerTx interface {
	ListBillsForUser(ctx context.Context, userID string) ([]models.Bill, error)
	DepositExists(ctx context.Context, billID string, since time.Time) (bool, error)
	WithdrawalExists(ctx context.Context, billID string, since time.Time) (bool, error)
	// CheckAndRecordDeposit inserts a deposit unless one already exists at or
	// after periodStart. The bool reports whether a row was written.
	CheckAndRecordDeposit(ctx context.Context, billID string, periodStart time.Time, amount int64, at time.Time) (*models.Deposit, bool, error)
	// CheckAndRecordWithdrawal inserts a withdrawal unless one already exists
	// at or after occurrence.
	CheckAndRecordWithdrawal(ctx context.Context, billID string, occurrence time.Time, success bool, at time.Time) (*models.Withdrawal, bool, error)
}

// LedgerStore runs scheduler passes against Postgres.
type LedgerStore struct {
	pool *pgxpool.Pool
}

func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// InPass runs fn inside one transaction holding the advisory lock for
// (kind, userID). The transaction commits only if fn returns nil.
func (s *LedgerStore) InPass(ctx context.Context, userID string, kind PassKind, fn func(LedgerTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin %s pass: %w", kind, err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Printf("rollback %s pass for %s: %v", kind, userID, rbErr)
		}
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, string(kind)+":"+userID); err != nil {
		return fmt.Errorf("lock %s pass: %w", kind, err)
	}
	if err := fn(&ledgerTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s pass: %w", kind, err)
	}
	return nil
}

type ledgerTx struct {
	tx pgx.Tx
}

func (l *ledgerTx) ListBillsForUser(ctx context.Context, userID string) ([]models.Bill, error) {
	rows, err := l.tx.Query(ctx, `
		SELECT id, user_id, name, amount, period_type, period_frequency, start_date, created_at, updated_at
		FROM bills
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	var out []models.Bill
	for rows.Next() {
		var b models.Bill
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.Name, &b.Amount,
			&b.PeriodType, &b.PeriodFrequency, &b.StartDate,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (l *ledgerTx) DepositExists(ctx context.Context, billID string, since time.Time) (bool, error) {
	var exists bool
	err := l.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM deposits WHERE bill_id = $1 AND deposit_date >= $2)`,
		billID, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check deposits: %w", err)
	}
	return exists, nil
}

func (l *ledgerTx) WithdrawalExists(ctx context.Context, billID string, since time.Time) (bool, error) {
	var exists bool
	err := l.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM withdrawals WHERE bill_id = $1 AND withdrawal_date >= $2)`,
		billID, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check withdrawals: %w", err)
	}
	return exists, nil
}

func (l *ledgerTx) CheckAndRecordDeposit(ctx context.Context, billID string, periodStart time.Time, amount int64, at time.Time) (*models.Deposit, bool, error) {
	deposit := &models.Deposit{
		ID:          utils.GenerateID("dep"),
		BillID:      billID,
		Amount:      amount,
		DepositDate: at,
	}
	tag, err := l.tx.Exec(ctx, `
		INSERT INTO deposits (id, bill_id, amount, deposit_date)
		SELECT $1::text, $2::text, $3::bigint, $4::timestamptz
		WHERE NOT EXISTS (
			SELECT 1 FROM deposits WHERE bill_id = $2::text AND deposit_date >= $5::timestamptz
		)
	`, deposit.ID, billID, amount, at, periodStart)
	if err != nil {
		return nil, false, fmt.Errorf("failed to record deposit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, false, nil
	}
	return deposit, true, nil
}

func (l *ledgerTx) CheckAndRecordWithdrawal(ctx context.Context, billID string, occurrence time.Time, success bool, at time.Time) (*models.Withdrawal, bool, error) {
	withdrawal := &models.Withdrawal{
		ID:             utils.GenerateID("wdr"),
		BillID:         billID,
		WithdrawalDate: at,
		Success:        success,
	}
	tag, err := l.tx.Exec(ctx, `
		INSERT INTO withdrawals (id, bill_id, withdrawal_date, success)
		SELECT $1::text, $2::text, $3::timestamptz, $4::boolean
		WHERE NOT EXISTS (
			SELECT 1 FROM withdrawals WHERE bill_id = $2::text AND withdrawal_date >= $5::timestamptz
		)
	`, withdrawal.ID, billID, at, success, occurrence)
	if err != nil {
		return nil, false, fmt.Errorf("failed to record withdrawal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, false, nil
	}
	return withdrawal, true, nil
}
