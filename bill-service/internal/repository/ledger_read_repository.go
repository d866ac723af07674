package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/joelsaunders/bilbo/shared/billing"
	"github.com/joelsaunders/bilbo/shared/models"
)

// LedgerReadRepository reads deposits, withdrawals and the owner's billing
// settings. It satisfies billing.Ledger for the due views; these views are
// advisory, the scheduler re-evaluates under its own lock before writing.
type LedgerReadRepository struct {
	db *sql.DB
}

func NewLedgerReadRepository(db *sql.DB) *LedgerReadRepository {
	return &LedgerReadRepository{db: db}
}

var _ billing.Ledger = (*LedgerReadRepository)(nil)

func (r *LedgerReadRepository) ListBillsForUser(ctx context.Context, userID string) ([]models.Bill, error) {
	return listBills(ctx, r.db, userID)
}

func (r *LedgerReadRepository) DepositExists(ctx context.Context, billID string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM deposits WHERE bill_id = $1 AND deposit_date >= $2)`,
		billID, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check deposits: %w", err)
	}
	return exists, nil
}

func (r *LedgerReadRepository) WithdrawalExists(ctx context.Context, billID string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM withdrawals WHERE bill_id = $1 AND withdrawal_date >= $2)`,
		billID, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check withdrawals: %w", err)
	}
	return exists, nil
}

// GetUser loads the fields of a user the due evaluators depend on.
func (r *LedgerReadRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	query := `
		SELECT id, email, main_account_id, pot_id, pot_deposit_day, active, whitelisted
		FROM users
		WHERE id = $1
	`
	var user models.User
	var mainAccount, pot sql.NullString
	var depositDay sql.NullInt32
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID, &user.Email, &mainAccount, &pot, &depositDay, &user.Active, &user.Whitelisted,
	)
	if err == sql.ErrNoRows {
		return nil, billing.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if mainAccount.Valid {
		user.MainAccountID = &mainAccount.String
	}
	if pot.Valid {
		user.PotID = &pot.String
	}
	if depositDay.Valid {
		day := int(depositDay.Int32)
		user.PotDepositDay = &day
	}
	return &user, nil
}

// ListDeposits returns the deposits recorded for a bill, newest first.
func (r *LedgerReadRepository) ListDeposits(ctx context.Context, billID string) ([]models.Deposit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, bill_id, amount, deposit_date
		FROM deposits
		WHERE bill_id = $1
		ORDER BY deposit_date DESC
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	defer rows.Close()

	deposits := []models.Deposit{}
	for rows.Next() {
		var d models.Deposit
		if err := rows.Scan(&d.ID, &d.BillID, &d.Amount, &d.DepositDate); err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}

// ListWithdrawals returns the withdrawal attempts recorded for a bill, newest first.
func (r *LedgerReadRepository) ListWithdrawals(ctx context.Context, billID string) ([]models.Withdrawal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, bill_id, withdrawal_date, success
		FROM withdrawals
		WHERE bill_id = $1
		ORDER BY withdrawal_date DESC
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer rows.Close()

	withdrawals := []models.Withdrawal{}
	for rows.Next() {
		var w models.Withdrawal
		if err := rows.Scan(&w.ID, &w.BillID, &w.WithdrawalDate, &w.Success); err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}
