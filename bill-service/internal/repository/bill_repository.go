package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joelsaunders/bilbo/shared/billing"
	"github.com/joelsaunders/bilbo/shared/models"
	"github.com/lib/pq"
)

var ErrBillNameTaken = errors.New("bill name already exists")

// BillWriteRepository handles all state-mutating operations for bills.
// It operates exclusively against the PostgreSQL write store (source of truth).
type BillWriteRepository struct {
	db *sql.DB
}

func NewBillWriteRepository(db *sql.DB) *BillWriteRepository {
	return &BillWriteRepository{db: db}
}

func (r *BillWriteRepository) Create(ctx context.Context, bill *models.Bill) error {
	query := `
		INSERT INTO bills (id, user_id, name, amount, period_type, period_frequency, start_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		bill.ID, bill.UserID, bill.Name, bill.Amount,
		bill.PeriodType, bill.PeriodFrequency, bill.StartDate,
		bill.CreatedAt, bill.UpdatedAt,
	)
	if err != nil {
		return translate(err, "failed to create bill")
	}
	return nil
}

// GetByID fetches the full write model including UserID for ownership checks.
func (r *BillWriteRepository) GetByID(ctx context.Context, id string) (*models.Bill, error) {
	query := `
		SELECT id, user_id, name, amount, period_type, period_frequency, start_date, created_at, updated_at
		FROM bills
		WHERE id = $1 AND deleted_at IS NULL
	`
	var bill models.Bill
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&bill.ID, &bill.UserID, &bill.Name, &bill.Amount,
		&bill.PeriodType, &bill.PeriodFrequency, &bill.StartDate,
		&bill.CreatedAt, &bill.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, billing.ErrBillNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	return &bill, nil
}

func (r *BillWriteRepository) Update(ctx context.Context, bill *models.Bill) error {
	query := `
		UPDATE bills
		SET name = $3, amount = $4, period_type = $5, period_frequency = $6, start_date = $7, updated_at = $8
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		bill.ID, bill.UserID, bill.Name, bill.Amount,
		bill.PeriodType, bill.PeriodFrequency, bill.StartDate, bill.UpdatedAt,
	)
	if err != nil {
		return translate(err, "failed to update bill")
	}
	return expectOneRow(result)
}

// Delete soft-deletes a bill scoped to its owner; ledger rows keep referencing it.
func (r *BillWriteRepository) Delete(ctx context.Context, id, userID string) error {
	query := `UPDATE bills SET deleted_at = NOW() WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete bill: %w", err)
	}
	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return billing.ErrBillNotFound
	}
	return nil
}

func translate(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return ErrBillNameTaken
		case "23503":
			return billing.ErrUserNotFound
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
