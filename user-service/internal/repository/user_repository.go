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

var ErrEmailTaken = errors.New("email already exists")

// UserWriteRepository handles all state-mutating operations for users.
// It operates exclusively against the PostgreSQL write store (source of truth).
type UserWriteRepository struct {
	db *sql.DB
}

func NewUserWriteRepository(db *sql.DB) *UserWriteRepository {
	return &UserWriteRepository{db: db}
}

func (r *UserWriteRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, active, whitelisted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Active, user.Whitelisted,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID fetches the full write model, Monzo credentials included.
func (r *UserWriteRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, monzo_access_token, monzo_refresh_token, monzo_state,
			   main_account_id, pot_id, pot_deposit_day, active, whitelisted, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	user, err := ScanUser(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, billing.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateSettings persists the banking-integration settings of a user.
func (r *UserWriteRepository) UpdateSettings(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET main_account_id = $2, pot_id = $3, pot_deposit_day = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		user.ID, user.MainAccountID, user.PotID, user.PotDepositDay, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return expectOneRow(result)
}

// SetMonzoState stores the OAuth state token the bank echoes back to the
// login callback.
func (r *UserWriteRepository) SetMonzoState(ctx context.Context, userID, state string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET monzo_state = $2, updated_at = NOW() WHERE id = $1`,
		userID, state,
	)
	if err != nil {
		return fmt.Errorf("failed to store monzo state: %w", err)
	}
	return expectOneRow(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// ScanUser reads a row selected with the column order used by GetByID.
func ScanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var access, refresh, state, mainAccount, pot sql.NullString
	var depositDay sql.NullInt32
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &access, &refresh, &state,
		&mainAccount, &pot, &depositDay, &user.Active, &user.Whitelisted,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.MonzoAccessToken = nullable(access)
	user.MonzoRefreshToken = nullable(refresh)
	user.MonzoState = nullable(state)
	user.MainAccountID = nullable(mainAccount)
	user.PotID = nullable(pot)
	if depositDay.Valid {
		day := int(depositDay.Int32)
		user.PotDepositDay = &day
	}
	return &user, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return billing.ErrUserNotFound
	}
	return nil
}
