package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joelsaunders/bilbo/shared/billing"
	"github.com/joelsaunders/bilbo/shared/models"
)

const userColumns = `id, email, password_hash, monzo_access_token, monzo_refresh_token, monzo_state,
	main_account_id, pot_id, pot_deposit_day, active, whitelisted, created_at, updated_at`

// UserStore holds the banking-integration side of the users table.
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash,
		&u.MonzoAccessToken, &u.MonzoRefreshToken, &u.MonzoState,
		&u.MainAccountID, &u.PotID, &u.PotDepositDay,
		&u.Active, &u.Whitelisted, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListReadyUsers returns active users with every field the scheduler needs.
func (s *UserStore) ListReadyUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE active
		  AND COALESCE(main_account_id, '') <> ''
		  AND COALESCE(pot_id, '') <> ''
		  AND COALESCE(monzo_access_token, '') <> ''
		  AND COALESCE(monzo_refresh_token, '') <> ''
		  AND pot_deposit_day IS NOT NULL
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ready users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *UserStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, billing.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByState finds the user that started the OAuth flow with state.
func (s *UserStore) GetUserByState(ctx context.Context, state string) (*models.User, error) {
	if state == "" {
		return nil, billing.ErrInvalidState
	}
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE monzo_state = $1`, state))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, billing.ErrInvalidState
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by state: %w", err)
	}
	return u, nil
}

// StoreMonzoLogin saves the tokens from a completed login and consumes the
// OAuth state so it cannot be replayed.
func (s *UserStore) StoreMonzoLogin(ctx context.Context, userID, state, access, refresh string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET monzo_access_token = $3, monzo_refresh_token = $4, monzo_state = NULL, updated_at = now()
		WHERE id = $1 AND monzo_state = $2
	`, userID, state, access, refresh)
	if err != nil {
		return fmt.Errorf("failed to store monzo login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrInvalidState
	}
	return nil
}

// LoadTokens reads the user's current token pair.
func (s *UserStore) LoadTokens(ctx context.Context, userID string) (string, string, error) {
	var access, refresh *string
	err := s.pool.QueryRow(ctx,
		`SELECT monzo_access_token, monzo_refresh_token FROM users WHERE id = $1`, userID,
	).Scan(&access, &refresh)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", billing.ErrUserNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to load tokens: %w", err)
	}
	return deref(access), deref(refresh), nil
}

func (s *UserStore) UpdateTokens(ctx context.Context, userID, access, refresh string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET monzo_access_token = $2, monzo_refresh_token = $3, updated_at = now()
		WHERE id = $1
	`, userID, access, refresh)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrUserNotFound
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
