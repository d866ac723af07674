package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/joelsaunders/bilbo/shared/billing"
	"github.com/joelsaunders/bilbo/shared/models"
	sharedredis "github.com/joelsaunders/bilbo/shared/redis"
	goredis "github.com/redis/go-redis/v9"
)

// UserReadRepository handles all read operations for users.
// It uses Redis as the primary read store, falling back to PostgreSQL on a miss.
type UserReadRepository struct {
	db    *sql.DB
	cache *sharedredis.ViewCache[models.UserView]
}

func NewUserReadRepository(db *sql.DB, redisClient *goredis.Client) *UserReadRepository {
	return &UserReadRepository{
		db:    db,
		cache: sharedredis.NewViewCache[models.UserView](redisClient, "user:view:", 0),
	}
}

// UserToView projects a user without credentials.
func UserToView(u *models.User) *models.UserView {
	view := &models.UserView{
		ID:             u.ID,
		Email:          u.Email,
		MonzoConnected: u.MonzoAccessToken != nil && *u.MonzoAccessToken != "",
		Ready:          u.IsReady(),
		Active:         u.Active,
		Whitelisted:    u.Whitelisted,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
	if u.MainAccountID != nil {
		view.MainAccountID = *u.MainAccountID
	}
	if u.PotID != nil {
		view.PotID = *u.PotID
	}
	if u.PotDepositDay != nil {
		view.PotDepositDay = *u.PotDepositDay
	}
	return view
}

// GetByID returns a UserView from Redis first, then PostgreSQL.
func (r *UserReadRepository) GetByID(ctx context.Context, id string) (*models.UserView, error) {
	if view, ok := r.cache.Get(ctx, id); ok {
		return view, nil
	}

	// Fallback: PostgreSQL
	query := `
		SELECT id, email, password_hash, monzo_access_token, monzo_refresh_token, monzo_state,
			   main_account_id, pot_id, pot_deposit_day, active, whitelisted, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	user, pgErr := ScanUser(r.db.QueryRowContext(ctx, query, id))
	if pgErr == sql.ErrNoRows {
		return nil, billing.ErrUserNotFound
	}
	if pgErr != nil {
		return nil, fmt.Errorf("failed to get user: %w", pgErr)
	}

	// Warm the cache
	view := UserToView(user)
	r.CacheUserView(ctx, view)
	return view, nil
}

// CacheUserView stores or refreshes the Redis read model for a user.
// Called by the command service after every mutation.
func (r *UserReadRepository) CacheUserView(ctx context.Context, view *models.UserView) {
	r.cache.Set(ctx, view.ID, view)
}

// InvalidateUserView drops the Redis read model so the next read reloads it.
func (r *UserReadRepository) InvalidateUserView(ctx context.Context, userID string) {
	r.cache.Delete(ctx, userID)
}
