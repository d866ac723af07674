package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/joelsaunders/bilbo/shared/billing"
	"github.com/joelsaunders/bilbo/shared/models"
	sharedredis "github.com/joelsaunders/bilbo/shared/redis"
	"github.com/joelsaunders/bilbo/shared/utils"
	goredis "github.com/redis/go-redis/v9"
)

// DueViewTTL bounds how long a due listing is cached. Callers shorten it
// further when an occurrence passes sooner.
const DueViewTTL = time.Minute

// BillReadRepository handles all read operations for bills.
// It treats Redis as the primary read store and falls back to PostgreSQL,
// warming the cache on every cold read.
type BillReadRepository struct {
	db        *sql.DB
	bills     *sharedredis.ViewCache[models.BillView]
	userBills *sharedredis.ViewCache[[]models.BillView]
	dues      *sharedredis.ViewCache[models.DueSummaryView]
}

func NewBillReadRepository(db *sql.DB, redisClient *goredis.Client) *BillReadRepository {
	return &BillReadRepository{
		db:        db,
		bills:     sharedredis.NewViewCache[models.BillView](redisClient, "bill:view:", 0),
		userBills: sharedredis.NewViewCache[[]models.BillView](redisClient, "bill:user:", 0),
		dues:      sharedredis.NewViewCache[models.DueSummaryView](redisClient, "bill:due:", DueViewTTL),
	}
}

// BillToView converts the write model to the read view model.
func BillToView(b *models.Bill) *models.BillView {
	return &models.BillView{
		ID:              b.ID,
		UserID:          b.UserID,
		Name:            b.Name,
		Amount:          b.Amount,
		AmountDisplay:   utils.FormatPence(b.Amount),
		PeriodType:      b.PeriodType,
		PeriodFrequency: b.PeriodFrequency,
		StartDate:       b.StartDate,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// GetByID returns a BillView, trying Redis first then PostgreSQL.
func (r *BillReadRepository) GetByID(ctx context.Context, id string) (*models.BillView, error) {
	if view, ok := r.bills.Get(ctx, id); ok {
		return view, nil
	}

	query := `
		SELECT id, user_id, name, amount, period_type, period_frequency, start_date, created_at, updated_at
		FROM bills
		WHERE id = $1 AND deleted_at IS NULL
	`
	var bill models.Bill
	pgErr := r.db.QueryRowContext(ctx, query, id).Scan(
		&bill.ID, &bill.UserID, &bill.Name, &bill.Amount,
		&bill.PeriodType, &bill.PeriodFrequency, &bill.StartDate,
		&bill.CreatedAt, &bill.UpdatedAt,
	)
	if pgErr == sql.ErrNoRows {
		return nil, billing.ErrBillNotFound
	}
	if pgErr != nil {
		return nil, fmt.Errorf("failed to get bill: %w", pgErr)
	}

	view := BillToView(&bill)
	r.CacheBillView(ctx, view)
	return view, nil
}

// ListByUserID returns all BillViews for the given user, oldest first.
func (r *BillReadRepository) ListByUserID(ctx context.Context, userID string) ([]models.BillView, error) {
	if views, ok := r.userBills.Get(ctx, userID); ok {
		return *views, nil
	}

	bills, err := listBills(ctx, r.db, userID)
	if err != nil {
		return nil, err
	}
	views := make([]models.BillView, 0, len(bills))
	for i := range bills {
		views = append(views, *BillToView(&bills[i]))
	}
	r.userBills.Set(ctx, userID, &views)
	return views, nil
}

// CacheBillView stores or refreshes the Redis read model for a bill.
func (r *BillReadRepository) CacheBillView(ctx context.Context, view *models.BillView) {
	r.bills.Set(ctx, view.ID, view)
}

// InvalidateBill removes a bill's view and every listing derived from its owner's bills.
func (r *BillReadRepository) InvalidateBill(ctx context.Context, billID, userID string) {
	r.bills.Delete(ctx, billID)
	r.InvalidateUser(ctx, userID)
}

// InvalidateUser drops the cached bill listing and due summaries of a user.
func (r *BillReadRepository) InvalidateUser(ctx context.Context, userID string) {
	r.userBills.Delete(ctx, userID)
	r.dues.Delete(ctx, dueKey(userID, "deposit"), dueKey(userID, "withdrawal"))
}

// CachedDue returns a cached due summary of the given kind.
func (r *BillReadRepository) CachedDue(ctx context.Context, userID, kind string) (*models.DueSummaryView, bool) {
	return r.dues.Get(ctx, dueKey(userID, kind))
}

// CacheDue stores a due summary of the given kind for ttl.
func (r *BillReadRepository) CacheDue(ctx context.Context, userID, kind string, view *models.DueSummaryView, ttl time.Duration) {
	r.dues.SetWithTTL(ctx, dueKey(userID, kind), view, ttl)
}

func dueKey(userID, kind string) string {
	return kind + ":" + userID
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listBills(ctx context.Context, q queryer, userID string) ([]models.Bill, error) {
	query := `
		SELECT id, user_id, name, amount, period_type, period_frequency, start_date, created_at, updated_at
		FROM bills
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at, id
	`
	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	var bills []models.Bill
	for rows.Next() {
		var bill models.Bill
		if err := rows.Scan(
			&bill.ID, &bill.UserID, &bill.Name, &bill.Amount,
			&bill.PeriodType, &bill.PeriodFrequency, &bill.StartDate,
			&bill.CreatedAt, &bill.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}
