package query

import (
	"context"
	"time"

	"github.com/joelsaunders/bilbo/bill-service/internal/repository"
	"github.com/joelsaunders/bilbo/shared/billing"
	"github.com/joelsaunders/bilbo/shared/cqrs"
	"github.com/joelsaunders/bilbo/shared/models"
)

// BillQueryService serves bill reads, due listings and ledger history.
// Ownership is checked on every single-bill read.
type BillQueryService struct {
	readRepo   *repository.BillReadRepository
	ledgerRepo *repository.LedgerReadRepository
	location   *time.Location
}

func NewBillQueryService(
	readRepo *repository.BillReadRepository,
	ledgerRepo *repository.LedgerReadRepository,
	location *time.Location,
) *BillQueryService {
	return &BillQueryService{readRepo: readRepo, ledgerRepo: ledgerRepo, location: location}
}

func (s *BillQueryService) GetBill(q cqrs.GetBillQuery) (*models.BillView, error) {
	view, err := s.readRepo.GetByID(context.Background(), q.BillID)
	if err != nil {
		return nil, err
	}
	if view.UserID != q.RequestingUserID {
		return nil, billing.ErrForbidden
	}
	return view, nil
}

func (s *BillQueryService) ListBills(q cqrs.ListBillsQuery) ([]models.BillView, error) {
	return s.readRepo.ListByUserID(context.Background(), q.UserID)
}

// DueDeposits lists the user's bills still needing a deposit this period.
// Summaries for the current time are cached until a ledger or user event
// invalidates them or the period ends.
func (s *BillQueryService) DueDeposits(q cqrs.DueBillsQuery) (*models.DueSummaryView, error) {
	ctx := context.Background()
	live := q.Now.IsZero()
	if live {
		if cached, ok := s.readRepo.CachedDue(ctx, q.UserID, "deposit"); ok {
			return cached, nil
		}
	}
	user, err := s.ledgerRepo.GetUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	now := s.now(q)
	period, dues, err := billing.DueDeposits(ctx, s.ledgerRepo, user, now)
	if err != nil {
		return nil, err
	}
	summary := &models.DueSummaryView{
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Total:       billing.TotalDeposit(dues),
		Deposits:    make([]models.DueDepositView, 0, len(dues)),
	}
	for _, d := range dues {
		summary.Deposits = append(summary.Deposits, models.DueDepositView{
			Bill:        *repository.BillToView(&d.Bill),
			Occurrences: d.Occurrences,
			Amount:      d.Amount(),
		})
	}
	if live {
		// Deposit due-ness only moves at the period boundary.
		s.cacheDue(ctx, q.UserID, "deposit", summary, now, period.End)
	}
	return summary, nil
}

// DueWithdrawals lists the user's bills whose latest occurrence has passed
// without a withdrawal attempt.
func (s *BillQueryService) DueWithdrawals(q cqrs.DueBillsQuery) (*models.DueSummaryView, error) {
	ctx := context.Background()
	live := q.Now.IsZero()
	if live {
		if cached, ok := s.readRepo.CachedDue(ctx, q.UserID, "withdrawal"); ok {
			return cached, nil
		}
	}
	user, err := s.ledgerRepo.GetUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	now := s.now(q)
	period, dues, err := billing.DueWithdrawals(ctx, s.ledgerRepo, user, now)
	if err != nil {
		return nil, err
	}
	summary := &models.DueSummaryView{
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Total:       billing.TotalWithdrawal(dues),
		Withdrawals: make([]models.DueWithdrawalView, 0, len(dues)),
	}
	for _, d := range dues {
		summary.Withdrawals = append(summary.Withdrawals, models.DueWithdrawalView{
			Bill:       *repository.BillToView(&d.Bill),
			Occurrence: d.Occurrence,
		})
	}
	if live {
		changesAt, err := billing.NextChange(ctx, s.ledgerRepo, user, now)
		if err != nil {
			return nil, err
		}
		s.cacheDue(ctx, q.UserID, "withdrawal", summary, now, changesAt)
	}
	return summary, nil
}

func (s *BillQueryService) ListDeposits(q cqrs.ListLedgerQuery) ([]models.Deposit, error) {
	if _, err := s.GetBill(cqrs.GetBillQuery{BillID: q.BillID, RequestingUserID: q.RequestingUserID}); err != nil {
		return nil, err
	}
	return s.ledgerRepo.ListDeposits(context.Background(), q.BillID)
}

func (s *BillQueryService) ListWithdrawals(q cqrs.ListLedgerQuery) ([]models.Withdrawal, error) {
	if _, err := s.GetBill(cqrs.GetBillQuery{BillID: q.BillID, RequestingUserID: q.RequestingUserID}); err != nil {
		return nil, err
	}
	return s.ledgerRepo.ListWithdrawals(context.Background(), q.BillID)
}

// cacheDue stores a live summary until the next moment it could go stale.
func (s *BillQueryService) cacheDue(ctx context.Context, userID, kind string, summary *models.DueSummaryView, now, changesAt time.Time) {
	if ttl := dueCacheTTL(now, changesAt); ttl > 0 {
		s.readRepo.CacheDue(ctx, userID, kind, summary, ttl)
	}
}

// dueCacheTTL caps repository.DueViewTTL at the time left until changesAt.
// Anything under a second is not worth caching.
func dueCacheTTL(now, changesAt time.Time) time.Duration {
	ttl := changesAt.Sub(now)
	if ttl > repository.DueViewTTL {
		ttl = repository.DueViewTTL
	}
	if ttl < time.Second {
		return 0
	}
	return ttl
}

func (s *BillQueryService) now(q cqrs.DueBillsQuery) time.Time {
	if !q.Now.IsZero() {
		return q.Now.In(s.location)
	}
	return time.Now().In(s.location)
}
