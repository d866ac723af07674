package query

import (
	"context"
	"fmt"

	"github.com/joelsaunders/bilbo/scheduler-service/internal/monzo"
	"github.com/joelsaunders/bilbo/shared/billing"
	"github.com/joelsaunders/bilbo/shared/cqrs"
	"github.com/joelsaunders/bilbo/shared/models"
)

type UserGetter interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

type AccountLister interface {
	ListAccounts(ctx context.Context, user *models.User) ([]monzo.Account, error)
	ListPots(ctx context.Context, user *models.User, accountID string) ([]monzo.Pot, error)
}

// MonzoQueryService lists what the user's Monzo token can see, so the
// client can pick a main account and pot.
type MonzoQueryService struct {
	users UserGetter
	bank  AccountLister
}

func NewMonzoQueryService(users UserGetter, bank AccountLister) *MonzoQueryService {
	return &MonzoQueryService{users: users, bank: bank}
}

func (s *MonzoQueryService) ListAccounts(q cqrs.ListMonzoAccountsQuery) ([]monzo.Account, error) {
	ctx := context.Background()
	user, err := s.users.GetUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	return s.bank.ListAccounts(ctx, user)
}

// ListPots returns the live pots of the user's main account.
func (s *MonzoQueryService) ListPots(q cqrs.ListMonzoPotsQuery) ([]monzo.Pot, error) {
	ctx := context.Background()
	user, err := s.users.GetUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	if user.MainAccountID == nil || *user.MainAccountID == "" {
		return nil, fmt.Errorf("%w: %s has no main account", billing.ErrUserNotReady, user.ID)
	}
	pots, err := s.bank.ListPots(ctx, user, *user.MainAccountID)
	if err != nil {
		return nil, err
	}
	live := pots[:0]
	for _, p := range pots {
		if !p.Deleted {
			live = append(live, p)
		}
	}
	return live, nil
}
