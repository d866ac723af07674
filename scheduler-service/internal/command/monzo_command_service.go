package command

import (
	"context"
	"fmt"
	"log"

	"github.com/joelsaunders/bilbo/scheduler-service/internal/monzo"
	"github.com/joelsaunders/bilbo/shared/billing"
	"github.com/joelsaunders/bilbo/shared/cqrs"
	"github.com/joelsaunders/bilbo/shared/events"
	"github.com/joelsaunders/bilbo/shared/models"
)

// MonzoUsers is the slice of the user store the login flow needs.
type MonzoUsers interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByState(ctx context.Context, state string) (*models.User, error)
	StoreMonzoLogin(ctx context.Context, userID, state, access, refresh string) error
}

type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code string) (*monzo.Token, error)
}

type CredentialRefresher interface {
	Refresh(ctx context.Context, user *models.User) error
}

// MonzoCommandService completes the OAuth login and rotates credentials.
type MonzoCommandService struct {
	users     MonzoUsers
	exchanger CodeExchanger
	refresher CredentialRefresher
	publisher events.Emitter
}

func NewMonzoCommandService(users MonzoUsers, exchanger CodeExchanger, refresher CredentialRefresher, publisher events.Emitter) *MonzoCommandService {
	return &MonzoCommandService{
		users:     users,
		exchanger: exchanger,
		refresher: refresher,
		publisher: publisher,
	}
}

// CompleteMonzoLogin trades the authorization code for a token pair and
// stores it against the user that requested the login URL.
func (s *MonzoCommandService) CompleteMonzoLogin(cmd cqrs.CompleteMonzoLoginCommand) error {
	if cmd.State == "" || cmd.Code == "" {
		return billing.ErrInvalidState
	}
	ctx := context.Background()

	user, err := s.users.GetUserByState(ctx, cmd.State)
	if err != nil {
		return err
	}
	token, err := s.exchanger.ExchangeCode(ctx, cmd.Code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := s.users.StoreMonzoLogin(ctx, user.ID, cmd.State, token.AccessToken, token.RefreshToken); err != nil {
		return err
	}
	log.Printf("User %s connected Monzo", user.ID)

	user.MonzoAccessToken = &token.AccessToken
	user.MonzoRefreshToken = &token.RefreshToken
	s.publishUserUpdated(ctx, user)
	return nil
}

// RefreshMonzo rotates the user's token pair immediately.
func (s *MonzoCommandService) RefreshMonzo(cmd cqrs.RefreshMonzoCommand) error {
	ctx := context.Background()
	user, err := s.users.GetUser(ctx, cmd.UserID)
	if err != nil {
		return err
	}
	if user.MonzoRefreshToken == nil || *user.MonzoRefreshToken == "" {
		return fmt.Errorf("%w: %s has not connected monzo", billing.ErrUserNotReady, user.ID)
	}
	if err := s.refresher.Refresh(ctx, user); err != nil {
		return fmt.Errorf("refresh monzo credentials: %w", err)
	}
	return nil
}

func (s *MonzoCommandService) publishUserUpdated(ctx context.Context, user *models.User) {
	event := events.UserUpdatedEvent{UserID: user.ID, Ready: user.IsReady()}
	if user.PotDepositDay != nil {
		event.PotDepositDay = *user.PotDepositDay
	}
	if err := s.publisher.Publish(ctx, events.UserUpdated, event); err != nil {
		log.Printf("Failed to publish user updated event: %v", err)
	}
}
