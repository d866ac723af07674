package command

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/joelsaunders/bilbo/shared/billing"
	"github.com/joelsaunders/bilbo/shared/cqrs"
	"github.com/joelsaunders/bilbo/shared/events"
	"github.com/joelsaunders/bilbo/shared/models"
	"github.com/joelsaunders/bilbo/shared/utils"
	"github.com/joelsaunders/bilbo/user-service/internal/repository"
)

// MonzoAuthConfig describes where users are sent to authorise bilbo.
type MonzoAuthConfig struct {
	AuthURL     string
	ClientID    string
	RedirectURL string
}

// LoginURL builds the bank's authorisation URL for the given state token.
func (c MonzoAuthConfig) LoginURL(state string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", c.ClientID)
	params.Set("redirect_uri", c.RedirectURL)
	params.Set("state", state)
	return c.AuthURL + "?" + params.Encode()
}

// UserCommandService writes user state to PostgreSQL and keeps the Redis
// read model up to date.
type UserCommandService struct {
	writeRepo         *repository.UserWriteRepository
	readRepo          *repository.UserReadRepository
	publisher         events.Emitter
	monzo             MonzoAuthConfig
	whitelistNewUsers bool
}

func NewUserCommandService(
	writeRepo *repository.UserWriteRepository,
	readRepo *repository.UserReadRepository,
	publisher events.Emitter,
	monzo MonzoAuthConfig,
	whitelistNewUsers bool,
) *UserCommandService {
	return &UserCommandService{
		writeRepo:         writeRepo,
		readRepo:          readRepo,
		publisher:         publisher,
		monzo:             monzo,
		whitelistNewUsers: whitelistNewUsers,
	}
}

func (s *UserCommandService) CreateUser(cmd cqrs.CreateUserCommand) (*models.UserView, error) {
	passwordHash, err := utils.HashPassword(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		ID:           utils.GenerateID("usr"),
		Email:        cmd.Email,
		PasswordHash: passwordHash,
		Active:       true,
		Whitelisted:  s.whitelistNewUsers,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	ctx := context.Background()
	if err := s.writeRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	view := repository.UserToView(user)
	s.readRepo.CacheUserView(ctx, view)
	return view, nil
}

// UpdateSettings changes the pot, main account or deposit day. The
// scheduler and the due views pick the change up through user.updated.
func (s *UserCommandService) UpdateSettings(cmd cqrs.UpdateUserSettingsCommand) (*models.UserView, error) {
	if cmd.PotDepositDay != nil && (*cmd.PotDepositDay < 1 || *cmd.PotDepositDay > 31) {
		return nil, billing.ErrInvalidAnchorDay
	}
	ctx := context.Background()
	user, err := s.writeRepo.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if cmd.MainAccountID != nil {
		user.MainAccountID = cmd.MainAccountID
	}
	if cmd.PotID != nil {
		user.PotID = cmd.PotID
	}
	if cmd.PotDepositDay != nil {
		user.PotDepositDay = cmd.PotDepositDay
	}
	user.UpdatedAt = time.Now().UTC()
	if err := s.writeRepo.UpdateSettings(ctx, user); err != nil {
		return nil, err
	}
	view := repository.UserToView(user)
	s.readRepo.CacheUserView(ctx, view)
	if err := s.publisher.Publish(ctx, events.UserUpdated, events.UserUpdatedEvent{
		UserID:        user.ID,
		PotDepositDay: view.PotDepositDay,
		Ready:         view.Ready,
	}); err != nil {
		log.Printf("Failed to publish user.updated event: %v", err)
	}
	return view, nil
}

// BeginMonzoLogin stores a fresh state token and returns the URL the user
// must visit to grant access. Only whitelisted users may connect.
func (s *UserCommandService) BeginMonzoLogin(cmd cqrs.BeginMonzoLoginCommand) (string, error) {
	ctx := context.Background()
	user, err := s.writeRepo.GetByID(ctx, cmd.UserID)
	if err != nil {
		return "", err
	}
	if !user.Whitelisted {
		return "", billing.ErrForbidden
	}
	state := uuid.NewString()
	if err := s.writeRepo.SetMonzoState(ctx, user.ID, state); err != nil {
		return "", err
	}
	return s.monzo.LoginURL(state), nil
}

// HandleUserEvent drops the cached view when another service changes a
// user, e.g. after the Monzo login callback stores new credentials.
func (s *UserCommandService) HandleUserEvent(ctx context.Context, event events.Event) error {
	if event.Type != events.UserUpdated {
		return nil
	}
	var data events.UserUpdatedEvent
	if err := events.Decode(event, &data); err != nil {
		return err
	}
	s.readRepo.InvalidateUserView(ctx, data.UserID)
	return nil
}
