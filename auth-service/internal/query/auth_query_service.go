package query

import (
	"context"
	"errors"
	"time"

	"github.com/joelsaunders/bilbo/shared/cqrs"
	"github.com/joelsaunders/bilbo/shared/middleware"
	"github.com/joelsaunders/bilbo/shared/models"
	"github.com/joelsaunders/bilbo/shared/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserInactive       = errors.New("user is inactive")
)

// UserFinder is the slice of the user store that authentication needs.
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AuthQueryService handles login and token refresh. There's no CommandService
// for auth because these operations don't mutate application state.
type AuthQueryService struct {
	users    UserFinder
	tokenTTL time.Duration
}

func NewAuthQueryService(users UserFinder, tokenTTL time.Duration) *AuthQueryService {
	return &AuthQueryService{users: users, tokenTTL: tokenTTL}
}

func (s *AuthQueryService) Login(cmd cqrs.LoginCommand) (string, error) {
	user, err := s.users.GetByEmail(context.Background(), cmd.Email)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if !utils.CheckPassword(cmd.Password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	if !user.Active {
		return "", ErrUserInactive
	}
	return middleware.GenerateToken(user.ID, user.Email, s.tokenTTL)
}

// RefreshToken reissues a token for a still-valid one, re-checking that the
// user has not been deactivated in the meantime.
func (s *AuthQueryService) RefreshToken(cmd cqrs.RefreshTokenCommand) (string, error) {
	claims, err := middleware.ParseToken(cmd.Token)
	if err != nil {
		return "", ErrInvalidToken
	}
	user, err := s.users.GetByID(context.Background(), claims.UserID)
	if err != nil {
		return "", ErrInvalidToken
	}
	if !user.Active {
		return "", ErrUserInactive
	}
	return middleware.GenerateToken(user.ID, user.Email, s.tokenTTL)
}
