package query

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joelsaunders/bilbo/shared/billing"
	"github.com/joelsaunders/bilbo/shared/cqrs"
	"github.com/joelsaunders/bilbo/shared/middleware"
	"github.com/joelsaunders/bilbo/shared/models"
	"github.com/joelsaunders/bilbo/shared/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret")
	os.Exit(m.Run())
}

type fakeUsers struct {
	users []*models.User
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, billing.ErrUserNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, billing.ErrUserNotFound
}

func newService(t *testing.T, active bool) (*AuthQueryService, *models.User) {
	t.Helper()
	hash, err := utils.HashPassword("securepass123")
	require.NoError(t, err)
	user := &models.User{ID: "usr-001", Email: "alice@example.com", PasswordHash: hash, Active: active}
	return NewAuthQueryService(&fakeUsers{users: []*models.User{user}}, time.Hour), user
}

func TestLoginIssuesTokenForUser(t *testing.T) {
	svc, _ := newService(t, true)

	token, err := svc.Login(cqrs.LoginCommand{Email: "alice@example.com", Password: "securepass123"})
	require.NoError(t, err)

	claims, err := middleware.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "usr-001", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestLoginRejections(t *testing.T) {
	svc, _ := newService(t, true)

	_, err := svc.Login(cqrs.LoginCommand{Email: "alice@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(cqrs.LoginCommand{Email: "nobody@example.com", Password: "securepass123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	inactive, _ := newService(t, false)
	_, err = inactive.Login(cqrs.LoginCommand{Email: "alice@example.com", Password: "securepass123"})
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestRefreshToken(t *testing.T) {
	svc, user := newService(t, true)
	token, err := svc.Login(cqrs.LoginCommand{Email: "alice@example.com", Password: "securepass123"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(cqrs.RefreshTokenCommand{Token: token})
	require.NoError(t, err)
	claims, err := middleware.ParseToken(refreshed)
	require.NoError(t, err)
	assert.Equal(t, "usr-001", claims.UserID)

	_, err = svc.RefreshToken(cqrs.RefreshTokenCommand{Token: "not.a.token"})
	assert.ErrorIs(t, err, ErrInvalidToken)

	user.Active = false
	_, err = svc.RefreshToken(cqrs.RefreshTokenCommand{Token: token})
	assert.ErrorIs(t, err, ErrUserInactive)
}
