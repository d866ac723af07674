package command

import (
	"context"
	"errors"
	"testing"

	"github.com/joelsaunders/bilbo/scheduler-service/internal/monzo"
	"github.com/joelsaunders/bilbo/shared/billing"
	"github.com/joelsaunders/bilbo/shared/cqrs"
	"github.com/joelsaunders/bilbo/shared/events"
	"github.com/joelsaunders/bilbo/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers struct {
	byState map[string]*models.User
	stored  map[string][2]string
}

func (s *stubUsers) GetUser(_ context.Context, userID string) (*models.User, error) {
	for _, u := range s.byState {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, billing.ErrUserNotFound
}

func (s *stubUsers) GetUserByState(_ context.Context, state string) (*models.User, error) {
	if u, ok := s.byState[state]; ok {
		return u, nil
	}
	return nil, billing.ErrInvalidState
}

func (s *stubUsers) StoreMonzoLogin(_ context.Context, userID, state, access, refresh string) error {
	if _, ok := s.byState[state]; !ok {
		return billing.ErrInvalidState
	}
	delete(s.byState, state)
	s.stored[userID] = [2]string{access, refresh}
	return nil
}

type stubExchanger struct {
	token *monzo.Token
	err   error
	codes []string
}

func (s *stubExchanger) ExchangeCode(_ context.Context, code string) (*monzo.Token, error) {
	s.codes = append(s.codes, code)
	return s.token, s.err
}

type stubRefresher struct{ calls int }

func (s *stubRefresher) Refresh(_ context.Context, _ *models.User) error {
	s.calls++
	return nil
}

type recordingEmitter struct{ events []any }

func (r *recordingEmitter) Publish(_ context.Context, _ string, data any) error {
	r.events = append(r.events, data)
	return nil
}

func TestCompleteMonzoLogin(t *testing.T) {
	users := &stubUsers{
		byState: map[string]*models.User{"st-1": {ID: "usr-001"}},
		stored:  map[string][2]string{},
	}
	exchanger := &stubExchanger{token: &monzo.Token{AccessToken: "acc", RefreshToken: "ref"}}
	emitter := &recordingEmitter{}
	svc := NewMonzoCommandService(users, exchanger, &stubRefresher{}, emitter)

	err := svc.CompleteMonzoLogin(cqrs.CompleteMonzoLoginCommand{State: "st-1", Code: "cd-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cd-1"}, exchanger.codes)
	assert.Equal(t, [2]string{"acc", "ref"}, users.stored["usr-001"])
	require.Len(t, emitter.events, 1)
	assert.Equal(t, "usr-001", emitter.events[0].(events.UserUpdatedEvent).UserID)

	err = svc.CompleteMonzoLogin(cqrs.CompleteMonzoLoginCommand{State: "st-1", Code: "cd-1"})
	assert.ErrorIs(t, err, billing.ErrInvalidState, "state is single use")
	assert.Len(t, exchanger.codes, 1)
}

func TestCompleteMonzoLoginExchangeFailure(t *testing.T) {
	users := &stubUsers{
		byState: map[string]*models.User{"st-1": {ID: "usr-001"}},
		stored:  map[string][2]string{},
	}
	exchanger := &stubExchanger{err: monzo.ErrTransferFailed}
	svc := NewMonzoCommandService(users, exchanger, &stubRefresher{}, &recordingEmitter{})

	err := svc.CompleteMonzoLogin(cqrs.CompleteMonzoLoginCommand{State: "st-1", Code: "bad"})
	assert.True(t, errors.Is(err, billing.ErrTransferFailure))
	assert.Empty(t, users.stored)
}

func TestRefreshMonzoRequiresConnection(t *testing.T) {
	refresh := "ref"
	users := &stubUsers{byState: map[string]*models.User{
		"a": {ID: "usr-connected", MonzoRefreshToken: &refresh},
		"b": {ID: "usr-new"},
	}}
	refresher := &stubRefresher{}
	svc := NewMonzoCommandService(users, &stubExchanger{}, refresher, &recordingEmitter{})

	require.NoError(t, svc.RefreshMonzo(cqrs.RefreshMonzoCommand{UserID: "usr-connected"}))
	assert.ErrorIs(t, svc.RefreshMonzo(cqrs.RefreshMonzoCommand{UserID: "usr-new"}), billing.ErrUserNotReady)
	assert.ErrorIs(t, svc.RefreshMonzo(cqrs.RefreshMonzoCommand{UserID: "usr-missing"}), billing.ErrUserNotFound)
	assert.Equal(t, 1, refresher.calls)
}
