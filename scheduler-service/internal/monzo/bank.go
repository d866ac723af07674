package monzo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/joelsaunders/bilbo/shared/billing"
	"github.com/joelsaunders/bilbo/shared/models"
)

// TokenStore persists a user's Monzo credentials.
type TokenStore interface {
	LoadTokens(ctx context.Context, userID string) (access, refresh string, err error)
	UpdateTokens(ctx context.Context, userID, access, refresh string) error
}

// Bank runs API calls on behalf of a user. A call rejected with
// ErrAuthExpired is retried once after refreshing the user's credentials.
type Bank struct {
	client *Client
	tokens TokenStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewBank(client *Client, tokens TokenStore) *Bank {
	return &Bank{client: client, tokens: tokens, locks: make(map[string]*sync.Mutex)}
}

// TransferIntoSavings moves amount pence from the user's main account into their pot.
func (b *Bank) TransferIntoSavings(ctx context.Context, user *models.User, amount int64, dedupeID string) error {
	if user.PotID == nil || user.MainAccountID == nil {
		return fmt.Errorf("%w: %s", billing.ErrUserNotReady, user.ID)
	}
	return b.withRefresh(ctx, user, func(token string) error {
		return b.client.Deposit(ctx, token, *user.PotID, *user.MainAccountID, amount, dedupeID)
	})
}

// TransferOutOfSavings moves amount pence from the user's pot back to their main account.
func (b *Bank) TransferOutOfSavings(ctx context.Context, user *models.User, amount int64, dedupeID string) error {
	if user.PotID == nil || user.MainAccountID == nil {
		return fmt.Errorf("%w: %s", billing.ErrUserNotReady, user.ID)
	}
	return b.withRefresh(ctx, user, func(token string) error {
		return b.client.Withdraw(ctx, token, *user.PotID, *user.MainAccountID, amount, dedupeID)
	})
}

func (b *Bank) PostFeedItem(ctx context.Context, user *models.User, title, body string) error {
	if user.MainAccountID == nil {
		return fmt.Errorf("%w: %s has no main account", billing.ErrUserNotReady, user.ID)
	}
	return b.withRefresh(ctx, user, func(token string) error {
		return b.client.PostFeedItem(ctx, token, *user.MainAccountID, title, body)
	})
}

func (b *Bank) ListAccounts(ctx context.Context, user *models.User) ([]Account, error) {
	var accounts []Account
	err := b.withRefresh(ctx, user, func(token string) error {
		var err error
		accounts, err = b.client.ListAccounts(ctx, token)
		return err
	})
	return accounts, err
}

func (b *Bank) ListPots(ctx context.Context, user *models.User, accountID string) ([]Pot, error) {
	var pots []Pot
	err := b.withRefresh(ctx, user, func(token string) error {
		var err error
		pots, err = b.client.ListPots(ctx, token, accountID)
		return err
	})
	return pots, err
}

// Refresh unconditionally rotates the user's credentials.
func (b *Bank) Refresh(ctx context.Context, user *models.User) error {
	_, err := b.refresh(ctx, user.ID, "")
	return err
}

func (b *Bank) withRefresh(ctx context.Context, user *models.User, call func(token string) error) error {
	if user.MonzoAccessToken == nil {
		return fmt.Errorf("%w: %s has not connected monzo", billing.ErrUserNotReady, user.ID)
	}
	token := *user.MonzoAccessToken
	err := call(token)
	if !errors.Is(err, ErrAuthExpired) {
		return err
	}

	log.Printf("Monzo token for user %s expired, refreshing", user.ID)
	token, err = b.refresh(ctx, user.ID, token)
	if err != nil {
		return fmt.Errorf("refresh credentials: %w", err)
	}
	return call(token)
}

// refresh rotates the stored token pair unless another caller already did so
// since stale was handed out. Refresh tokens are single use, so concurrent
// refreshes for one user are serialised.
func (b *Bank) refresh(ctx context.Context, userID, stale string) (string, error) {
	lock := b.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	access, refresh, err := b.tokens.LoadTokens(ctx, userID)
	if err != nil {
		return "", err
	}
	if stale != "" && access != "" && access != stale {
		return access, nil
	}
	if refresh == "" {
		return "", fmt.Errorf("%w: %s has no refresh token", ErrAuthExpired, userID)
	}

	token, err := b.client.RefreshToken(ctx, refresh)
	if err != nil {
		return "", err
	}
	if err := b.tokens.UpdateTokens(ctx, userID, token.AccessToken, token.RefreshToken); err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

func (b *Bank) userLock(userID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock, ok := b.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		b.locks[userID] = lock
	}
	return lock
}
