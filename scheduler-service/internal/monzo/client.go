// Package monzo talks to the Monzo API: pot transfers, feed items, account
// listings and the OAuth token endpoint.
package monzo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joelsaunders/bilbo/shared/billing"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://api.monzo.com"

	dialTimeout  = 5 * time.Second
	dialAttempts = 5

	feedImageURL = "https://media.ntslive.co.uk/crop/430x430/7be5a6a5-dd54-4311-8428-f9cb8d661414_1530144000.png"
)

var (
	// ErrAuthExpired is returned when the API rejects the access token.
	ErrAuthExpired = errors.New("monzo access token expired")
	// ErrTransferFailed covers every other non-2xx answer and transport failures.
	ErrTransferFailed = fmt.Errorf("monzo request failed: %w", billing.ErrTransferFailure)
)

// Account is a Monzo account as returned by GET /accounts.
type Account struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Created     time.Time `json:"created"`
}

// Pot is a savings pot as returned by GET /pots.
type Pot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
	Deleted  bool   `json:"deleted"`
}

// Token is the OAuth token endpoint response.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	UserID       string `json:"user_id"`
	ClientID     string `json:"client_id"`
}

// Config configures a Client.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	HTTPClient   *http.Client
}

// Client is a thin, token-per-call wrapper over the Monzo HTTP API. It never
// refreshes credentials itself; see Bank for that.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	redirectURL  string
	httpClient   *http.Client
}

func NewClient(config Config) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		clientID:     config.ClientID,
		clientSecret: config.ClientSecret,
		redirectURL:  config.RedirectURL,
		httpClient:   httpClient,
	}
}

// NewHTTPClient returns a client whose dialer gives up on a connection
// attempt after five seconds and tries up to five times.
func NewHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = retryingDial(dialAttempts, dialTimeout)
	return &http.Client{Transport: transport}
}

func retryingDial(attempts int, timeout time.Duration) func(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		var lastErr error
		for i := 0; i < attempts; i++ {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err == nil {
				return conn, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		}
		return nil, lastErr
	}
}

// Deposit moves amount pence from the source account into the pot.
func (c *Client) Deposit(ctx context.Context, accessToken, potID, sourceAccountID string, amount int64, dedupeID string) error {
	form := url.Values{
		"source_account_id": {sourceAccountID},
		"amount":            {strconv.FormatInt(amount, 10)},
		"dedupe_id":         {dedupeID},
	}
	return c.do(ctx, http.MethodPut, "/pots/"+url.PathEscape(potID)+"/deposit", accessToken, form, nil)
}

// Withdraw moves amount pence out of the pot into the destination account.
func (c *Client) Withdraw(ctx context.Context, accessToken, potID, destinationAccountID string, amount int64, dedupeID string) error {
	form := url.Values{
		"destination_account_id": {destinationAccountID},
		"amount":                 {strconv.FormatInt(amount, 10)},
		"dedupe_id":              {dedupeID},
	}
	return c.do(ctx, http.MethodPut, "/pots/"+url.PathEscape(potID)+"/withdraw", accessToken, form, nil)
}

// PostFeedItem shows a basic item in the account's feed.
func (c *Client) PostFeedItem(ctx context.Context, accessToken, accountID, title, body string) error {
	form := url.Values{
		"account_id":        {accountID},
		"type":              {"basic"},
		"params[title]":     {title},
		"params[body]":      {body},
		"params[image_url]": {feedImageURL},
	}
	return c.do(ctx, http.MethodPost, "/feed", accessToken, form, nil)
}

func (c *Client) ListAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	var out struct {
		Accounts []Account `json:"accounts"`
	}
	if err := c.do(ctx, http.MethodGet, "/accounts", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

func (c *Client) ListPots(ctx context.Context, accessToken, accountID string) ([]Pot, error) {
	var out struct {
		Pots []Pot `json:"pots"`
	}
	path := "/pots?" + url.Values{"current_account_id": {accountID}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, accessToken, nil, &out); err != nil {
		return nil, err
	}
	return out.Pots, nil
}

// ExchangeCode trades an OAuth authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	return c.token(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"redirect_uri":  {c.redirectURL},
		"code":          {code},
	})
}

// RefreshToken trades a refresh token for a new token pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	return c.token(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {refreshToken},
	})
}

func (c *Client) token(ctx context.Context, form url.Values) (*Token, error) {
	var token Token
	if err := c.do(ctx, http.MethodPost, "/oauth2/token", "", form, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response without access token", ErrTransferFailed)
	}
	return &token, nil
}

func (c *Client) do(ctx context.Context, method, path, accessToken string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransferFailed, method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrTransferFailed, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrAuthExpired
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrTransferFailed, method, path, resp.StatusCode, truncate(payload))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrTransferFailed, err)
	}
	return nil
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
