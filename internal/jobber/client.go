package jobber

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ops-dashboard/internal/config"
	"ops-dashboard/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

var (
	ErrInvalidState = errors.New("jobber: unknown or expired oauth state")
	ErrRefreshBusy  = errors.New("jobber: token refresh in progress elsewhere")
)

// Endpoint is Jobber's OAuth2 endpoint. Credentials travel in the form body.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://api.getjobber.com/api/oauth/authorize",
	TokenURL:  "https://api.getjobber.com/api/oauth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

const (
	StateTTL       = 10 * time.Minute
	refreshLockKey = "jobber:oauth:refresh"
	refreshLockTTL = 30 * time.Second
)

// Client owns the OAuth2 authorization-code flow against Jobber and keeps the
// resulting token fresh for the sync process.
type Client struct {
	oauth  *oauth2.Config
	tokens TokenStore
	locker Locker
	now    func() time.Time
}

func NewClient(cfg config.JobberConfig, tokens TokenStore, locker Locker) *Client {
	endpoint := Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
		},
		tokens: tokens,
		locker: locker,
		now:    time.Now,
	}
}

// AuthCodeURL starts a connect flow and returns the Jobber consent URL.
func (c *Client) AuthCodeURL(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := c.tokens.SaveState(ctx, state, StateTTL); err != nil {
		return "", fmt.Errorf("jobber: save state: %w", err)
	}
	return c.oauth.AuthCodeURL(state), nil
}

// Exchange completes the flow: the state must be pending, and the code is
// traded for a token which is then persisted.
func (c *Client) Exchange(ctx context.Context, code, state string) (*oauth2.Token, error) {
	if code == "" || state == "" {
		return nil, ErrInvalidState
	}
	ok, err := c.tokens.ConsumeState(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("jobber: consume state: %w", err)
	}
	if !ok {
		return nil, ErrInvalidState
	}
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("jobber: exchange code: %w", err)
	}
	if err := c.tokens.SaveToken(ctx, tok); err != nil {
		return nil, fmt.Errorf("jobber: save token: %w", err)
	}
	return tok, nil
}

// Token returns a valid access token, refreshing it under the distributed
// lock when it has expired.
func (c *Client) Token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := c.tokens.LoadToken(ctx)
	if err != nil {
		return nil, err
	}
	if c.fresh(tok) {
		return tok, nil
	}

	unlock, err := c.locker.Lock(ctx, refreshLockKey, refreshLockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.From(ctx).Warn("jobber refresh unlock failed", "err", err)
		}
	}()

	// Another process may have refreshed while we waited.
	tok, err = c.tokens.LoadToken(ctx)
	if err != nil {
		return nil, err
	}
	if c.fresh(tok) {
		return tok, nil
	}

	// Force the refresh grant even if oauth2's own expiry margin still
	// considers the token usable.
	stale := *tok
	stale.Expiry = time.Unix(1, 0)
	next, err := c.oauth.TokenSource(ctx, &stale).Token()
	if err != nil {
		return nil, fmt.Errorf("jobber: refresh token: %w", err)
	}
	if next.RefreshToken == "" {
		next.RefreshToken = tok.RefreshToken
	}
	if err := c.tokens.SaveToken(ctx, next); err != nil {
		return nil, fmt.Errorf("jobber: save refreshed token: %w", err)
	}
	logger.From(ctx).Info("jobber token refreshed", "expiry", next.Expiry)
	return next, nil
}

// TokenSource adapts Token for oauth2.NewClient.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, tokenSourceFunc(func() (*oauth2.Token, error) {
		return c.Token(ctx)
	}))
}

type tokenSourceFunc func() (*oauth2.Token, error)

func (f tokenSourceFunc) Token() (*oauth2.Token, error) { return f() }

// Status describes the stored connection without exposing the token.
type Status struct {
	Connected   bool       `json:"connected"`
	Expiry      *time.Time `json:"expiry,omitempty"`
	Expired     bool       `json:"expired"`
	Refreshable bool       `json:"refreshable"`
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	tok, err := c.tokens.LoadToken(ctx)
	if errors.Is(err, ErrNoToken) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}
	st := Status{Connected: true, Refreshable: tok.RefreshToken != ""}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		st.Expiry = &exp
		st.Expired = !c.now().Before(exp)
	}
	return st, nil
}

// fresh treats tokens within a minute of expiry as stale.
func (c *Client) fresh(tok *oauth2.Token) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	return tok.Expiry.IsZero() || c.now().Add(time.Minute).Before(tok.Expiry)
}
