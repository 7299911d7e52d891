package kiwify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nutriplan/nutriplan/internal/cache"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/nutriplan/nutriplan/internal/types"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// tokenFreshnessWindow is how long a cached token must still be valid to be served
	tokenFreshnessWindow = 5 * time.Second

	// DefaultTokenSafetyMargin is subtracted from the server ttl before caching
	DefaultTokenSafetyMargin = 60 * time.Second

	defaultTokenKeyPrefix = "kiwify:oauth:token"
)

// AccessToken is a bearer token and the instant it must no longer be used
type AccessToken struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t *AccessToken) freshAt(now time.Time) bool {
	return t != nil && t.Value != "" && t.ExpiresAt.After(now.Add(tokenFreshnessWindow))
}

// TokenProvider is what the request executor needs from the credential manager
type TokenProvider interface {
	Token(ctx context.Context, forceRefresh bool) (*AccessToken, error)
	Invalidate(ctx context.Context)
}

// CredentialsConfig holds the client-credentials grant settings
type CredentialsConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	AccountID    string
	SafetyMargin time.Duration
	KeyPrefix    string
}

// CredentialManager obtains OAuth access tokens and caches them in two tiers:
// a process local cache and a durable cache shared by every instance. Writes
// to the durable tier are best effort and concurrent writers race with last
// write wins, which at worst costs one extra exchange.
type CredentialManager struct {
	oauth        *clientcredentials.Config
	httpClient   *http.Client
	local        cache.Cache
	store        cache.Cache
	key          string
	safetyMargin time.Duration
	logger       *logger.Logger
	now          func() time.Time
}

// NewCredentialManager validates the credentials and builds a manager. Missing
// client id, secret or account id is a configuration error.
func NewCredentialManager(
	cfg CredentialsConfig,
	local cache.Cache,
	store cache.Cache,
	httpClient *http.Client,
	log *logger.Logger,
) (*CredentialManager, error) {
	missing := make([]string, 0, 3)
	if cfg.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if cfg.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if cfg.AccountID == "" {
		missing = append(missing, "account_id")
	}
	if len(missing) > 0 {
		return nil, ierr.NewError("kiwify credentials are not configured").
			WithHintf("Missing Kiwify configuration: %s", strings.Join(missing, ", ")).
			WithReportableDetails(map[string]interface{}{"missing": missing}).
			Mark(ierr.ErrValidation)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseURL
	}
	margin := cfg.SafetyMargin
	if margin <= 0 {
		margin = DefaultTokenSafetyMargin
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultTokenKeyPrefix
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if local == nil {
		local = cache.NewInMemoryCache()
	}
	if store == nil {
		store = cache.NewInMemoryCache()
	}

	return &CredentialManager{
		oauth: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     strings.TrimRight(baseURL, "/") + TokenPath,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient:   httpClient,
		local:        local,
		store:        store,
		key:          fmt.Sprintf("%s:%s", prefix, cfg.AccountID),
		safetyMargin: margin,
		logger:       log,
		now:          time.Now,
	}, nil
}

// Token returns a usable access token. forceRefresh skips both cache tiers.
func (m *CredentialManager) Token(ctx context.Context, forceRefresh bool) (*AccessToken, error) {
	token, _, err := m.token(ctx, forceRefresh)
	return token, err
}

// Metadata reports the expiry of the current token and the tier it came from
func (m *CredentialManager) Metadata(ctx context.Context, forceRefresh bool) (*TokenMetadata, error) {
	token, source, err := m.token(ctx, forceRefresh)
	if err != nil {
		return nil, err
	}
	return &TokenMetadata{
		ExpiresAt: token.ExpiresAt,
		Source:    string(source),
	}, nil
}

// Invalidate drops the token from both tiers
func (m *CredentialManager) Invalidate(ctx context.Context) {
	m.local.Delete(ctx, m.key)
	m.store.Delete(ctx, m.key)
}

func (m *CredentialManager) token(ctx context.Context, forceRefresh bool) (*AccessToken, types.TokenSource, error) {
	now := m.now()

	if !forceRefresh {
		if v, ok := m.local.Get(ctx, m.key); ok {
			if t, ok := cache.UnmarshalCacheValue[AccessToken](v); ok && t.freshAt(now) {
				return t, types.TokenSourceMemory, nil
			}
		}

		if v, ok := m.store.Get(ctx, m.key); ok {
			if t, ok := cache.UnmarshalCacheValue[AccessToken](v); ok && t.freshAt(now) {
				m.local.Set(ctx, m.key, t, t.ExpiresAt.Sub(now))
				return t, types.TokenSourceStore, nil
			}
		}
	}

	t, err := m.exchange(ctx)
	if err != nil {
		return nil, "", err
	}

	if ttl := t.ExpiresAt.Sub(now); ttl > 0 {
		m.local.Set(ctx, m.key, t, ttl)
		m.store.Set(ctx, m.key, t, ttl)
	}

	return t, types.TokenSourceOAuth, nil
}

// exchange performs the client-credentials grant
func (m *CredentialManager) exchange(ctx context.Context) (*AccessToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)

	tok, err := m.oauth.Token(ctx)
	if err != nil {
		m.logger.Errorw("kiwify token exchange failed", "error", err)

		var retrieveErr *oauth2.RetrieveError
		if ierr.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return nil, ierr.WithError(err).
				WithHint("Kiwify rejected the client credentials").
				WithReportableDetails(map[string]interface{}{
					"status_code": retrieveErr.Response.StatusCode,
				}).
				Mark(ierr.ErrUnauthorized)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to obtain a Kiwify access token").
			Mark(ierr.ErrHTTPClient)
	}

	if tok.AccessToken == "" {
		return nil, ierr.NewError("token response missing access_token").
			WithHint("Kiwify token response did not include an access token").
			Mark(ierr.ErrHTTPClient)
	}

	serverTTL, ok := tokenTTL(tok)
	if !ok {
		return nil, ierr.NewError("token response missing expires_in").
			WithHint("Kiwify token response did not include an expiry").
			Mark(ierr.ErrHTTPClient)
	}

	// short lived tokens keep half their lifetime so expiresAt stays in the future
	margin := m.safetyMargin
	if margin >= serverTTL {
		margin = serverTTL / 2
	}
	expiresAt := m.now().Add(serverTTL - margin)

	m.logger.Infow("obtained kiwify access token",
		"expires_at", expiresAt,
		"server_ttl_seconds", int64(serverTTL.Seconds()))

	return &AccessToken{Value: tok.AccessToken, ExpiresAt: expiresAt}, nil
}

// tokenTTL reads expires_in from the token response
func tokenTTL(tok *oauth2.Token) (time.Duration, bool) {
	if tok.ExpiresIn > 0 {
		return time.Duration(tok.ExpiresIn) * time.Second, true
	}

	switch v := tok.Extra("expires_in").(type) {
	case float64:
		if v > 0 {
			return time.Duration(v * float64(time.Second)), true
		}
	case json.Number:
		if n, err := v.Int64(); err == nil && n > 0 {
			return time.Duration(n) * time.Second, true
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return time.Duration(n) * time.Second, true
		}
	}

	if !tok.Expiry.IsZero() {
		if ttl := time.Until(tok.Expiry); ttl > 0 {
			return ttl, true
		}
	}
	return 0, false
}
