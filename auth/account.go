package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/habedi/gotok/client"
	"github.com/habedi/gotok/pkg/hasher"
	"github.com/habedi/gotok/pkg/validation"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// state is either active or signedOut.
type state interface{ isState() }

type active struct{ id string }

type signedOut struct{}

func (active) isState()    {}
func (signedOut) isState() {}

// Account manages the token lifecycle of one identity at one audience.
// Its id is label + "." + audience and is the default storage key.
type Account struct {
	label       string
	audience    string
	leeway      time.Duration
	requestMode RequestMode
	retries     int
	retryDelay  time.Duration
	storage     Storage
	provider    Provider
	httpClient  client.Doer
	now         func() time.Time
	logger      zerolog.Logger

	mu    sync.RWMutex
	state state
}

// New builds an Account. It performs no I/O and fails with ErrConfig when the
// configuration is incomplete or an option value is invalid.
func New(cfg Config, storage Storage, opts ...Option) (*Account, error) {
	a := &Account{
		label:       cfg.Label,
		audience:    cfg.Audience,
		provider:    cfg.Provider,
		storage:     storage,
		leeway:      DefaultLeeway,
		requestMode: DefaultRequestMode,
		retries:     DefaultRetries,
		retryDelay:  DefaultRetryDelay,
		now:         time.Now,
		logger:      log.Logger,
	}
	if a.label == "" {
		a.label = DefaultLabel
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.httpClient == nil {
		a.httpClient = client.NewHTTPClient()
	}
	if err := a.validate(); err != nil {
		return nil, err
	}

	id := a.label + "." + a.audience
	if err := validation.ValidateStorageKey(id); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	a.state = active{id: id}
	a.logger = a.logger.With().Str("account", id).Logger()
	return a, nil
}

// ID returns the composite id, or ErrSignedOut.
func (a *Account) ID() (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if s, ok := a.state.(active); ok {
		return s.id, nil
	}
	return "", ErrSignedOut
}

func (a *Account) Label() string    { return a.label }
func (a *Account) Audience() string { return a.audience }

// SignedOut reports whether SignOut has completed on this Account.
func (a *Account) SignedOut() bool {
	_, err := a.ID()
	return err != nil
}

// RequestIdentifier returns the identifier sent to the provider: the label in
// RequestModeLabel, the id otherwise.
func (a *Account) RequestIdentifier() (string, error) {
	id, err := a.ID()
	if err != nil {
		return "", err
	}
	if a.requestMode == RequestModeLabel {
		return a.label, nil
	}
	return id, nil
}

// storageKey resolves the key for a call: storageLabel when given, the id otherwise.
func (a *Account) storageKey(storageLabel string) (string, error) {
	id, err := a.ID()
	if err != nil {
		return "", err
	}
	key := id
	if storageLabel != "" {
		key = storageLabel
	}
	if err := validation.ValidateStorageKey(key); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return key, nil
}

// Load reads and parses the token data stored under the resolved key.
func (a *Account) Load(ctx context.Context, storageLabel string) (*TokenData, error) {
	key, err := a.storageKey(storageLabel)
	if err != nil {
		return nil, err
	}
	return a.load(ctx, key)
}

func (a *Account) load(ctx context.Context, key string) (*TokenData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, found, err := a.storage.GetItem(key)
	if err != nil {
		a.logger.Error().Err(err).Str("key", key).Msg("Failed to read token data")
		return nil, fmt.Errorf("failed to read token data for %q: %w", key, err)
	}
	if !found {
		return nil, fmt.Errorf("%w under key %q", ErrNotStored, key)
	}
	data, err := client.Parse[TokenData](raw)
	if err != nil {
		a.logger.Error().Err(err).Str("key", key).Msg("Stored token data is corrupt")
		return nil, fmt.Errorf("failed to parse token data for %q: %w", key, err)
	}
	return &data, nil
}

// Store writes data under the resolved key with a freshly computed
// ExpiresTime and returns the record as written.
func (a *Account) Store(ctx context.Context, data *TokenData, storageLabel string) (*TokenData, error) {
	key, err := a.storageKey(storageLabel)
	if err != nil {
		return nil, err
	}
	return a.store(ctx, data, key)
}

func (a *Account) store(ctx context.Context, data *TokenData, key string) (*TokenData, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: token data is nil", ErrInvalidArgument)
	}
	written := data.Clone()
	expires, err := expiresTime(written.ExpiresIn, a.now())
	if err != nil {
		return nil, err
	}
	written.ExpiresTime = expires

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blob, err := json.Marshal(written)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize token data: %w", err)
	}
	if err := a.storage.SetItem(key, string(blob)); err != nil {
		a.logger.Error().Err(err).Str("key", key).Msg("Failed to write token data")
		return nil, fmt.Errorf("failed to write token data for %q: %w", key, err)
	}

	a.logger.Debug().Str("key", key).
		Str("access_token", hasher.Fingerprint(written.AccessToken)).
		Int64("expires_time", written.ExpiresTime).
		Msg("Token data stored")
	return written, nil
}

// Remove deletes the entry under the resolved key and returns what was deleted.
func (a *Account) Remove(ctx context.Context, storageLabel string) (*TokenData, error) {
	key, err := a.storageKey(storageLabel)
	if err != nil {
		return nil, err
	}
	data, err := a.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := a.storage.RemoveItem(key); err != nil {
		return nil, fmt.Errorf("failed to remove token data for %q: %w", key, err)
	}
	a.logger.Info().Str("key", key).Msg("Token data removed")
	return data, nil
}

// TokenData returns the cached token when it is still valid under the leeway.
// Otherwise it refreshes it with the cached refresh token, merges the response
// into the stored record and persists the result.
func (a *Account) TokenData(ctx context.Context, storageLabel string) (*TokenData, error) {
	key, err := a.storageKey(storageLabel)
	if err != nil {
		return nil, err
	}
	cached, err := a.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !IsExpired(cached, a.leeway, a.now()) {
		a.logger.Debug().Str("key", key).Msg("Access token is still valid")
		return cached, nil
	}

	if cached.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token under key %q", ErrNoToken, key)
	}
	identifier, err := a.RequestIdentifier()
	if err != nil {
		return nil, err
	}

	a.logger.Info().Str("key", key).Str("refresh_token", hasher.Fingerprint(cached.RefreshToken)).Msg("Access token expired or invalid, refreshing...")
	refreshed, err := fetchJSON[TokenData](ctx, a, a.provider.RefreshAccessTokenRequest(identifier, cached.RefreshToken))
	if err != nil {
		return nil, fmt.Errorf("failed to refresh access token: %w", err)
	}

	prior, err := a.load(ctx, key)
	if err != nil {
		return nil, err
	}
	stored, err := a.store(ctx, prior.Overlay(&refreshed), key)
	if err != nil {
		return nil, err
	}
	a.logger.Info().Str("key", key).Msg("Token refreshed and saved successfully.")
	return stored, nil
}

// AccountInfo fetches the provider's account payload using a valid access
// token. The payload is returned as parsed JSON and not persisted.
func (a *Account) AccountInfo(ctx context.Context, storageLabel string) (map[string]any, error) {
	data, err := a.TokenData(ctx, storageLabel)
	if err != nil {
		return nil, err
	}
	if data.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token cached", ErrNoToken)
	}
	identifier, err := a.RequestIdentifier()
	if err != nil {
		return nil, err
	}

	info, err := fetchJSON[map[string]any](ctx, a, a.provider.AccountRequest(identifier, data.AccessToken))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	return info, nil
}

// RevokeRefreshToken revokes the cached refresh token and persists the
// refresh_token returned by the provider (possibly empty) over the prior record.
func (a *Account) RevokeRefreshToken(ctx context.Context, storageLabel string) (*TokenData, error) {
	key, err := a.storageKey(storageLabel)
	if err != nil {
		return nil, err
	}
	cached, err := a.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if cached.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token under key %q", ErrNoToken, key)
	}
	identifier, err := a.RequestIdentifier()
	if err != nil {
		return nil, err
	}

	revoked, err := fetchJSON[TokenData](ctx, a, a.provider.RevokeRefreshTokenRequest(identifier, cached.RefreshToken))
	if err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	prior, err := a.load(ctx, key)
	if err != nil {
		return nil, err
	}
	merged := prior.Clone()
	merged.RefreshToken = revoked.RefreshToken
	stored, err := a.store(ctx, merged, key)
	if err != nil {
		return nil, err
	}
	a.logger.Info().Str("key", key).Bool("rotated", revoked.RefreshToken != "").Msg("Refresh token revoked")
	return stored, nil
}

// SignIn exchanges credential for tokens and stores them, replacing any prior record.
func (a *Account) SignIn(ctx context.Context, credential, storageLabel string) (*TokenData, error) {
	key, err := a.storageKey(storageLabel)
	if err != nil {
		return nil, err
	}
	if credential == "" {
		return nil, fmt.Errorf("%w: credential cannot be empty", ErrInvalidArgument)
	}
	identifier, err := a.RequestIdentifier()
	if err != nil {
		return nil, err
	}

	a.logger.Info().Str("key", key).Msg("Requesting access token")
	acquired, err := fetchJSON[TokenData](ctx, a, a.provider.AccessTokenRequest(identifier, credential))
	if err != nil {
		return nil, fmt.Errorf("failed to acquire access token: %w", err)
	}
	return a.store(ctx, &acquired, key)
}

// SignOut removes the id's stored entry, if any, and puts the Account in the
// signed-out state. Every later token operation fails with ErrSignedOut.
func (a *Account) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.state.(active)
	if !ok {
		return ErrSignedOut
	}
	if err := a.storage.RemoveItem(s.id); err != nil {
		return fmt.Errorf("failed to remove token data for %q: %w", s.id, err)
	}
	a.state = signedOut{}
	a.logger.Info().Msg("Signed out")
	return nil
}

// fetchJSON runs factory through the retrying transport, rejects non-2xx
// responses and decodes the body into T.
func fetchJSON[T any](ctx context.Context, a *Account, factory client.RequestFactory) (T, error) {
	var zero T
	resp, err := client.FetchRetry(ctx, a.httpClient, factory, client.RetryOptions{
		Retries: a.retries,
		Delay:   a.retryDelay,
		Logger:  &a.logger,
	})
	if err != nil {
		return zero, err
	}
	resp, err = client.ValidResponse(resp)
	if err != nil {
		var httpErr *client.HTTPError
		if errors.As(err, &httpErr) {
			a.logger.Error().Int("status", httpErr.StatusCode).Str("body_preview", preview(httpErr.Body)).Msg("HTTP request returned non-OK status")
		}
		return zero, err
	}
	out, err := client.ParseResponse[T](resp)
	if err != nil {
		var parseErr *client.ParseError
		if errors.As(err, &parseErr) {
			a.logger.Error().Err(parseErr.Err).Str("body_preview", preview(parseErr.Body)).Msg("Failed to parse response JSON")
		}
		return zero, err
	}
	return out, nil
}

func preview(body []byte) string {
	return string(body[:min(len(body), 200)])
}
