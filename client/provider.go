package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Grant types sent by HTTPProvider.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// HTTPProvider builds OAuth2 form requests against a fixed set of endpoints.
// The identifier (label or id of the account) is sent as the "account" field.
type HTTPProvider struct {
	TokenURL   string
	AccountURL string
	RevokeURL  string
	ClientID   string
	Audience   string
	// SignInGrant is the grant used by AccessTokenRequest. Defaults to authorization_code.
	SignInGrant string
}

// Validate checks that every endpoint is an absolute http(s) URL.
func (p *HTTPProvider) Validate() error {
	for name, raw := range map[string]string{
		"token URL":   p.TokenURL,
		"account URL": p.AccountURL,
		"revoke URL":  p.RevokeURL,
	} {
		if err := validateEndpoint(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	switch p.SignInGrant {
	case "", GrantAuthorizationCode, GrantPassword:
	default:
		return fmt.Errorf("unsupported sign-in grant: %s", p.SignInGrant)
	}
	return nil
}

func validateEndpoint(rawURL string) error {
	if rawURL == "" {
		return errors.New("URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL must include a host")
	}
	return nil
}

// AccessTokenRequest exchanges a sign-in credential for tokens.
func (p *HTTPProvider) AccessTokenRequest(identifier, credential string) RequestFactory {
	grant := p.SignInGrant
	if grant == "" {
		grant = GrantAuthorizationCode
	}
	return func(ctx context.Context) (*http.Request, error) {
		form := p.baseForm(identifier)
		form.Set("grant_type", grant)
		if grant == GrantPassword {
			form.Set("username", identifier)
			form.Set("password", credential)
		} else {
			form.Set("code", credential)
		}
		return p.newFormRequest(ctx, p.TokenURL, form)
	}
}

// RefreshAccessTokenRequest trades a refresh token for a new access token.
func (p *HTTPProvider) RefreshAccessTokenRequest(identifier, refreshToken string) RequestFactory {
	return func(ctx context.Context) (*http.Request, error) {
		form := p.baseForm(identifier)
		form.Set("grant_type", GrantRefreshToken)
		form.Set("refresh_token", refreshToken)
		return p.newFormRequest(ctx, p.TokenURL, form)
	}
}

// AccountRequest fetches the account payload with a bearer access token.
func (p *HTTPProvider) AccountRequest(identifier, accessToken string) RequestFactory {
	return func(ctx context.Context) (*http.Request, error) {
		u, err := url.Parse(p.AccountURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse account URL: %w", err)
		}
		q := u.Query()
		q.Set("account", identifier)
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create account request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")
		req.Header.Set(RequestIDHeader, uuid.NewString())
		return req, nil
	}
}

// RevokeRefreshTokenRequest revokes a refresh token (RFC 7009 form).
func (p *HTTPProvider) RevokeRefreshTokenRequest(identifier, refreshToken string) RequestFactory {
	return func(ctx context.Context) (*http.Request, error) {
		form := p.baseForm(identifier)
		form.Set("token", refreshToken)
		form.Set("token_type_hint", "refresh_token")
		return p.newFormRequest(ctx, p.RevokeURL, form)
	}
}

func (p *HTTPProvider) baseForm(identifier string) url.Values {
	form := url.Values{}
	form.Set("account", identifier)
	if p.ClientID != "" {
		form.Set("client_id", p.ClientID)
	}
	if p.Audience != "" {
		form.Set("audience", p.Audience)
	}
	return form
}

func (p *HTTPProvider) newFormRequest(ctx context.Context, endpoint string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	return req, nil
}
