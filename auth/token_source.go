package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

type accountTokenSource struct {
	ctx          context.Context
	account      *Account
	storageLabel string
}

func (s *accountTokenSource) Token() (*oauth2.Token, error) {
	data, err := s.account.TokenData(s.ctx, s.storageLabel)
	if err != nil {
		return nil, err
	}
	if data.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token cached", ErrNoToken)
	}
	tok := data.OAuth2Token()
	if tok.Expiry.IsZero() {
		// A zero Expiry never expires in oauth2; records without one must not be reused.
		tok.Expiry = time.UnixMilli(0)
	}
	return tok, nil
}

// NewTokenSource adapts account to oauth2.TokenSource so it can back an
// oauth2.NewClient. Tokens are reused until the account's leeway window starts.
func NewTokenSource(ctx context.Context, account *Account, storageLabel string) oauth2.TokenSource {
	src := &accountTokenSource{ctx: ctx, account: account, storageLabel: storageLabel}
	return oauth2.ReuseTokenSourceWithExpiry(nil, src, account.leeway)
}
