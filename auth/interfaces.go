package auth

import "github.com/habedi/gotok/client"

// Provider builds the identity-provider requests an Account needs. Each method
// returns a factory so that a fresh request is produced for every attempt.
type Provider interface {
	AccessTokenRequest(identifier, credential string) client.RequestFactory
	RefreshAccessTokenRequest(identifier, refreshToken string) client.RequestFactory
	AccountRequest(identifier, accessToken string) client.RequestFactory
	RevokeRefreshTokenRequest(identifier, refreshToken string) client.RequestFactory
}

// Storage is a flat, synchronous, string-keyed store for serialized token data.
// GetItem reports found=false, not an error, for a missing key.
// RemoveItem on a missing key is a no-op.
type Storage interface {
	GetItem(key string) (value string, found bool, err error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// Lister is implemented by storages that can enumerate their keys.
type Lister interface {
	Keys() ([]string, error)
}

var _ Provider = (*client.HTTPProvider)(nil)
