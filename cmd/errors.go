package cmd

import (
	"context"
	"errors"

	"github.com/habedi/gotok/auth"
	"github.com/habedi/gotok/client"
	"github.com/habedi/gotok/pkg/clierr"
)

// toCLIError categorizes err for the user. Errors that already are
// *clierr.Error pass through unchanged.
func toCLIError(err error) *clierr.Error {
	var cliErr *clierr.Error
	if errors.As(err, &cliErr) {
		return cliErr
	}

	var (
		httpErr  *client.HTTPError
		retryErr *client.RetryError
	)
	switch {
	case errors.Is(err, auth.ErrConfig), errors.Is(err, auth.ErrInvalidArgument), errors.Is(err, auth.ErrInvalidExpiresIn):
		return clierr.New(clierr.Validation, "Invalid input", err)
	case errors.Is(err, auth.ErrSignedOut):
		return clierr.New(clierr.Validation, "Account is signed out", err)
	case errors.Is(err, auth.ErrNotStored):
		return clierr.New(clierr.NotFound, "No tokens stored; run 'gotok signin' first", err)
	case errors.Is(err, auth.ErrNoToken):
		return clierr.New(clierr.NotFound, "The stored record lacks the needed token; run 'gotok signin' again", err)
	case errors.As(err, &httpErr):
		return clierr.New(clierr.Rejected, "The identity provider rejected the request", err)
	case errors.As(err, &retryErr), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return clierr.New(clierr.Network, "Could not reach the identity provider", err)
	case errors.Is(err, client.ErrNotJSON), errors.Is(err, client.ErrNotString), errors.Is(err, client.ErrMissingResponse):
		return clierr.New(clierr.Internal, "Malformed token data", err)
	default:
		return clierr.New(clierr.Internal, "Command failed", err)
	}
}
