package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is returned by New when the account cannot be constructed.
	ErrConfig = errors.New("invalid account configuration")
	// ErrInvalidArgument is returned for a missing or malformed per-call argument.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrSignedOut is returned by every token operation after SignOut.
	ErrSignedOut = errors.New("account is signed out")
	// ErrNotStored is returned when no token data exists under the resolved key.
	ErrNotStored = errors.New("no token data stored")
	// ErrNoToken is returned when the cached record lacks the token an operation needs.
	ErrNoToken = errors.New("required token is not cached")
	// ErrInvalidExpiresIn is matched by every NumericError.
	ErrInvalidExpiresIn = errors.New("expires_in is not a finite number")
)

// NumericError reports a token field that should hold a finite number.
type NumericError struct {
	Field string
	Value string
	Err   error
}

func (e *NumericError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s must be a finite number, got %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("%s must be a finite number, got %q", e.Field, e.Value)
}

func (e *NumericError) Unwrap() error { return e.Err }

func (e *NumericError) Is(target error) bool { return target == ErrInvalidExpiresIn }
