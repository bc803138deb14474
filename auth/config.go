package auth

import (
	"fmt"
	"time"

	"github.com/habedi/gotok/client"
	"github.com/habedi/gotok/pkg/validation"
	"github.com/rs/zerolog"
)

// RequestMode selects which identifier addresses provider requests.
type RequestMode string

const (
	RequestModeID    RequestMode = "id"
	RequestModeLabel RequestMode = "label"
)

// Defaults applied by New.
const (
	DefaultLabel       = "me"
	DefaultRetries     = 3
	DefaultRetryDelay  = time.Second
	DefaultLeeway      = 3 * time.Second
	DefaultRequestMode = RequestModeID
)

// Config holds the required parts of an Account. Tunables are set with Options.
type Config struct {
	Provider Provider
	Audience string // required
	Label    string // defaults to DefaultLabel
}

// Option customizes an Account.
type Option func(*Account)

// WithRetries sets the number of fetch attempts per provider request. Zero is allowed.
func WithRetries(n int) Option {
	return func(a *Account) { a.retries = n }
}

// WithRetryDelay sets the fixed wait between failed attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(a *Account) { a.retryDelay = d }
}

// WithLeeway sets how long before the recorded expiry a token is treated as expired.
func WithLeeway(d time.Duration) Option {
	return func(a *Account) { a.leeway = d }
}

// WithRequestMode sets the identifier used for provider requests.
func WithRequestMode(mode RequestMode) Option {
	return func(a *Account) { a.requestMode = mode }
}

// WithHTTPClient sets the transport used to execute provider requests.
func WithHTTPClient(doer client.Doer) Option {
	return func(a *Account) { a.httpClient = doer }
}

// WithNowFunc overrides the clock. Intended for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(a *Account) { a.now = now }
}

// WithLogger sets the logger. The global zerolog logger is used otherwise.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Account) { a.logger = logger }
}

func (a *Account) validate() error {
	if a.provider == nil {
		return fmt.Errorf("%w: provider is required", ErrConfig)
	}
	if a.storage == nil {
		return fmt.Errorf("%w: storage is required", ErrConfig)
	}
	if err := validation.ValidateNonEmptyString("audience", a.audience); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := validation.ValidateNonEmptyString("label", a.label); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := validation.ValidateNonNegative("retries", a.retries); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := validation.ValidateNonNegativeDuration("retry delay", a.retryDelay); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := validation.ValidateNonNegativeDuration("leeway", a.leeway); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := validation.ValidateOneOf("request mode", string(a.requestMode),
		string(RequestModeID), string(RequestModeLabel)); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if a.now == nil {
		return fmt.Errorf("%w: now function is nil", ErrConfig)
	}
	return nil
}
