package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestFactory builds a fresh outbound request. It is called once per attempt
// because a request body can only be consumed once.
type RequestFactory func(ctx context.Context) (*http.Request, error)

// RetryOptions controls FetchRetry.
type RetryOptions struct {
	Retries int             // maximum number of attempts
	Delay   time.Duration   // fixed wait between a failed attempt and the next one
	Logger  *zerolog.Logger // defaults to the global logger
}

// RetryError is returned when every attempt failed at the transport layer.
// Errors holds one entry per attempt, in attempt order.
type RetryError struct {
	Errors []error
}

func (e *RetryError) Error() string {
	if len(e.Errors) == 0 {
		return "fetch failed: no attempts made"
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = fmt.Sprintf("attempt %d: %v", i+1, err)
	}
	return fmt.Sprintf("fetch failed after %d attempt(s): %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *RetryError) Unwrap() []error { return e.Errors }

// NewHTTPClient returns the default transport used when none is configured.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// FetchRetry executes the request built by factory up to opts.Retries times.
// It returns the first response the transport produced without error, whatever
// its status code; status validation is left to ValidResponse.
func FetchRetry(ctx context.Context, doer Doer, factory RequestFactory, opts RetryOptions) (*http.Response, error) {
	if doer == nil {
		doer = NewHTTPClient()
	}
	if factory == nil {
		return nil, errors.New("request factory is nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = &log.Logger
	}

	attemptErrs := make([]error, 0, max(opts.Retries, 0))
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		req, err := factory(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		logger.Debug().Str("method", req.Method).Str("url", req.URL.String()).Int("attempt", attempt).Msg("Sending HTTP request")
		resp, err := doer.Do(req)
		if err == nil {
			logger.Debug().Str("url", req.URL.String()).Int("attempt", attempt).Int("status", resp.StatusCode).Msg("HTTP request completed")
			return resp, nil
		}

		logger.Warn().Err(err).Str("url", req.URL.String()).Int("attempt", attempt).Int("retries", opts.Retries).Msg("HTTP request failed")
		attemptErrs = append(attemptErrs, err)

		if attempt == opts.Retries {
			break
		}
		if err := wait(ctx, opts.Delay); err != nil {
			return nil, errors.Join(err, &RetryError{Errors: attemptErrs})
		}
	}

	return nil, &RetryError{Errors: attemptErrs}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
