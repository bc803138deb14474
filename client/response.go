package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrMissingResponse is returned when a validator or parser is handed no response.
	ErrMissingResponse = errors.New("missing response")
	// ErrNotJSON is matched by every ParseError.
	ErrNotJSON = errors.New("content is not valid JSON")
	// ErrNotString is returned by Parse when the source does not resolve to a string.
	ErrNotString = errors.New("parse source is not a string")
)

// HTTPError reports a response whose status is outside the 2xx range.
// Response is kept for inspection; its body has already been read into Body and closed.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
	Response   *http.Response
}

func (e *HTTPError) Error() string {
	return e.Status
}

// ParseError reports a body or stored blob that could not be decoded as JSON.
// Body is set when the input was a response body.
type ParseError struct {
	Err  error
	Body []byte
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", ErrNotJSON.Error(), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrNotJSON }

// ValidResponse passes resp through when its status is in [200, 300).
// Like ParseResponse it does not log; callers log the returned error.
func ValidResponse(resp *http.Response) (*http.Response, error) {
	if resp == nil {
		return nil, ErrMissingResponse
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	var body []byte
	if resp.Body != nil {
		// Best effort; the status is the error, not the body.
		body, _ = io.ReadAll(resp.Body)
		resp.Body.Close()
	}

	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("HTTP status %d", resp.StatusCode)
	}
	return nil, &HTTPError{StatusCode: resp.StatusCode, Status: status, Body: body, Response: resp}
}

// ParseResponse reads and closes the body of resp and decodes it as JSON into T.
func ParseResponse[T any](resp *http.Response) (T, error) {
	var out T
	if resp == nil || resp.Body == nil {
		return out, ErrMissingResponse
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, &ParseError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, &ParseError{Err: err, Body: body}
	}
	return out, nil
}

// Parse decodes JSON from source into T. Source may be a string, a []byte, or
// a func() string / func() (string, error) producing the string lazily.
func Parse[T any](source any) (T, error) {
	var out T

	var raw string
	switch s := source.(type) {
	case string:
		raw = s
	case []byte:
		raw = string(s)
	case func() string:
		if s == nil {
			return out, ErrNotString
		}
		raw = s()
	case func() (string, error):
		if s == nil {
			return out, ErrNotString
		}
		v, err := s()
		if err != nil {
			return out, fmt.Errorf("failed to resolve parse source: %w", err)
		}
		raw = v
	default:
		return out, fmt.Errorf("%w: got %T", ErrNotString, source)
	}

	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, &ParseError{Err: err}
	}
	return out, nil
}
