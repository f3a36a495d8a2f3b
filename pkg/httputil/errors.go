package httputil

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when the server answers 404.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for transport failures (DNS, connection, timeout).
	ErrNetwork = errors.New("network error")

	// ErrUnexpectedStatus is returned for any other non-200 response.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrDecode is returned when a response body is not valid JSON for the target.
	ErrDecode = errors.New("decode response")

	// ErrStalled is returned when a streamed response delivers no data for
	// longer than the idle timeout. It is always wrapped with ErrNetwork.
	ErrStalled = errors.New("connection stalled")
)

// StatusError records a non-success HTTP response.
// It unwraps to [ErrNotFound] for 404 and [ErrUnexpectedStatus] otherwise.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return ErrUnexpectedStatus
}

// StatusCode extracts the HTTP status code from err, or 0 if err does not
// carry a [StatusError].
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, 5xx responses) with this type
// so that [Retry] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

func checkStatus(code int, url string) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code >= 500 || code == http.StatusTooManyRequests:
		return &RetryableError{Err: &StatusError{Code: code, URL: url}}
	default:
		return &StatusError{Code: code, URL: url}
	}
}
