package courier

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrNotConfigured is returned when a dispatch happens before any
	// transport adapter was injected into the registry.
	ErrNotConfigured = errors.New("courier: transport not configured")

	// ErrRateLimited is returned by the throttle decorator when a request
	// is rejected in fail-fast mode.
	ErrRateLimited = errors.New("courier: rate limited")

	// ErrCircuitOpen is returned by the breaker decorator while the
	// circuit is open.
	ErrCircuitOpen = errors.New("courier: circuit open")
)

// ErrorKind classifies a RequestError.
type ErrorKind string

const (
	// ErrorKindNetwork covers connection-level failures.
	ErrorKindNetwork ErrorKind = "network"

	// ErrorKindTimeout covers per-request deadline expiry.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindServer covers 5xx responses.
	ErrorKindServer ErrorKind = "server"

	// ErrorKindClient covers 4xx responses.
	ErrorKindClient ErrorKind = "client"
)

// RequestError is the typed error surfaced for transport-level failures.
// Non-2xx responses carry the decoded Response so callers can inspect the
// error payload.
type RequestError struct {
	Kind       ErrorKind
	Method     string
	URL        string
	StatusCode int
	RequestID  string
	Response   *Response
	Err        error
}

func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("courier: %s %s: %s error", e.Method, e.URL, e.Kind)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches RequestErrors by kind.
func (e *RequestError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*RequestError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// IsTimeout reports whether err represents a per-request timeout.
func IsTimeout(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Kind == ErrorKindTimeout
}

// IsTransient reports whether err is a failure that might succeed on retry:
// network errors, timeouts, 5xx responses, and 429s. Configuration errors
// and other 4xx responses are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrCircuitOpen) {
		return true
	}

	var re *RequestError
	if errors.As(err, &re) {
		switch re.Kind {
		case ErrorKindNetwork, ErrorKindTimeout, ErrorKindServer:
			return true
		case ErrorKindClient:
			return re.StatusCode == 429
		}
	}
	return false
}
