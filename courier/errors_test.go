package courier

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestError_Error(t *testing.T) {
	t.Run("given full error, then message carries id method url kind and status", func(t *testing.T) {
		err := &RequestError{
			Kind:       ErrorKindServer,
			Method:     "GET",
			URL:        "https://api.example.com/a",
			StatusCode: 503,
			RequestID:  "req-1",
		}

		msg := err.Error()
		assert.Contains(t, msg, "req-1")
		assert.Contains(t, msg, "GET")
		assert.Contains(t, msg, "https://api.example.com/a")
		assert.Contains(t, msg, "server")
		assert.Contains(t, msg, "503")
	})

	t.Run("given wrapped cause, then Unwrap exposes it", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := &RequestError{Kind: ErrorKindNetwork, Err: cause}

		assert.ErrorIs(t, err, cause)
	})

	t.Run("given wrapping, then errors.As finds the request error", func(t *testing.T) {
		inner := &RequestError{Kind: ErrorKindTimeout}
		wrapped := fmt.Errorf("dispatch: %w", inner)

		var re *RequestError
		assert.ErrorAs(t, wrapped, &re)
		assert.Equal(t, ErrorKindTimeout, re.Kind)
	})

	t.Run("given same kind target, then errors.Is matches by kind", func(t *testing.T) {
		err := &RequestError{Kind: ErrorKindTimeout, URL: "/a"}

		assert.ErrorIs(t, err, &RequestError{Kind: ErrorKindTimeout})
		assert.NotErrorIs(t, err, &RequestError{Kind: ErrorKindNetwork})
	})
}

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "given timeout request error, then true",
			err:  &RequestError{Kind: ErrorKindTimeout},
			want: true,
		},
		{
			name: "given network request error, then false",
			err:  &RequestError{Kind: ErrorKindNetwork},
			want: false,
		},
		{
			name: "given wrapped timeout, then true",
			err:  fmt.Errorf("call: %w", &RequestError{Kind: ErrorKindTimeout}),
			want: true,
		},
		{
			name: "given plain error, then false",
			err:  errors.New("boom"),
			want: false,
		},
		{
			name: "given nil, then false",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTimeout(tt.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "given network error, then transient",
			err:  &RequestError{Kind: ErrorKindNetwork},
			want: true,
		},
		{
			name: "given timeout error, then transient",
			err:  &RequestError{Kind: ErrorKindTimeout},
			want: true,
		},
		{
			name: "given server error, then transient",
			err:  &RequestError{Kind: ErrorKindServer, StatusCode: 502},
			want: true,
		},
		{
			name: "given 429 client error, then transient",
			err:  &RequestError{Kind: ErrorKindClient, StatusCode: 429},
			want: true,
		},
		{
			name: "given 404 client error, then not transient",
			err:  &RequestError{Kind: ErrorKindClient, StatusCode: 404},
			want: false,
		},
		{
			name: "given rate limited sentinel, then transient",
			err:  ErrRateLimited,
			want: true,
		},
		{
			name: "given circuit open sentinel, then transient",
			err:  ErrCircuitOpen,
			want: true,
		},
		{
			name: "given not configured sentinel, then not transient",
			err:  ErrNotConfigured,
			want: false,
		},
		{
			name: "given nil, then not transient",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
