package courier

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

// RequestConfig describes a single outgoing request. It is built per call
// and must not be mutated once dispatch begins.
type RequestConfig struct {
	// Method is the HTTP verb (GET, POST, PUT, DELETE, PATCH).
	Method string

	// URL is the request target. It may be a path relative to the
	// registry's BaseURL or a fully absolute URL.
	URL string

	// Headers are per-call request headers. They take precedence over the
	// registry's global headers for same-named keys.
	Headers map[string]string

	// Params are query parameters appended to the URL.
	Params map[string]string

	// Body is the request payload. Encoding rules:
	//   - struct/map: JSON (Content-Type: application/json)
	//   - string: raw text (Content-Type: text/plain)
	//   - []byte: raw bytes (Content-Type: application/octet-stream)
	//   - io.Reader: passthrough
	//   - url.Values: form encoded
	Body any

	// Timeout bounds the entire request. Zero means "use the registry's
	// global timeout"; the global default of zero means no timeout.
	Timeout time.Duration
}

// clone returns a shallow copy with its own header and param maps, so
// configuration merging never mutates the caller's value.
func (c *RequestConfig) clone() *RequestConfig {
	out := &RequestConfig{}
	if c != nil {
		*out = *c
	}
	if c != nil && c.Headers != nil {
		out.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			out.Headers[k] = v
		}
	}
	if c != nil && c.Params != nil {
		out.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	return out
}

// GlobalConfig holds registry-wide request defaults merged into every
// dispatch.
type GlobalConfig struct {
	// BaseURL is prefixed onto relative request URLs. Exactly one slash
	// separates BaseURL and the request path.
	BaseURL string

	// Headers supply defaults for keys the per-call config leaves unset.
	Headers map[string]string

	// Timeout is applied when the per-call config carries none.
	Timeout time.Duration
}

// Response is the uniform result shape returned by every adapter.
// It is immutable once produced.
type Response struct {
	// Status is the HTTP status code.
	Status int

	// StatusText is the status line text (e.g. "OK").
	StatusText string

	// Headers are the response headers.
	Headers http.Header

	// Body is the raw response body. Use Decode for structured payloads.
	Body []byte

	// Config is the fully merged RequestConfig that produced this response.
	Config *RequestConfig

	// Raw is the underlying transport response handle, when available.
	// The body of Raw has already been consumed into Body.
	Raw *http.Response
}

// IsSuccess reports whether the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the response body into target as JSON.
func (r *Response) Decode(target any) error {
	return json.Unmarshal(r.Body, target)
}

// String returns the response body as a string.
func (r *Response) String() string {
	return string(r.Body)
}

func newRequestConfig(method, url string, body any, cfg *RequestConfig) *RequestConfig {
	out := cfg.clone()
	out.Method = method
	out.URL = url
	if body != nil {
		out.Body = body
	}
	return out
}
