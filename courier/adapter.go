package courier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// httpAdapter dispatches RequestConfigs over net/http. Both adapter kinds
// share this implementation and differ only in the underlying client.
type httpAdapter struct {
	client *http.Client
	debug  bool
	log    zerolog.Logger
}

func newHTTPAdapter(kind AdapterKind, opts ...AdapterOption) *httpAdapter {
	s := adapterSettings{
		config: DefaultConfig(),
		log:    debugLogger,
	}
	for _, opt := range opts {
		opt(&s)
	}

	client := s.client
	if client == nil {
		switch kind {
		case AdapterBasic:
			client = &http.Client{}
		default:
			client = &http.Client{
				Transport: buildPooledTransport(s.config),
				Timeout:   s.config.Timeout,
			}
		}
	}

	return &httpAdapter{
		client: client,
		debug:  s.debug,
		log:    s.log,
	}
}

// Do implements Transport.
func (a *httpAdapter) Do(ctx context.Context, cfg *RequestConfig) (*Response, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("courier: empty request config")
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}

	target, err := buildTargetURL(cfg.URL, cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("courier: invalid url %q: %w", cfg.URL, err)
	}

	payload, contentType, err := encodeBody(cfg.Body)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if r, ok := cfg.Body.(io.Reader); ok {
		body = r
	} else if payload != nil {
		body = bytes.NewReader(payload)
	}

	// Per-request deadline. The caller's context stays the parent so its
	// cancellation still propagates.
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}

	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	if a.debug {
		logRequest(a.log, req)
		a.log.Debug().Str("curl", curlCommand(cfg, payload)).Msg("curl equivalent")
	}

	start := time.Now()
	httpResp, err := a.client.Do(req)
	if err != nil {
		return nil, a.classifyDispatchError(method, target, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &RequestError{
			Kind:   ErrorKindNetwork,
			Method: method,
			URL:    target,
			Err:    err,
		}
	}

	if a.debug {
		logResponse(a.log, httpResp, time.Since(start))
	}

	resp := &Response{
		Status:     httpResp.StatusCode,
		StatusText: http.StatusText(httpResp.StatusCode),
		Headers:    httpResp.Header,
		Body:       raw,
		Config:     cfg,
		Raw:        httpResp,
	}

	if httpResp.StatusCode >= 400 {
		kind := ErrorKindClient
		if httpResp.StatusCode >= 500 {
			kind = ErrorKindServer
		}
		return nil, &RequestError{
			Kind:       kind,
			Method:     method,
			URL:        target,
			StatusCode: httpResp.StatusCode,
			Response:   resp,
		}
	}

	return resp, nil
}

// Get implements Transport.
func (a *httpAdapter) Get(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return a.Do(ctx, newRequestConfig(http.MethodGet, url, nil, cfg))
}

// Post implements Transport.
func (a *httpAdapter) Post(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return a.Do(ctx, newRequestConfig(http.MethodPost, url, body, cfg))
}

// Put implements Transport.
func (a *httpAdapter) Put(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return a.Do(ctx, newRequestConfig(http.MethodPut, url, body, cfg))
}

// Delete implements Transport.
func (a *httpAdapter) Delete(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return a.Do(ctx, newRequestConfig(http.MethodDelete, url, nil, cfg))
}

// Patch implements Transport.
func (a *httpAdapter) Patch(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return a.Do(ctx, newRequestConfig(http.MethodPatch, url, body, cfg))
}

// classifyDispatchError maps a client.Do failure onto the error taxonomy.
// A deadline hit inside the per-request timeout is a timeout error; caller
// cancellation passes through untyped.
func (a *httpAdapter) classifyDispatchError(method, target string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || isTimeoutErr(err) {
		return &RequestError{
			Kind:   ErrorKindTimeout,
			Method: method,
			URL:    target,
			Err:    err,
		}
	}
	return &RequestError{
		Kind:   ErrorKindNetwork,
		Method: method,
		URL:    target,
		Err:    err,
	}
}

func isTimeoutErr(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// buildTargetURL appends query parameters to the request URL.
func buildTargetURL(rawURL string, params map[string]string) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// encodeBody serializes the request body by type and reports the implied
// content type. io.Reader bodies are streamed by the caller and yield no
// bytes here.
func encodeBody(body any) ([]byte, string, error) {
	if body == nil {
		return nil, "", nil
	}

	switch b := body.(type) {
	case string:
		return []byte(b), "text/plain; charset=utf-8", nil
	case []byte:
		return b, "application/octet-stream", nil
	case io.Reader:
		return nil, "", nil
	case url.Values:
		return []byte(b.Encode()), "application/x-www-form-urlencoded", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("courier: encode request body: %w", err)
		}
		return data, "application/json", nil
	}
}
