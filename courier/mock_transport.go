package courier

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"sync"
)

// MockTransport provides a configurable Transport for testing. It allows
// stubbing responses and verifying dispatch expectations.
type MockTransport struct {
	mu          sync.RWMutex
	stubs       []mockStub
	defaultResp *Response
	defaultErr  error
	requests    []*RequestConfig
	requestHook func(*RequestConfig)
}

type mockStub struct {
	matcher  func(*RequestConfig) bool
	response *Response
	err      error
}

// NewMockTransport creates a new MockTransport for testing.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// StubResponse stubs all requests to return the given response.
func (m *MockTransport) StubResponse(statusCode int, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResp = mockResponse(statusCode, body)
	return m
}

// StubError stubs all requests to return the given error.
func (m *MockTransport) StubError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultErr = err
	return m
}

// StubURL stubs requests whose URL contains the fragment.
func (m *MockTransport) StubURL(fragment string, statusCode int, body string) *MockTransport {
	return m.StubFunc(func(cfg *RequestConfig) bool {
		return strings.Contains(cfg.URL, fragment)
	}, statusCode, body)
}

// StubURLRegex stubs requests whose URL matches the pattern.
func (m *MockTransport) StubURLRegex(pattern string, statusCode int, body string) *MockTransport {
	re := regexp.MustCompile(pattern)
	return m.StubFunc(func(cfg *RequestConfig) bool {
		return re.MatchString(cfg.URL)
	}, statusCode, body)
}

// StubMethod stubs requests with the given method.
func (m *MockTransport) StubMethod(method string, statusCode int, body string) *MockTransport {
	return m.StubFunc(func(cfg *RequestConfig) bool {
		return cfg.Method == method
	}, statusCode, body)
}

// StubFunc stubs requests matching the predicate to return the given
// response.
func (m *MockTransport) StubFunc(
	matcher func(*RequestConfig) bool,
	statusCode int,
	body string,
) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, mockStub{
		matcher:  matcher,
		response: mockResponse(statusCode, body),
	})
	return m
}

// StubFuncError stubs requests matching the predicate to return the
// given error.
func (m *MockTransport) StubFuncError(matcher func(*RequestConfig) bool, err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, mockStub{
		matcher: matcher,
		err:     err,
	})
	return m
}

// OnRequest sets a hook that is called for each dispatch. Useful for
// assertions or injecting latency.
func (m *MockTransport) OnRequest(fn func(*RequestConfig)) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestHook = fn
	return m
}

// Do implements Transport.
func (m *MockTransport) Do(_ context.Context, cfg *RequestConfig) (*Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, cfg)
	hook := m.requestHook
	m.mu.Unlock()

	if hook != nil {
		hook(cfg)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	// First matching stub wins
	for _, s := range m.stubs {
		if s.matcher(cfg) {
			if s.err != nil {
				return nil, s.err
			}
			return cloneMockResponse(s.response, cfg), nil
		}
	}

	if m.defaultErr != nil {
		return nil, m.defaultErr
	}
	if m.defaultResp != nil {
		return cloneMockResponse(m.defaultResp, cfg), nil
	}

	return nil, errors.New("no stub found for request: " + cfg.Method + " " + cfg.URL)
}

// Get implements Transport.
func (m *MockTransport) Get(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return m.Do(ctx, newRequestConfig(http.MethodGet, url, nil, cfg))
}

// Post implements Transport.
func (m *MockTransport) Post(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return m.Do(ctx, newRequestConfig(http.MethodPost, url, body, cfg))
}

// Put implements Transport.
func (m *MockTransport) Put(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return m.Do(ctx, newRequestConfig(http.MethodPut, url, body, cfg))
}

// Delete implements Transport.
func (m *MockTransport) Delete(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return m.Do(ctx, newRequestConfig(http.MethodDelete, url, nil, cfg))
}

// Patch implements Transport.
func (m *MockTransport) Patch(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return m.Do(ctx, newRequestConfig(http.MethodPatch, url, body, cfg))
}

// Requests returns all request configs dispatched through this transport.
func (m *MockTransport) Requests() []*RequestConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*RequestConfig{}, m.requests...)
}

// RequestCount returns the number of dispatches made.
func (m *MockTransport) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// LastRequest returns the most recent request config, or nil if none.
func (m *MockTransport) LastRequest() *RequestConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears all recorded requests and stubs.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.stubs = nil
	m.defaultResp = nil
	m.defaultErr = nil
	m.requestHook = nil
}

func mockResponse(statusCode int, body string) *Response {
	return &Response{
		Status:     statusCode,
		StatusText: http.StatusText(statusCode),
		Headers:    make(http.Header),
		Body:       []byte(body),
	}
}

func cloneMockResponse(resp *Response, cfg *RequestConfig) *Response {
	out := &Response{
		Status:     resp.Status,
		StatusText: resp.StatusText,
		Headers:    resp.Headers.Clone(),
		Body:       append([]byte{}, resp.Body...),
		Config:     cfg,
	}
	return out
}
