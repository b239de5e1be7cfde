package courier

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPAdapter_Do(t *testing.T) {
	t.Run("given JSON body, then it is encoded with content type", func(t *testing.T) {
		var gotBody string
		var gotContentType string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
			gotContentType = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"a1"}`))
		}))
		defer srv.Close()

		adapter := NewAdapter(AdapterBasic)
		resp, err := adapter.Post(context.Background(), srv.URL+"/articles", map[string]string{"title": "hello"}, nil)
		require.NoError(t, err)

		assert.Equal(t, 201, resp.Status)
		assert.Equal(t, "application/json", gotContentType)
		assert.JSONEq(t, `{"title":"hello"}`, gotBody)
	})

	t.Run("given form body, then it is form encoded", func(t *testing.T) {
		var gotContentType string
		var gotBody string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
			gotContentType = r.Header.Get("Content-Type")
		}))
		defer srv.Close()

		adapter := NewAdapter(AdapterBasic)
		_, err := adapter.Post(context.Background(), srv.URL, url.Values{"k": {"v"}}, nil)
		require.NoError(t, err)

		assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
		assert.Equal(t, "k=v", gotBody)
	})

	t.Run("given string body, then it is sent as plain text", func(t *testing.T) {
		var gotContentType string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotContentType = r.Header.Get("Content-Type")
		}))
		defer srv.Close()

		adapter := NewAdapter(AdapterBasic)
		_, err := adapter.Post(context.Background(), srv.URL, "raw text", nil)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(gotContentType, "text/plain"))
	})

	t.Run("given reader body, then bytes stream through unchanged", func(t *testing.T) {
		var gotBody string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
		}))
		defer srv.Close()

		adapter := NewAdapter(AdapterBasic)
		_, err := adapter.Post(context.Background(), srv.URL, strings.NewReader("streamed"), nil)
		require.NoError(t, err)
		assert.Equal(t, "streamed", gotBody)
	})

	t.Run("given params, then they land in the query string", func(t *testing.T) {
		var gotQuery url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query()
		}))
		defer srv.Close()

		adapter := NewAdapter(AdapterBasic)
		_, err := adapter.Get(context.Background(), srv.URL+"/search?page=2", &RequestConfig{
			Params: map[string]string{"q": "term"},
		})
		require.NoError(t, err)

		assert.Equal(t, "term", gotQuery.Get("q"))
		assert.Equal(t, "2", gotQuery.Get("page"))
	})

	t.Run("given headers, then they are sent", func(t *testing.T) {
		var gotHeader string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotHeader = r.Header.Get("X-Custom")
		}))
		defer srv.Close()

		adapter := NewAdapter(AdapterBasic)
		_, err := adapter.Get(context.Background(), srv.URL, &RequestConfig{
			Headers: map[string]string{"X-Custom": "yes"},
		})
		require.NoError(t, err)
		assert.Equal(t, "yes", gotHeader)
	})

	t.Run("given 404, then a client-kind error carries the response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		}))
		defer srv.Close()

		adapter := NewAdapter(AdapterBasic)
		_, err := adapter.Get(context.Background(), srv.URL+"/missing", nil)

		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, ErrorKindClient, reqErr.Kind)
		assert.Equal(t, 404, reqErr.StatusCode)
		require.NotNil(t, reqErr.Response)
		assert.JSONEq(t, `{"error":"not found"}`, reqErr.Response.String())
	})

	t.Run("given 500, then the error kind is server", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		adapter := NewAdapter(AdapterBasic)
		_, err := adapter.Get(context.Background(), srv.URL, nil)

		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, ErrorKindServer, reqErr.Kind)
	})

	t.Run("given slow upstream and short timeout, then a timeout error is raised", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		adapter := NewAdapter(AdapterBasic)
		_, err := adapter.Get(context.Background(), srv.URL, &RequestConfig{
			Timeout: 10 * time.Millisecond,
		})

		require.Error(t, err)
		assert.True(t, IsTimeout(err), "want timeout error, got %v", err)
	})

	t.Run("given unreachable host, then the error kind is network", func(t *testing.T) {
		adapter := NewAdapter(AdapterBasic)
		_, err := adapter.Get(context.Background(), "http://127.0.0.1:1", nil)

		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, ErrorKindNetwork, reqErr.Kind)
	})

	t.Run("given canceled caller context, then cancellation passes through", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(time.Second)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		adapter := NewAdapter(AdapterBasic)
		_, err := adapter.Get(ctx, srv.URL, nil)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("given empty config, then dispatch fails", func(t *testing.T) {
		adapter := NewAdapter(AdapterBasic)
		_, err := adapter.Do(context.Background(), nil)
		require.Error(t, err)
	})

	t.Run("given pooled adapter, then it dispatches like the basic one", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("pooled"))
		}))
		defer srv.Close()

		adapter := NewAdapter(AdapterPooled, WithConfig(LowLatencyConfig()))
		resp, err := adapter.Get(context.Background(), srv.URL, nil)
		require.NoError(t, err)
		assert.Equal(t, "pooled", resp.String())
	})
}

func TestResponse_Decode(t *testing.T) {
	t.Run("given JSON body, then Decode unmarshals it", func(t *testing.T) {
		resp := &Response{Body: []byte(`{"name":"x","count":3}`)}

		var out struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		}
		require.NoError(t, resp.Decode(&out))
		assert.Equal(t, "x", out.Name)
		assert.Equal(t, 3, out.Count)
	})

	t.Run("given 2xx statuses, then IsSuccess is true", func(t *testing.T) {
		assert.True(t, (&Response{Status: 200}).IsSuccess())
		assert.True(t, (&Response{Status: 204}).IsSuccess())
		assert.False(t, (&Response{Status: 301}).IsSuccess())
		assert.False(t, (&Response{Status: 404}).IsSuccess())
	})
}
