package courier

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func fastBackOff() backoff.BackOff {
	return &LinearBackOff{Initial: time.Millisecond, Increment: time.Millisecond}
}

func TestLinearBackOff(t *testing.T) {
	t.Run("given step of 1s, then waits grow 1s 2s 3s", func(t *testing.T) {
		b := NewLinearBackOff(time.Second)

		assert.Equal(t, 1*time.Second, b.NextBackOff())
		assert.Equal(t, 2*time.Second, b.NextBackOff())
		assert.Equal(t, 3*time.Second, b.NextBackOff())
	})

	t.Run("given reset, then schedule restarts", func(t *testing.T) {
		b := NewLinearBackOff(time.Second)
		b.NextBackOff()
		b.NextBackOff()
		b.Reset()

		assert.Equal(t, 1*time.Second, b.NextBackOff())
	})
}

func TestRetryRequester_Do(t *testing.T) {
	t.Run("given failures before the last attempt, then final success is returned", func(t *testing.T) {
		reg := NewRegistry()
		var calls atomic.Int32
		mock := NewMockTransport().
			StubFuncError(func(*RequestConfig) bool {
				return calls.Add(1) < 3
			}, errors.New("connection reset")).
			StubResponse(200, "ok")
		reg.Inject(mock)

		retry := NewRetryRequester(reg, 3, WithRetryBackOff(fastBackOff))

		resp, err := retry.Get(context.Background(), "/a", nil)
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.String())
		assert.Equal(t, 3, mock.RequestCount())
	})

	t.Run("given persistent failure, then rejects after exactly maxAttempts", func(t *testing.T) {
		reg := NewRegistry()
		wantErr := errors.New("connection reset")
		mock := NewMockTransport().StubError(wantErr)
		reg.Inject(mock)

		retry := NewRetryRequester(reg, 4, WithRetryBackOff(fastBackOff))

		_, err := retry.Get(context.Background(), "/a", nil)
		require.ErrorIs(t, err, wantErr)
		assert.Equal(t, 4, mock.RequestCount())
	})

	t.Run("given no transport configured, then fails immediately without retries", func(t *testing.T) {
		reg := NewRegistry()
		retry := NewRetryRequester(reg, 5, WithRetryBackOff(fastBackOff))

		start := time.Now()
		_, err := retry.Get(context.Background(), "/a", nil)
		require.ErrorIs(t, err, ErrNotConfigured)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("given canceled context, then no further attempts are made", func(t *testing.T) {
		reg := NewRegistry()
		ctx, cancel := context.WithCancel(context.Background())
		mock := NewMockTransport().OnRequest(func(*RequestConfig) {
			cancel()
		}).StubError(errors.New("connection reset"))
		reg.Inject(mock)

		retry := NewRetryRequester(reg, 5, WithRetryBackOff(fastBackOff))

		_, err := retry.Get(ctx, "/a", nil)
		require.Error(t, err)
		assert.Equal(t, 1, mock.RequestCount())
	})

	t.Run("given maxAttempts below one, then a single attempt is made", func(t *testing.T) {
		reg := NewRegistry()
		mock := NewMockTransport().StubError(errors.New("boom"))
		reg.Inject(mock)

		retry := NewRetryRequester(reg, 0, WithRetryBackOff(fastBackOff))

		_, err := retry.Get(context.Background(), "/a", nil)
		require.Error(t, err)
		assert.Equal(t, 1, mock.RequestCount())
	})

	t.Run("given spent attempt budget, then exhaustion is counted once", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer mp.Shutdown(context.Background())

		reg := NewRegistry(WithMeterProvider(mp))
		mock := NewMockTransport().StubError(errors.New("connection reset"))
		reg.Inject(mock)

		retry := NewRetryRequester(reg, 2, WithRetryBackOff(fastBackOff))

		_, err := retry.Get(context.Background(), "/a", nil)
		require.Error(t, err)
		assert.Contains(t, metricNames(collectMetrics(t, reader)), "http.client.retry.exhausted")
	})

	t.Run("given permanent first-attempt failure, then no exhaustion is counted", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer mp.Shutdown(context.Background())

		reg := NewRegistry(WithMeterProvider(mp))
		retry := NewRetryRequester(reg, 1, WithRetryBackOff(fastBackOff))

		_, err := retry.Get(context.Background(), "/a", nil)
		require.ErrorIs(t, err, ErrNotConfigured)
		assert.NotContains(t, metricNames(collectMetrics(t, reader)), "http.client.retry.exhausted")
	})

	t.Run("given transport swapped between attempts, then later attempts use the new one", func(t *testing.T) {
		reg := NewRegistry()
		failing := NewMockTransport().StubError(errors.New("connection reset"))
		working := NewMockTransport().StubResponse(200, "recovered")
		reg.Inject(failing)

		swapped := false
		failing.OnRequest(func(*RequestConfig) {
			if !swapped {
				swapped = true
				reg.Inject(working)
			}
		})

		retry := NewRetryRequester(reg, 3, WithRetryBackOff(fastBackOff))

		resp, err := retry.Get(context.Background(), "/a", nil)
		require.NoError(t, err)
		assert.Equal(t, "recovered", resp.String())
		assert.Equal(t, 1, failing.RequestCount())
		assert.Equal(t, 1, working.RequestCount())
	})
}
