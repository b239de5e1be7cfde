package courier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottleRequester_Do(t *testing.T) {
	t.Run("given fail-fast mode over burst, then excess requests get ErrRateLimited", func(t *testing.T) {
		reg := NewRegistry()
		mock := NewMockTransport().StubResponse(200, "ok")
		reg.Inject(mock)

		throttled := NewThrottleRequester(reg, ThrottleConfig{
			RequestsPerSecond: 1,
			Burst:             2,
			WaitOnLimit:       false,
		})

		_, err := throttled.Get(context.Background(), "/a", nil)
		require.NoError(t, err)
		_, err = throttled.Get(context.Background(), "/a", nil)
		require.NoError(t, err)

		_, err = throttled.Get(context.Background(), "/a", nil)
		require.ErrorIs(t, err, ErrRateLimited)
		assert.Equal(t, 2, mock.RequestCount())
	})

	t.Run("given wait mode, then requests queue for a token", func(t *testing.T) {
		reg := NewRegistry()
		mock := NewMockTransport().StubResponse(200, "ok")
		reg.Inject(mock)

		throttled := NewThrottleRequester(reg, ThrottleConfig{
			RequestsPerSecond: 50,
			Burst:             1,
			WaitOnLimit:       true,
		})

		start := time.Now()
		for i := 0; i < 3; i++ {
			_, err := throttled.Get(context.Background(), "/a", nil)
			require.NoError(t, err)
		}

		// Burst covers the first call; the next two wait ~20ms each.
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
		assert.Equal(t, 3, mock.RequestCount())
	})

	t.Run("given wait mode with expired context, then the waiter fails", func(t *testing.T) {
		reg := NewRegistry()
		mock := NewMockTransport().StubResponse(200, "ok")
		reg.Inject(mock)

		throttled := NewThrottleRequester(reg, ThrottleConfig{
			RequestsPerSecond: 0.1,
			Burst:             1,
			WaitOnLimit:       true,
		})

		_, err := throttled.Get(context.Background(), "/a", nil)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err = throttled.Get(ctx, "/a", nil)
		require.Error(t, err)
		assert.Equal(t, 1, mock.RequestCount())
	})

	t.Run("given non-positive rate, then throttling is disabled", func(t *testing.T) {
		reg := NewRegistry()
		mock := NewMockTransport().StubResponse(200, "ok")
		reg.Inject(mock)

		throttled := NewThrottleRequester(reg, ThrottleConfig{RequestsPerSecond: 0})

		for i := 0; i < 20; i++ {
			_, err := throttled.Get(context.Background(), "/a", nil)
			require.NoError(t, err)
		}
		assert.Equal(t, 20, mock.RequestCount())
	})
}

func TestThrottleRequester_Stats(t *testing.T) {
	t.Run("given configured throttle, then stats expose the bucket", func(t *testing.T) {
		reg := NewRegistry()
		throttled := NewThrottleRequester(reg, DefaultThrottleConfig())

		stats := throttled.Stats()
		assert.Equal(t, float64(100), stats.Limit)
		assert.Equal(t, 10, stats.Burst)
	})

	t.Run("given disabled throttle, then stats are zero", func(t *testing.T) {
		reg := NewRegistry()
		throttled := NewThrottleRequester(reg, ThrottleConfig{})

		assert.Equal(t, ThrottleStats{}, throttled.Stats())
	})
}
