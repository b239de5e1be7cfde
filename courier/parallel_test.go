package courier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelRequester_Do(t *testing.T) {
	t.Run("given maxParallel of 2 and 5 calls, then at most 2 are in flight", func(t *testing.T) {
		reg := NewRegistry()

		var inFlight, peak atomic.Int32
		mock := NewMockTransport().OnRequest(func(*RequestConfig) {
			cur := inFlight.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
		}).StubResponse(200, "ok")
		reg.Inject(mock)

		bounded := NewParallelRequester(reg, 2)

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := bounded.Get(context.Background(), "/a", nil)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, 5, mock.RequestCount())
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("given maxParallel below one, then dispatch is fully serialized", func(t *testing.T) {
		reg := NewRegistry()

		var inFlight, peak atomic.Int32
		mock := NewMockTransport().OnRequest(func(*RequestConfig) {
			cur := inFlight.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
		}).StubResponse(200, "ok")
		reg.Inject(mock)

		bounded := NewParallelRequester(reg, 0)

		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := bounded.Get(context.Background(), "/a", nil)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), peak.Load())
	})

	t.Run("given context canceled while queued, then the waiter fails without dispatching", func(t *testing.T) {
		reg := NewRegistry()

		release := make(chan struct{})
		mock := NewMockTransport().OnRequest(func(*RequestConfig) {
			<-release
		}).StubResponse(200, "ok")
		reg.Inject(mock)

		bounded := NewParallelRequester(reg, 1)

		go func() {
			_, _ = bounded.Get(context.Background(), "/hold", nil)
		}()

		// Wait for the slot to be taken.
		require.Eventually(t, func() bool {
			return mock.RequestCount() == 1
		}, time.Second, time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := bounded.Get(ctx, "/queued", nil)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, mock.RequestCount())

		close(release)
	})

	t.Run("given an inner decorator, then dispatches route through it", func(t *testing.T) {
		reg := NewRegistry()
		var calls atomic.Int32
		mock := NewMockTransport().
			StubFuncError(func(*RequestConfig) bool {
				return calls.Add(1) == 1
			}, errors.New("connection reset")).
			StubResponse(200, "ok")
		reg.Inject(mock)

		retry := NewRetryRequester(reg, 2, WithRetryBackOff(fastBackOff))
		bounded := NewParallelRequester(reg, 2, WithParallelNext(retry))

		resp, err := bounded.Get(context.Background(), "/a", nil)
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.String())
		assert.Equal(t, 2, mock.RequestCount())
	})
}
