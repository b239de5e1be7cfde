package courier

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	gobreakerredis "github.com/sony/gobreaker/v2/redis"
)

// NewRedisBreakerStore creates a SharedDataStore backed by Redis for
// distributed circuit breaking, using the official sony/gobreaker/v2/redis
// implementation.
//
// Usage:
//
//	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"localhost:6379"}})
//	store := courier.NewRedisBreakerStore(rdb)
func NewRedisBreakerStore(client redis.UniversalClient) gobreaker.SharedDataStore {
	return gobreakerredis.NewStoreFromClient(client)
}

// BreakerClassifier determines whether a dispatch outcome counts as a
// failure toward tripping the circuit.
type BreakerClassifier func(resp *Response, err error) bool

// BreakerConfig holds the configuration for the circuit breaker.
//
// Concepts:
//   - Closed: Normal state, requests allowed.
//   - Open: Failing state, requests rejected immediately.
//   - Half-Open: Probing state, limited requests allowed to test recovery.
type BreakerConfig struct {
	// Name identifies the breaker in state-change callbacks and in the
	// shared store. Defaults to "courier".
	Name string

	// MaxRequests is the maximum number of requests allowed to pass
	// through while the breaker is half-open. If 0, one request is
	// allowed.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for clearing the
	// internal counts. If 0, counts are never cleared while closed.
	Interval time.Duration

	// Timeout is the period of the open state, after which the breaker
	// becomes half-open.
	Timeout time.Duration

	// FailureThreshold is the minimum number of requests needed before
	// the ratio rule can trip the circuit.
	FailureThreshold uint32

	// FailureRatio is the failure ratio (0.0 - 1.0) that trips the
	// circuit once FailureThreshold is met.
	FailureRatio float64

	// ConsecutiveFailures trips the circuit after this many sequential
	// failures. If 0, the rule is disabled.
	ConsecutiveFailures uint32

	// Store is the shared data store for distributed circuit breaking.
	// If nil, the breaker is local to the process.
	Store gobreaker.SharedDataStore

	// Classifier determines which outcomes count as failures.
	// Default: DefaultBreakerClassifier.
	Classifier BreakerClassifier

	// OnStateChange is invoked when the breaker changes state.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns a safe default for a local breaker:
// counts clear every 10s, the open state lasts 10s, and the circuit
// trips on 5 consecutive failures or a 50% failure rate over at least
// 20 requests.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "courier",
		MaxRequests:         1,
		Interval:            10 * time.Second,
		Timeout:             10 * time.Second,
		FailureThreshold:    20,
		FailureRatio:        0.5,
		ConsecutiveFailures: 5,
		Classifier:          DefaultBreakerClassifier,
	}
}

// DistributedBreakerConfig returns a configuration for a breaker whose
// state is shared across processes through store. If one instance trips
// the breaker, all instances stop sending requests to the failing
// service.
func DistributedBreakerConfig(store gobreaker.SharedDataStore) BreakerConfig {
	cfg := DefaultBreakerConfig()
	cfg.Store = store
	return cfg
}

// DefaultBreakerClassifier counts server errors, timeouts and network
// errors as failures. Client errors and 429s are excluded; they signal
// caller problems and backpressure, not a failing service.
func DefaultBreakerClassifier(resp *Response, err error) bool {
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			switch reqErr.Kind {
			case ErrorKindServer, ErrorKindNetwork, ErrorKindTimeout:
				return reqErr.StatusCode != http.StatusTooManyRequests
			}
			return false
		}
		return false
	}
	return resp != nil && resp.Status >= 500
}

// circuitBreaker matches both gobreaker.CircuitBreaker and
// gobreaker.DistributedCircuitBreaker.
type circuitBreaker interface {
	Execute(req func() (*Response, error)) (*Response, error)
}

// BreakerRequester wraps the registry's requester in a circuit breaker.
// When the failure pattern trips the circuit, dispatches fail fast with
// ErrCircuitOpen until the open period elapses.
type BreakerRequester struct {
	reg        *Registry
	breaker    circuitBreaker
	local      *gobreaker.CircuitBreaker[*Response]
	classifier BreakerClassifier
	name       string
}

// errBreakerFailure signals the breaker that an outcome counted as a
// failure even though the original error must still reach the caller
// unchanged. It never escapes Do.
var errBreakerFailure = errors.New("breaker failure")

// excusedError carries a dispatch error the classifier did not count as
// a failure through the breaker without tripping it. Do unwraps it
// before returning, so the caller sees the original error. It never
// escapes Do.
type excusedError struct {
	err error
}

func (e *excusedError) Error() string { return e.err.Error() }

func (e *excusedError) Unwrap() error { return e.err }

// NewBreakerRequester wraps reg's requester with cfg's circuit breaker.
func NewBreakerRequester(reg *Registry, cfg BreakerConfig) *BreakerRequester {
	name := cfg.Name
	if name == "" {
		name = "courier"
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = DefaultBreakerClassifier
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		// The classifier alone decides what counts as a failure. Errors it
		// excused come back wrapped and must count as successes here.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var excused *excusedError
			return errors.As(err, &excused)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.FailureThreshold > 0 && counts.Requests < cfg.FailureThreshold {
				return false
			}
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if cfg.FailureRatio > 0 && counts.TotalFailures > 0 {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				if ratio >= cfg.FailureRatio {
					return true
				}
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			reg.log.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}

	var cb circuitBreaker
	var local *gobreaker.CircuitBreaker[*Response]
	if cfg.Store != nil {
		dcb, err := gobreaker.NewDistributedCircuitBreaker[*Response](cfg.Store, st)
		if err != nil {
			// A local breaker still protects this process, at the cost of
			// each instance probing the failing service independently.
			reg.log.Warn().Err(err).Msg("distributed breaker unavailable, using local breaker")
			local = gobreaker.NewCircuitBreaker[*Response](st)
			cb = local
		} else {
			cb = dcb
		}
	} else {
		local = gobreaker.NewCircuitBreaker[*Response](st)
		cb = local
	}

	return &BreakerRequester{
		reg:        reg,
		breaker:    cb,
		local:      local,
		classifier: classifier,
		name:       name,
	}
}

// Do implements Transport.
func (d *BreakerRequester) Do(ctx context.Context, cfg *RequestConfig) (*Response, error) {
	resp, err := d.breaker.Execute(func() (*Response, error) {
		resp, dispatchErr := d.reg.Requester().Do(ctx, cfg)

		if d.classifier(resp, dispatchErr) {
			if dispatchErr != nil {
				return resp, dispatchErr
			}
			return resp, errBreakerFailure
		}
		if dispatchErr != nil {
			return resp, &excusedError{err: dispatchErr}
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		var excused *excusedError
		if errors.As(err, &excused) {
			return resp, excused.err
		}
		if errors.Is(err, errBreakerFailure) {
			return resp, nil
		}
		return nil, err
	}
	return resp, nil
}

// Get implements Transport.
func (d *BreakerRequester) Get(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodGet, url, nil, cfg))
}

// Post implements Transport.
func (d *BreakerRequester) Post(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPost, url, body, cfg))
}

// Put implements Transport.
func (d *BreakerRequester) Put(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPut, url, body, cfg))
}

// Delete implements Transport.
func (d *BreakerRequester) Delete(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodDelete, url, nil, cfg))
}

// Patch implements Transport.
func (d *BreakerRequester) Patch(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, newRequestConfig(http.MethodPatch, url, body, cfg))
}

// State reports the breaker's current state. Distributed breakers keep
// their state in the shared store; for those the local view is not
// available and State reports closed.
func (d *BreakerRequester) State() gobreaker.State {
	if d.local == nil {
		return gobreaker.StateClosed
	}
	return d.local.State()
}
