package courier

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Requester is the base dispatcher behind every decorator. On each call
// it resolves the registry's active transport, overlays the global
// defaults onto the per-call config, and dispatches with tracing and
// metrics around the attempt. Because resolution happens per call, a
// transport injected or a global set after the Requester was built still
// takes effect.
type Requester struct {
	reg *Registry
}

// Do implements Transport.
func (q *Requester) Do(ctx context.Context, cfg *RequestConfig) (*Response, error) {
	transport, err := q.reg.Active()
	if err != nil {
		return nil, err
	}

	merged := q.mergeConfig(cfg)
	requestID := uuid.NewString()

	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", merged.Method),
		attribute.String("url.full", merged.URL),
	}

	ctx, span := q.reg.tracer.Start(ctx, "http.client.dispatch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
		trace.WithAttributes(attribute.String("http.request.id", requestID)),
	)
	defer span.End()

	q.reg.metrics.recordActiveRequestStart(ctx, attrs)
	start := time.Now()

	if q.reg.debug {
		q.reg.log.Debug().
			Str("request_id", requestID).
			Str("method", merged.Method).
			Str("url", merged.URL).
			Msg("dispatching request")
	}

	resp, err := transport.Do(ctx, merged)

	elapsed := time.Since(start)
	q.reg.metrics.recordActiveRequestEnd(ctx, attrs)
	q.reg.metrics.recordRequestDuration(ctx, elapsed, attrs)

	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			if reqErr.RequestID == "" {
				reqErr.RequestID = requestID
			}
			q.reg.metrics.recordError(ctx, string(reqErr.Kind), attrs)
		} else {
			q.reg.metrics.recordError(ctx, "other", attrs)
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		q.reg.log.Debug().
			Str("request_id", requestID).
			Str("method", merged.Method).
			Str("url", merged.URL).
			Dur("duration", elapsed).
			Err(err).
			Msg("request failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))

	if q.reg.debug {
		q.reg.log.Debug().
			Str("request_id", requestID).
			Int("status", resp.Status).
			Dur("duration", elapsed).
			Msg("request complete")
	}

	return resp, nil
}

// Get implements Transport.
func (q *Requester) Get(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return q.Do(ctx, newRequestConfig(http.MethodGet, url, nil, cfg))
}

// Post implements Transport.
func (q *Requester) Post(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return q.Do(ctx, newRequestConfig(http.MethodPost, url, body, cfg))
}

// Put implements Transport.
func (q *Requester) Put(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return q.Do(ctx, newRequestConfig(http.MethodPut, url, body, cfg))
}

// Delete implements Transport.
func (q *Requester) Delete(ctx context.Context, url string, cfg *RequestConfig) (*Response, error) {
	return q.Do(ctx, newRequestConfig(http.MethodDelete, url, nil, cfg))
}

// Patch implements Transport.
func (q *Requester) Patch(ctx context.Context, url string, body any, cfg *RequestConfig) (*Response, error) {
	return q.Do(ctx, newRequestConfig(http.MethodPatch, url, body, cfg))
}

// mergeConfig overlays the global defaults onto the per-call config.
// Per-call values always win; globals only fill gaps. The input is never
// mutated.
func (q *Requester) mergeConfig(cfg *RequestConfig) *RequestConfig {
	global := q.reg.Global()

	merged := cfg.clone()
	if merged.Method == "" {
		merged.Method = http.MethodGet
	}
	merged.URL = joinBaseURL(global.BaseURL, merged.URL)

	if len(global.Headers) > 0 {
		if merged.Headers == nil {
			merged.Headers = make(map[string]string, len(global.Headers))
		}
		for k, v := range global.Headers {
			if _, ok := merged.Headers[k]; !ok {
				merged.Headers[k] = v
			}
		}
	}

	if merged.Timeout == 0 {
		merged.Timeout = global.Timeout
	}

	return merged
}

// joinBaseURL prefixes path with base, normalizing exactly one slash at
// the boundary. Absolute URLs and paths already carrying the base pass
// through unchanged.
func joinBaseURL(base, path string) string {
	if base == "" {
		return path
	}
	if strings.Contains(path, "://") {
		return path
	}
	if strings.HasPrefix(path, base) {
		return path
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
