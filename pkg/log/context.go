package log

import (
	"context"
	"math/rand/v2"
	"time"
)

type contextKey string

const requestContextKey contextKey = "kuro_request_context"

const base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"

// RequestContext carries tracing information for one inbound request.
type RequestContext struct {
	CorrelationID string
	Operation     string
	StartTime     time.Time
}

// GenerateCorrelationID returns a 12 character base36 identifier.
func GenerateCorrelationID() string {
	b := make([]byte, 12)
	for i := range b {
		b[i] = base36Chars[rand.IntN(len(base36Chars))]
	}
	return string(b)
}

// WithRequestContext stores the request tracing information in ctx.
func WithRequestContext(ctx context.Context, correlationID, operation string) context.Context {
	return context.WithValue(ctx, requestContextKey, &RequestContext{
		CorrelationID: correlationID,
		Operation:     operation,
		StartTime:     time.Now(),
	})
}

// GetRequestContext returns the RequestContext stored in ctx, or an empty one
// with CorrelationID "unknown".
func GetRequestContext(ctx context.Context) *RequestContext {
	if ctx != nil {
		if reqCtx, ok := ctx.Value(requestContextKey).(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{CorrelationID: "unknown"}
}

// GetCorrelationID returns the correlation id stored in ctx, or "" when none was set.
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if reqCtx, ok := ctx.Value(requestContextKey).(*RequestContext); ok {
		return reqCtx.CorrelationID
	}
	return ""
}

// GetElapsedTime returns the milliseconds since the request started.
func GetElapsedTime(ctx context.Context) int64 {
	reqCtx := GetRequestContext(ctx)
	if reqCtx.StartTime.IsZero() {
		return 0
	}
	return time.Since(reqCtx.StartTime).Milliseconds()
}
