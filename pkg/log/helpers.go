package log

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// LogHelper extends log.Helper with typed entries. Each helper sets a "type"
// field that the console encoder maps to an emoji.
type LogHelper struct {
	*log.Helper
}

// NewLogHelper creates a LogHelper.
func NewLogHelper(logger log.Logger) *LogHelper {
	return &LogHelper{Helper: log.NewHelper(logger)}
}

func withType(msg, typ string, kvs []interface{}) []interface{} {
	all := append([]interface{}{"msg", msg}, kvs...)
	return append(all, "type", typ)
}

// Startup logs a startup step.
func (h *LogHelper) Startup(msg string, kvs ...interface{}) {
	h.Infow(withType(msg, "startup", kvs)...)
}

// Account logs an account lifecycle step.
func (h *LogHelper) Account(msg string, kvs ...interface{}) {
	h.Infow(withType(msg, "account", kvs)...)
}

// Scheduler logs a cron job step.
func (h *LogHelper) Scheduler(msg string, kvs ...interface{}) {
	h.Infow(withType(msg, "scheduler", kvs)...)
}

// Circuit logs a circuit breaker transition.
func (h *LogHelper) Circuit(dependency, from, to string, kvs ...interface{}) {
	msg := fmt.Sprintf("circuit %s: %s -> %s", dependency, from, to)
	kvs = append(kvs, "dependency", dependency, "from", from, "to", to)
	h.Warnw(withType(msg, "circuit", kvs)...)
}

// Downstream logs the outcome of one downstream call.
func (h *LogHelper) Downstream(ctx context.Context, dependency, outcome string, latency time.Duration, attempts int, kvs ...interface{}) {
	correlationID := GetRequestContext(ctx).CorrelationID
	msg := fmt.Sprintf("[%s] %s -> %s in %dms (%d attempts)",
		correlationID, dependency, outcome, latency.Milliseconds(), attempts)
	kvs = append(kvs,
		"correlation_id", correlationID,
		"dependency", dependency,
		"outcome", outcome,
		"latency_ms", latency.Milliseconds(),
		"attempts", attempts,
	)
	if outcome == "success" {
		h.Debugw(withType(msg, "downstream", kvs)...)
		return
	}
	h.Warnw(withType(msg, "downstream", kvs)...)
}

// Event logs the terminal outcome of an event delivery.
func (h *LogHelper) Event(eventID, eventType string, published bool, attempts int, kvs ...interface{}) {
	status := "published"
	if !published {
		status = "failed"
	}
	msg := fmt.Sprintf("event %s (%s) %s after %d attempts", eventID, eventType, status, attempts)
	kvs = append(kvs, "event_id", eventID, "event_type", eventType, "attempts", attempts)
	if published {
		h.Infow(withType(msg, "event", kvs)...)
		return
	}
	h.Errorw(withType(msg, "event", kvs)...)
}

// Request logs an HTTP request and flags it as slow above one second.
func (h *LogHelper) Request(ctx context.Context, method, url string, status int, durationMs int64, kvs ...interface{}) {
	correlationID := GetRequestContext(ctx).CorrelationID
	msg := fmt.Sprintf("%s %s - %d (%dms) | CorrelationID: %s", method, url, status, durationMs, correlationID)
	kvs = append(kvs,
		"correlation_id", correlationID,
		"method", method,
		"url", url,
		"status", status,
		"duration_ms", durationMs,
	)
	h.Infow(withType(msg, "request", kvs)...)

	if durationMs > 1000 {
		h.Warnw(withType(fmt.Sprintf("[%s] slow request %s %s %dms", correlationID, method, url, durationMs),
			"slow_request", []interface{}{"correlation_id", correlationID, "duration_ms", durationMs})...)
	}
}

// CacheStats logs cache size and hit rate.
func (h *LogHelper) CacheStats(cacheName string, size, hits, misses int64, kvs ...interface{}) {
	var hitRate float64
	total := hits + misses
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	msg := fmt.Sprintf("cache stats - %s | size: %d, hit rate: %.2f%%", cacheName, size, hitRate)
	kvs = append(kvs,
		"cache_name", cacheName,
		"size", size,
		"hits", hits,
		"misses", misses,
		"hit_rate", fmt.Sprintf("%.2f%%", hitRate),
	)
	h.Infow(withType(msg, "cache_stats", kvs)...)
}
