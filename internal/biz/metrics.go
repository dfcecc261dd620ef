package biz

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "KuroAccounts/internal/biz"

// Metrics holds the otel instruments recorded by the usecases, the event
// publisher and the resilient clients.
type Metrics struct {
	eventsPublished  metric.Int64Counter
	eventsFailed     metric.Int64Counter
	accountsCreated  metric.Int64Counter
	creationErrors   metric.Int64Counter
	creationDuration metric.Float64Histogram
	totalAccounts    metric.Int64Gauge
	fallbacks        metric.Int64Counter
}

// NewMetrics creates the instruments on provider. A nil provider falls back
// to the global one.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	meter := provider.Meter(meterName)

	var (
		m   Metrics
		err error
	)

	m.eventsPublished, err = meter.Int64Counter(
		"events.published",
		metric.WithDescription("Number of events delivered to the event bus"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events.published counter: %w", err)
	}

	m.eventsFailed, err = meter.Int64Counter(
		"events.failed",
		metric.WithDescription("Number of events dropped after exhausting delivery attempts"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events.failed counter: %w", err)
	}

	m.accountsCreated, err = meter.Int64Counter(
		"accounts.created",
		metric.WithDescription("Number of accounts created"),
		metric.WithUnit("{account}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create accounts.created counter: %w", err)
	}

	m.creationErrors, err = meter.Int64Counter(
		"accounts.creation.errors",
		metric.WithDescription("Number of rejected account creations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create accounts.creation.errors counter: %w", err)
	}

	m.creationDuration, err = meter.Float64Histogram(
		"accounts.creation.duration",
		metric.WithDescription("Time taken to create an account"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create accounts.creation.duration histogram: %w", err)
	}

	m.totalAccounts, err = meter.Int64Gauge(
		"accounts.total.count",
		metric.WithDescription("Number of stored accounts"),
		metric.WithUnit("{account}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create accounts.total.count gauge: %w", err)
	}

	m.fallbacks, err = meter.Int64Counter(
		"downstream.fallbacks",
		metric.WithDescription("Number of downstream calls answered by the fallback"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create downstream.fallbacks counter: %w", err)
	}

	return &m, nil
}

// RecordEvent counts one terminal publish outcome.
func (m *Metrics) RecordEvent(ctx context.Context, eventType string, published bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("event.type", eventType))
	if published {
		m.eventsPublished.Add(ctx, 1, attrs)
		return
	}
	m.eventsFailed.Add(ctx, 1, attrs)
}

// RecordAccountCreated counts a created account.
func (m *Metrics) RecordAccountCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.accountsCreated.Add(ctx, 1)
}

// RecordCreationDuration records the time of one account creation, whether
// it succeeded or not.
func (m *Metrics) RecordCreationDuration(ctx context.Context, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.creationDuration.Record(ctx, elapsed.Seconds())
}

// RecordCreationError counts a rejected account creation.
func (m *Metrics) RecordCreationError(ctx context.Context, errorType string) {
	if m == nil {
		return
	}
	m.creationErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("error.type", errorType)))
}

// SetAccountCount sets the accounts.total.count gauge.
func (m *Metrics) SetAccountCount(ctx context.Context, count int64) {
	if m == nil {
		return
	}
	m.totalAccounts.Record(ctx, count)
}

// RecordFallback counts a downstream call answered by its fallback.
func (m *Metrics) RecordFallback(ctx context.Context, dependency string) {
	if m == nil {
		return
	}
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("dependency", dependency)))
}
