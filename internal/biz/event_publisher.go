package biz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"KuroAccounts/internal/conf"
	"KuroAccounts/internal/data"
	"KuroAccounts/internal/model"
	pkglog "KuroAccounts/pkg/log"
	"KuroAccounts/pkg/retry"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrPublisherClosed is the outcome of events published after Close.
	ErrPublisherClosed = errors.New("event publisher is closed")
	// ErrPublishQueueFull is the outcome of events published while every
	// queue slot is taken.
	ErrPublishQueueFull = errors.New("event publish queue is full")
)

const (
	defaultPublishWorkers = 4
	defaultPublishQueue   = 1000
	defaultPublishTimeout = 30 * time.Second
)

// PublishOutcome is the terminal result of one event.
type PublishOutcome struct {
	Event     *model.DomainEvent
	Published bool
	Attempts  int
	Err       error
}

type publishJob struct {
	event         *model.DomainEvent
	correlationID string
	done          chan PublishOutcome
}

// EventPublisher delivers events to the event bus from a fixed pool of
// workers. Publish never blocks and never fails the caller; each event's
// outcome is counted, logged, recorded in the delivery log and sent on the
// channel returned by Publish. Events are delivered in no particular order.
type EventPublisher struct {
	bus        data.EventBus
	deliveries DeliveryLogger
	metrics    *Metrics
	policy     retry.Policy
	timeout    time.Duration

	queue  chan *publishJob
	mu     sync.RWMutex
	closed bool
	group  errgroup.Group

	now    func() time.Time
	logger *pkglog.LogHelper
}

// NewEventPublisher creates the publisher and starts its workers. The
// returned cleanup drains the queue and waits for in-flight deliveries.
func NewEventPublisher(c *conf.Events, bus data.EventBus, deliveries DeliveryLogger, metrics *Metrics, logger log.Logger) (*EventPublisher, func()) {
	workers, queueSize, timeout := defaultPublishWorkers, defaultPublishQueue, defaultPublishTimeout
	policy := retry.NewPolicy(3, 200*time.Millisecond)
	if c != nil {
		if c.Workers > 0 {
			workers = c.Workers
		}
		if c.QueueSize > 0 {
			queueSize = c.QueueSize
		}
		if c.PublishTimeout > 0 {
			timeout = c.PublishTimeout
		}
		if c.RetryCount > 0 {
			policy = retry.NewPolicy(c.RetryCount, c.RetryBackoff)
		}
	}

	p := &EventPublisher{
		bus:        bus,
		deliveries: deliveries,
		metrics:    metrics,
		policy:     policy,
		timeout:    timeout,
		queue:      make(chan *publishJob, queueSize),
		now:        time.Now,
		logger:     pkglog.NewLogHelper(logger),
	}

	for i := 0; i < workers; i++ {
		p.group.Go(func() error {
			for job := range p.queue {
				p.deliver(job)
			}
			return nil
		})
	}

	p.logger.Startup("event publisher started", "workers", workers, "queue_size", queueSize)
	return p, p.Close
}

// Publish stamps a new event with its id and time, and queues it for
// delivery. A payload implementing model.Stamper receives the same id and
// time before it is encoded. The returned channel yields exactly one outcome
// and is then closed; callers may ignore it.
func (p *EventPublisher) Publish(ctx context.Context, channel, eventType, key string, payload interface{}) (*model.DomainEvent, <-chan PublishOutcome) {
	event := &model.DomainEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Channel:   channel,
		Key:       key,
		Timestamp: p.now().UTC(),
	}
	job := &publishJob{
		event:         event,
		correlationID: pkglog.GetCorrelationID(ctx),
		done:          make(chan PublishOutcome, 1),
	}

	if stamper, ok := payload.(model.Stamper); ok {
		stamper.Stamp(event.ID, event.Timestamp)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		p.finish(job, 0, fmt.Errorf("failed to encode event payload: %w", err))
		return event, job.done
	}
	event.Payload = body

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.finish(job, 0, ErrPublisherClosed)
		return event, job.done
	}

	select {
	case p.queue <- job:
	default:
		p.finish(job, 0, ErrPublishQueueFull)
	}
	return event, job.done
}

// Close stops accepting events, delivers those already queued and waits for
// the workers. It is safe to call more than once.
func (p *EventPublisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	_ = p.group.Wait()
}

func (p *EventPublisher) deliver(job *publishJob) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	_, attempts, err := retry.Do(ctx, p.policy, func(ctx context.Context, _ int) (struct{}, error) {
		return struct{}{}, p.bus.Publish(ctx, job.event)
	}, func(attempt int, err error, next time.Duration) {
		p.logger.Warnw("msg", "event delivery failed, retrying",
			"event_id", job.event.ID,
			"event_type", job.event.Type,
			"attempt", attempt,
			"next_backoff", next.String(),
			"error", err)
	})

	p.finish(job, attempts, err)
}

func (p *EventPublisher) finish(job *publishJob, attempts int, err error) {
	ctx := context.Background()
	outcome := PublishOutcome{
		Event:     job.event,
		Published: err == nil,
		Attempts:  attempts,
		Err:       err,
	}

	p.metrics.RecordEvent(ctx, job.event.Type, outcome.Published)

	kvs := []interface{}{"channel", job.event.Channel, "key", job.event.Key}
	if job.correlationID != "" {
		kvs = append(kvs, "correlation_id", job.correlationID)
	}
	if err != nil {
		kvs = append(kvs, "error", err)
	}
	p.logger.Event(job.event.ID, job.event.Type, outcome.Published, attempts, kvs...)

	if p.deliveries != nil {
		p.deliveries.Record(ctx, job.event, outcome.Published, attempts, err)
	}

	job.done <- outcome
	close(job.done)
}
