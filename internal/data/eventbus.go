package data

import (
	"context"
	"fmt"

	"KuroAccounts/internal/conf"
	"KuroAccounts/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// Event bus drivers.
const (
	EventDriverRedis = "redis"
	EventDriverAMQP  = "amqp"
	EventDriverLog   = "log"
)

// streamMaxLen caps each Redis stream, trimmed approximately.
const streamMaxLen = 100000

// EventBus delivers one event to the broker. Publish must be safe for
// concurrent use.
type EventBus interface {
	Publish(ctx context.Context, event *model.DomainEvent) error
}

// NewEventBus builds the bus selected by c.Driver.
func NewEventBus(c *conf.Events, rdb *redis.Client, logger log.Logger) (EventBus, func(), error) {
	driver := EventDriverRedis
	if c != nil && c.Driver != "" {
		driver = c.Driver
	}

	switch driver {
	case EventDriverRedis:
		if rdb == nil {
			return nil, nil, fmt.Errorf("event bus: redis driver selected but %w", ErrRedisUnavailable)
		}
		return NewRedisStreamBus(rdb, logger), func() {}, nil
	case EventDriverAMQP:
		bus, err := DialAMQPBus(c.AMQPURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return bus, func() {
			if err := bus.Close(); err != nil {
				log.NewHelper(logger).Errorf("failed to close AMQP bus: %v", err)
			}
		}, nil
	case EventDriverLog:
		return NewLogBus(logger), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("event bus: unknown driver %q", driver)
	}
}

// RedisStreamBus appends each event to a Redis stream named after its channel.
type RedisStreamBus struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewRedisStreamBus creates a Redis Streams event bus.
func NewRedisStreamBus(rdb *redis.Client, logger log.Logger) *RedisStreamBus {
	return &RedisStreamBus{
		rdb:    rdb,
		logger: log.NewHelper(logger),
	}
}

// Publish implements EventBus.
func (b *RedisStreamBus) Publish(ctx context.Context, event *model.DomainEvent) error {
	id, err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: event.Channel,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":        event.ID,
			"type":      event.Type,
			"key":       event.Key,
			"timestamp": event.Timestamp.UnixMilli(),
			"payload":   string(event.Payload),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", event.Channel, err)
	}

	b.logger.Debugw("msg", "event appended to stream", "stream", event.Channel, "entry_id", id, "event_id", event.ID)
	return nil
}

// LogBus only logs events. It is meant for local runs without a broker.
type LogBus struct {
	logger *log.Helper
}

// NewLogBus creates a log-only event bus.
func NewLogBus(logger log.Logger) *LogBus {
	return &LogBus{
		logger: log.NewHelper(logger),
	}
}

// Publish implements EventBus.
func (b *LogBus) Publish(_ context.Context, event *model.DomainEvent) error {
	b.logger.Infow("msg", "event published (log bus)",
		"event_id", event.ID,
		"event_type", event.Type,
		"channel", event.Channel,
		"key", event.Key,
		"payload", string(event.Payload))
	return nil
}
