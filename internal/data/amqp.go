package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"KuroAccounts/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPublishNacked is returned when the broker refuses a message.
var ErrPublishNacked = errors.New("amqp: publish nacked by broker")

// ErrAMQPClosed is returned when the confirm stream ends.
var ErrAMQPClosed = errors.New("amqp: channel closed")

// amqpChannel is the subset of *amqp.Channel the bus uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	GetNextPublishSeqNo() uint64
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPBus publishes each channel to a durable topic exchange of the same
// name, with the event type as routing key, and waits for the broker confirm.
// Publishes are serialized so confirms can be matched by delivery tag.
type AMQPBus struct {
	conn     io.Closer
	ch       amqpChannel
	confirms <-chan amqp.Confirmation

	mu       sync.Mutex
	declared map[string]bool
	logger   *log.Helper
}

// DialAMQPBus connects to url and opens a channel in confirm mode.
func DialAMQPBus(url string, logger log.Logger) (*AMQPBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: enable confirms: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 64))

	return newAMQPBus(conn, ch, confirms, logger), nil
}

func newAMQPBus(conn io.Closer, ch amqpChannel, confirms <-chan amqp.Confirmation, logger log.Logger) *AMQPBus {
	return &AMQPBus{
		conn:     conn,
		ch:       ch,
		confirms: confirms,
		declared: make(map[string]bool),
		logger:   log.NewHelper(logger),
	}
}

// Publish implements EventBus.
func (b *AMQPBus) Publish(ctx context.Context, event *model.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.declared[event.Channel] {
		if err := b.ch.ExchangeDeclare(event.Channel, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("amqp: declare exchange %s: %w", event.Channel, err)
		}
		b.declared[event.Channel] = true
	}

	seq := b.ch.GetNextPublishSeqNo()
	err := b.ch.PublishWithContext(ctx, event.Channel, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.Timestamp,
		Type:         event.Type,
		Headers:      amqp.Table{"event-key": event.Key},
		Body:         event.Payload,
	})
	if err != nil {
		return fmt.Errorf("amqp: publish to %s: %w", event.Channel, err)
	}

	return b.waitForConfirm(ctx, seq)
}

// waitForConfirm skips confirms left over from publishes whose caller gave up.
func (b *AMQPBus) waitForConfirm(ctx context.Context, seq uint64) error {
	for {
		select {
		case confirmed, ok := <-b.confirms:
			if !ok {
				return ErrAMQPClosed
			}
			if confirmed.DeliveryTag < seq {
				continue
			}
			if !confirmed.Ack {
				return fmt.Errorf("%w: delivery_tag=%d", ErrPublishNacked, confirmed.DeliveryTag)
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("amqp: waiting for confirm: %w", ctx.Err())
		}
	}
}

// Close closes the channel and the connection.
func (b *AMQPBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.ch.Close()
	if b.conn != nil {
		if cerr := b.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
