// Package events publishes seat allocation events to RabbitMQ.
//
// Publishing is best effort: the ledger is the source of truth and a failed
// publish never rolls back a committed allocation.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-seating-api/pkg/config"
)

// Message is a single event routed to the configured queue.
type Message struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Publisher delivers messages. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// NopPublisher discards every message.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Message) error { return nil }
func (NopPublisher) Close() error                           { return nil }

type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type connection interface {
	Channel() (channel, error)
	Close() error
}

type dialFunc func(url string) (connection, error)

type amqpConnection struct{ conn *amqp.Connection }

func (c amqpConnection) Channel() (channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c amqpConnection) Close() error { return c.conn.Close() }

func dialAMQP(url string) (connection, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn: conn}, nil
}

const (
	dialTimeout = 3 * time.Second
	redialPause = 30 * time.Second
)

// ErrUnavailable is returned while the publisher waits before redialling.
var ErrUnavailable = errors.New("rabbitmq unavailable")

// RabbitPublisher keeps one connection and channel open, redialling lazily
// after a failure. Publishes are serialised because AMQP channels are not
// safe for concurrent use.
type RabbitPublisher struct {
	url    string
	queue  string
	dial   dialFunc
	logger *zap.Logger

	mu         sync.Mutex
	conn       connection
	ch         channel
	lastFailed time.Time
	now        func() time.Time
}

// NewPublisher returns a RabbitPublisher when events are enabled and a
// NopPublisher otherwise.
func NewPublisher(cfg config.EventsConfig, logger *zap.Logger) Publisher {
	if !cfg.Enabled {
		return NopPublisher{}
	}
	return newRabbitPublisher(cfg, dialAMQP, logger)
}

func newRabbitPublisher(cfg config.EventsConfig, dial dialFunc, logger *zap.Logger) *RabbitPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RabbitPublisher{url: cfg.RabbitMQURL, queue: cfg.Queue, dial: dial, logger: logger, now: time.Now}
}

// Publish sends msg as a persistent JSON message on the default exchange.
func (p *RabbitPublisher) Publish(ctx context.Context, msg Message) error {
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		p.logger.Warn("rabbitmq unavailable", zap.String("event", msg.Type), zap.Error(err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    msg.OccurredAt,
		Type:         msg.Type,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.logger.Warn("rabbitmq publish failed", zap.String("event", msg.Type), zap.Error(err))
		p.reset()
		return fmt.Errorf("publish %s: %w", msg.Type, err)
	}
	return nil
}

func (p *RabbitPublisher) ensureChannel() error {
	if p.ch != nil {
		return nil
	}
	if !p.lastFailed.IsZero() && p.now().Sub(p.lastFailed) < redialPause {
		return ErrUnavailable
	}
	conn, err := p.dial(p.url)
	if err != nil {
		p.lastFailed = p.now()
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		p.lastFailed = p.now()
		return fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		p.lastFailed = p.now()
		return fmt.Errorf("declare queue %s: %w", p.queue, err)
	}
	p.conn, p.ch = conn, ch
	p.lastFailed = time.Time{}
	return nil
}

func (p *RabbitPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
