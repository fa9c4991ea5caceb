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
)

const (
	amqpDialTimeout     = 5 * time.Second
	amqpPublishTimeout  = 5 * time.Second
	amqpReconnectDelay  = 10 * time.Second
	amqpQueueBufferSize = 256
)

// ErrPublishQueueFull is returned when events arrive faster than the broker
// accepts them.
var ErrPublishQueueFull = errors.New("rabbitmq publish queue full")

// AMQPPublisher forwards account events to a durable RabbitMQ queue as
// persistent JSON messages. Handle only enqueues; a background goroutine
// talks to the broker so requests never wait on it.
type AMQPPublisher struct {
	url    string
	queue  string
	logger *zap.Logger

	pending chan Event
	done    chan struct{}
	closing sync.Once

	// owned by the run loop after start
	conn        *amqp.Connection
	ch          *amqp.Channel
	lastAttempt time.Time
}

// NewAMQPPublisher dials the broker, declares the queue and starts the
// forwarding loop.
func NewAMQPPublisher(url, queue string, logger *zap.Logger) (*AMQPPublisher, error) {
	if url == "" {
		return nil, errors.New("rabbitmq url is empty")
	}
	p := newAMQPPublisher(url, queue, logger, amqpQueueBufferSize)
	if err := p.connect(); err != nil {
		return nil, err
	}
	go p.run()
	return p, nil
}

func newAMQPPublisher(url, queue string, logger *zap.Logger, buffer int) *AMQPPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPPublisher{
		url:     url,
		queue:   queue,
		logger:  logger,
		pending: make(chan Event, buffer),
		done:    make(chan struct{}),
	}
}

func (p *AMQPPublisher) connect() error {
	p.lastAttempt = time.Now()
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(amqpDialTimeout),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

// Handle queues the event for forwarding; it satisfies EventHandler.
func (p *AMQPPublisher) Handle(_ context.Context, event Event) error {
	select {
	case p.pending <- event:
		return nil
	default:
		return ErrPublishQueueFull
	}
}

func (p *AMQPPublisher) run() {
	defer close(p.done)
	for event := range p.pending {
		if err := p.publish(event); err != nil {
			p.logger.Warn("failed to forward account event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}
	p.closeConn()
}

func (p *AMQPPublisher) publish(event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if p.ch == nil || p.ch.IsClosed() {
		if time.Since(p.lastAttempt) < amqpReconnectDelay {
			return errors.New("rabbitmq unavailable")
		}
		p.closeConn()
		if err := p.connect(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), amqpPublishTimeout)
	defer cancel()
	return p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Type:         string(event.Type),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

func (p *AMQPPublisher) closeConn() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Attach subscribes the publisher to every account event.
func (p *AMQPPublisher) Attach(d Dispatcher) {
	for _, t := range AllEventTypes {
		d.Subscribe(t, p.Handle)
	}
}

// Close stops accepting events, forwards what is queued and releases the
// connection. Handle must not be called after Close.
func (p *AMQPPublisher) Close() error {
	p.closing.Do(func() { close(p.pending) })
	<-p.done
	return nil
}
