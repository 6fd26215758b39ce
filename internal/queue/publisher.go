package queue

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

// DefaultQueue receives every reservation lifecycle event.
const DefaultQueue = "reservation.events"

const (
	// DefaultDialTimeout bounds one connection attempt including the AMQP
	// handshake.
	DefaultDialTimeout = 2 * time.Second
	redialBackoff      = 5 * time.Second
)

// ErrBrokerUnavailable is returned while another publish is connecting or
// a failed connection attempt is still backing off.
var ErrBrokerUnavailable = errors.New("rabbitmq unavailable")

// Publisher sends reservation events to a durable RabbitMQ queue.  The
// connection is dialled on first use and re-dialled after it drops.
// Errors are logged and returned so callers can choose to ignore them
// without interrupting the request.  The dial runs outside the lock and
// is bounded by the dial timeout and the caller's deadline, so a dead
// broker costs one publish at most that long and the others fail fast.
type Publisher struct {
	url         string
	queue       string
	dialTimeout time.Duration
	log         *zap.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	dialing bool
	retryAt time.Time
	closed  bool
}

// NewPublisher returns a Publisher for the broker at url.  An empty queue
// name selects DefaultQueue and a non-positive timeout DefaultDialTimeout.
func NewPublisher(url, queue string, dialTimeout time.Duration, log *zap.Logger) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	return &Publisher{url: url, queue: queue, dialTimeout: dialTimeout, log: log.Named("publisher")}
}

// Publish marshals ev and publishes it as a persistent message.
func (p *Publisher) Publish(ctx context.Context, ev ReservationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ch, err := p.channel(ctx)
	if err != nil {
		p.log.Warn("rabbitmq unavailable", zap.String("type", string(ev.Type)), zap.Error(err))
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    ev.ID,
		Type:         string(ev.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.log.Warn("rabbitmq publish failed", zap.String("type", string(ev.Type)), zap.Error(err))
		p.mu.Lock()
		if p.ch == ch {
			p.reset()
		}
		p.mu.Unlock()
		return err
	}
	return nil
}

// Close releases the broker connection.  Publishes after Close fail.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	return err
}

// channel returns an open channel.  Only one caller dials at a time and
// the lock is not held while it does.
func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return nil, errors.New("publisher closed")
	case p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed():
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	case p.dialing:
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: connection in progress", ErrBrokerUnavailable)
	case time.Now().Before(p.retryAt):
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: retrying after %s", ErrBrokerUnavailable, p.retryAt.Format(time.RFC3339))
	}
	p.reset()
	p.dialing = true
	p.mu.Unlock()

	conn, ch, err := p.connect(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false
	if err != nil {
		p.retryAt = time.Now().Add(redialBackoff)
		return nil, err
	}
	if p.closed {
		_ = conn.Close()
		return nil, errors.New("publisher closed")
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// connect dials the broker and declares the queue.  The attempt ends at
// the dial timeout or the context deadline, whichever comes first.
func (p *Publisher) connect(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	timeout := p.dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, nil, fmt.Errorf("dial: %w", context.DeadlineExceeded)
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Dial:      amqp.DefaultDial(timeout),
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	if err := declare(ch, p.queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// reset drops the current connection.  Must be called with mu held.
func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// declare makes sure the durable queue exists.  It is idempotent.
func declare(ch *amqp.Channel, queue string) error {
	if queue == "" {
		return errors.New("queue name is empty")
	}
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}
