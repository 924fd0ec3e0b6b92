// Package service holds outbound integrations used by the HTTP layer.  The
// event publisher pushes auth activity to RabbitMQ.  Errors are logged and
// returned so callers can ignore failures without interrupting the request
// flow.
package service

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"

    q "github.com/iliyamo/shop-auth-api/internal/queue"
)

// Publisher emits auth events.
type Publisher interface {
    Publish(ctx context.Context, ev q.AuthEvent) error
    Close() error
}

// ErrPublisherUnavailable is returned while a failed dial is cooling down.
var ErrPublisherUnavailable = errors.New("event publisher unavailable")

const (
    dialTimeout   = 5 * time.Second
    retryCooldown = 5 * time.Second
)

// EventPublisher keeps one broker connection and channel for the lifetime of
// the process.  The connection is dialled lazily and dropped on any publish
// error so the next call reconnects.  After a failed dial, publishes fail
// fast until retryCooldown has passed.
type EventPublisher struct {
    url   string
    queue string
    log   *logrus.Logger

    lock    chan struct{} // one-slot semaphore; waiters give up with their ctx
    conn    *amqp.Connection
    ch      *amqp.Channel
    retryAt time.Time
    now     func() time.Time
}

// NewEventPublisher builds a publisher for queue on the broker at url.
func NewEventPublisher(url, queue string, log *logrus.Logger) *EventPublisher {
    return &EventPublisher{url: url, queue: queue, log: log, lock: make(chan struct{}, 1), now: time.Now}
}

func (p *EventPublisher) acquire(ctx context.Context) error {
    select {
    case p.lock <- struct{}{}:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

func (p *EventPublisher) release() { <-p.lock }

func (p *EventPublisher) channel(ctx context.Context) (*amqp.Channel, error) {
    if p.ch != nil && !p.ch.IsClosed() {
        return p.ch, nil
    }
    p.resetLocked()
    if p.now().Before(p.retryAt) {
        return nil, ErrPublisherUnavailable
    }

    timeout := dialTimeout
    if dl, ok := ctx.Deadline(); ok {
        if left := time.Until(dl); left < timeout {
            timeout = left
        }
    }
    if timeout <= 0 {
        return nil, context.DeadlineExceeded
    }
    conn, err := amqp.DialConfig(p.url, amqp.Config{
        Dial:      amqp.DefaultDial(timeout),
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
    })
    if err != nil {
        p.retryAt = p.now().Add(retryCooldown)
        return nil, fmt.Errorf("dial: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("channel open: %w", err)
    }
    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
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
        return nil, fmt.Errorf("queue declare: %w", err)
    }
    p.conn, p.ch = conn, ch
    return ch, nil
}

func (p *EventPublisher) resetLocked() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.conn, p.ch = nil, nil
}

// Publish sends ev as a persistent JSON message on the default exchange.
func (p *EventPublisher) Publish(ctx context.Context, ev q.AuthEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    if err := p.acquire(ctx); err != nil {
        return err
    }
    defer p.release()

    ch, err := p.channel(ctx)
    if err != nil {
        if !errors.Is(err, ErrPublisherUnavailable) {
            p.log.WithError(err).Warn("rabbitmq: publisher unavailable")
        }
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Type:         ev.Type,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",      // default exchange
        p.queue, // routing key = queue name
        false,   // mandatory
        false,   // immediate
        pub,
    ); err != nil {
        p.resetLocked()
        p.log.WithError(err).WithField("event", ev.Type).Warn("rabbitmq: publish failed")
        return fmt.Errorf("publish: %w", err)
    }
    return nil
}

// Close releases the broker connection.
func (p *EventPublisher) Close() error {
    p.lock <- struct{}{}
    defer p.release()
    p.resetLocked()
    return nil
}

// NopPublisher drops every event.  Used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, q.AuthEvent) error { return nil }
func (NopPublisher) Close() error                               { return nil }

// Emit publishes ev in the background with a bounded timeout so a slow
// broker never holds up the response.
func Emit(p Publisher, log *logrus.Logger, ev q.AuthEvent) {
    if p == nil {
        return
    }
    go func() {
        ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
        defer cancel()
        if err := p.Publish(ctx, ev); err != nil && log != nil {
            log.WithError(err).WithField("event", ev.Type).Debug("event dropped")
        }
    }()
}
