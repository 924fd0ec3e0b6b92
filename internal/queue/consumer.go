package queue

// consumer.go holds the background consumer that listens to the auth events
// queue and appends one line per event to the audit log.

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
)

// AuditConsumer drains the auth events queue into an append-only log file.
type AuditConsumer struct {
    URL     string
    Queue   string
    LogPath string
    Log     *logrus.Logger

    mu sync.Mutex
}

// NewAuditConsumer wires a consumer for queue on the broker at url.
func NewAuditConsumer(url, queue, logPath string, log *logrus.Logger) *AuditConsumer {
    return &AuditConsumer{URL: url, Queue: queue, LogPath: logPath, Log: log}
}

// Run connects to RabbitMQ, declares the queue (durable) and consumes until
// ctx is cancelled.  Dial failures and broken connections are retried with
// exponential backoff capped at 30s; Run only returns once ctx is done.
func (a *AuditConsumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return nil
        }
        conn, err := amqp.Dial(a.URL)
        if err != nil {
            a.Log.WithError(err).Warnf("audit-consumer: failed to dial broker; retrying in %s", backoff)
            if !sleepCtx(ctx, backoff) {
                return nil
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = a.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return nil
        }
        a.Log.WithError(err).Warn("audit-consumer: consume loop ended; reconnecting")
        if !sleepCtx(ctx, 2*time.Second) {
            return nil
        }
    }
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func (a *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        a.Log.WithError(err).Warn("audit-consumer: set QoS failed")
    }

    if _, err := ch.QueueDeclare(a.Queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.ConsumeWithContext(ctx, a.Queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        if err := a.HandleMessage(d.Body); err != nil {
            a.Log.WithError(err).Error("audit-consumer: handle message failed")
            _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

// HandleMessage decodes one event and appends it to the audit log.
func (a *AuditConsumer) HandleMessage(body []byte) error {
    var ev AuthEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" {
        return errors.New("event without type")
    }

    a.mu.Lock()
    defer a.mu.Unlock()

    if err := os.MkdirAll(filepath.Dir(a.LogPath), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(a.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    return WriteAuditLine(f, ev)
}

// WriteAuditLine renders ev as a single human-friendly line.
func WriteAuditLine(w io.Writer, ev AuthEvent) error {
    roles := "[]"
    if len(ev.Roles) > 0 {
        roles = fmt.Sprintf("[%s]", strings.Join(ev.Roles, ","))
    }
    line := fmt.Sprintf("[%s] %s | user_id=%s | actor_id=%s | email=%q | roles=%s | transport=%s | ip=%s",
        ev.OccurredAt, ev.Type, orDash(ev.UserID), orDash(ev.ActorID), ev.Email, roles, orDash(ev.Transport), orDash(ev.RemoteIP))
    if ev.Expired {
        line += " | expired"
    }
    line += "\n"
    if _, err := io.WriteString(w, line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func orDash(s string) string {
    if s == "" {
        return "-"
    }
    return s
}
