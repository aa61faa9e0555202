// Package queue_publisher publishes registration lifecycle events to
// RabbitMQ. Errors are logged and returned to allow callers to ignore
// failures without interrupting the main request flow.
package queue_publisher

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog"

    q "github.com/iliyamo/event-registration/internal/queue"
)

// Publisher dials the broker per message. Lifecycle transitions are
// infrequent, so a long-lived channel is not worth its reconnect handling.
type Publisher struct {
    URL     string
    Timeout time.Duration
    Log     *zerolog.Logger
}

// NewPublisher returns a Publisher for the given AMQP url.
func NewPublisher(url string, log *zerolog.Logger) *Publisher {
    return &Publisher{URL: url, Timeout: 3 * time.Second, Log: log}
}

// Notify publishes ev and only logs failures. It detaches from the request
// context so a client hanging up does not drop an already committed event,
// and it never takes longer than Timeout even when the broker stalls.
func (p *Publisher) Notify(ctx context.Context, ev q.RegistrationEvent) {
    ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.Timeout)
    defer cancel()
    _ = p.Publish(ctx, ev)
}

func (p *Publisher) dialTimeout(ctx context.Context) time.Duration {
    d := p.Timeout
    if d <= 0 {
        d = 3 * time.Second
    }
    if dl, ok := ctx.Deadline(); ok {
        if left := time.Until(dl); left < d {
            d = left
        }
    }
    if d <= 0 {
        d = time.Millisecond
    }
    return d
}

// Publish sends ev to the registration.events queue. Messages are marked
// as persistent.
func (p *Publisher) Publish(ctx context.Context, ev q.RegistrationEvent) error {
    // amqp.Dial ignores ctx; bound the TCP connect and the AMQP handshake
    // by whatever is left of the deadline instead.
    conn, err := amqp.DialConfig(p.URL, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(p.dialTimeout(ctx)),
    })
    if err != nil {
        p.Log.Warn().Err(err).Msg("rabbitmq: dial failed")
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.Log.Warn().Err(err).Msg("rabbitmq: channel open failed")
        return err
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        q.RegistrationQueue, // name
        true,                // durable
        false,               // autoDelete
        false,               // exclusive
        false,               // noWait
        nil,                 // args
    ); err != nil {
        p.Log.Warn().Err(err).Msg("rabbitmq: queue declare failed")
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        p.Log.Warn().Err(err).Msg("rabbitmq: marshal event failed")
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         ev.Type,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",                  // default exchange
        q.RegistrationQueue, // routing key = queue name
        false,               // mandatory
        false,               // immediate
        pub,
    ); err != nil {
        p.Log.Warn().Err(err).Msg("rabbitmq: publish failed")
        return err
    }
    return nil
}
