// Package nats implements the broker interfaces on NATS JetStream.
//
// The event bus maps onto JetStream as: one work-queue stream capturing
// events.>, one durable consumer per source filtered to that source's
// subject. Workers sharing a durable consumer split deliveries, which gives
// per-source queue semantics without exclusive per-message ownership.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/deliverypulse/eventstream/internal/broker"
	"github.com/deliverypulse/eventstream/internal/logging"
)

// Config holds broker connection settings.
type Config struct {
	// URL is the broker address, e.g. "nats://localhost:4222".
	URL string

	// Name identifies this client on the connection.
	Name string

	// ConnectRetries bounds the initial connection attempts. Exhausting the
	// budget is fatal to the calling process.
	ConnectRetries int

	// RetryDelay is the fixed wait between connection attempts.
	RetryDelay time.Duration

	// Timeout is the per-attempt dial timeout.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		Name:           "eventstream-client",
		ConnectRetries: 5,
		RetryDelay:     5 * time.Second,
		Timeout:        5 * time.Second,
	}
}

// Connector owns one broker connection and its JetStream context.
// The connection is not shared across processes; the underlying client
// serializes concurrent use internally.
type Connector struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	closed chan struct{}
}

var (
	_ broker.Publisher = (*Connector)(nil)
	_ broker.Consumer  = (*Connector)(nil)
)

// Connect dials the broker with bounded retries and a fixed inter-attempt
// delay. Returns broker.ErrConnectExhausted when the budget is spent; there
// is no further automatic recovery at this layer. After the initial connect,
// transient drops are handled by the client's own reconnect loop.
func Connect(cfg Config) (*Connector, error) {
	closed := make(chan struct{})

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.RetryDelay),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("broker disconnected", logging.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("broker reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			close(closed)
		}),
	}

	conn, err := dialWithRetry(cfg.ConnectRetries, cfg.RetryDelay, func() (*nats.Conn, error) {
		return nats.Connect(cfg.URL, opts...)
	})
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Connector{conn: conn, js: js, closed: closed}, nil
}

// dialWithRetry attempts dial up to retries times with a fixed delay between
// attempts. Returns broker.ErrConnectExhausted once the budget is spent.
func dialWithRetry(retries int, delay time.Duration, dial func() (*nats.Conn, error)) (*nats.Conn, error) {
	if retries <= 0 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		conn, err := dial()
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt < retries {
			slog.Warn("failed to connect to broker, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("retry_delay", delay),
				logging.Error(err))
			time.Sleep(delay)
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v",
		broker.ErrConnectExhausted, retries, lastErr)
}

// DeclareTopology ensures the event stream and the source's durable consumer
// exist. Safe to call repeatedly; both operations are create-or-update.
func (c *Connector) DeclareTopology(ctx context.Context, source string) error {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      broker.StreamName,
		Subjects:  []string{broker.SubjectWildcard},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("declare stream %s: %w", broker.StreamName, err)
	}

	queue := broker.Queue(source)
	stream, err := c.js.Stream(ctx, broker.StreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", broker.StreamName, err)
	}
	_, err = stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          queue,
		Durable:       queue,
		FilterSubject: broker.Subject(source),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
	})
	if err != nil {
		return fmt.Errorf("declare consumer %s: %w", queue, err)
	}
	return nil
}

// DeclareStream ensures only the event stream exists. Used by the gateway,
// which publishes but owns no consumer.
func (c *Connector) DeclareStream(ctx context.Context) error {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      broker.StreamName,
		Subjects:  []string{broker.SubjectWildcard},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("declare stream %s: %w", broker.StreamName, err)
	}
	return nil
}

// Publish sends one envelope, single attempt. Callers on the request path
// log failures instead of propagating them to webhook senders.
func (c *Connector) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Consume starts delivering the source's queue to handler. The handler owns
// acknowledgement. Handler panics are recovered, logged and acked so one
// poisoned message cannot wedge the queue.
func (c *Connector) Consume(ctx context.Context, source string, handler broker.Handler) (func(), error) {
	stream, err := c.js.Stream(ctx, broker.StreamName)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", broker.StreamName, err)
	}

	consumer, err := stream.Consumer(ctx, broker.Queue(source))
	if err != nil {
		return nil, fmt.Errorf("get consumer %s: %w", broker.Queue(source), err)
	}

	consumeCtx, cancel := context.WithCancel(ctx)

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		d := &broker.Delivery{
			Subject: msg.Subject(),
			Data:    msg.Data(),
			Ack:     msg.Ack,
		}
		defer func() {
			if r := recover(); r != nil {
				slog.Error("handler panicked",
					logging.Subject(d.Subject),
					slog.Any("panic", r))
				_ = d.Ack()
			}
		}()
		handler(consumeCtx, d)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start consuming %s: %w", broker.Queue(source), err)
	}

	return func() {
		cancel()
		cons.Stop()
	}, nil
}

// Closed is signalled when the connection is permanently lost. Consumer
// loops select on it to shut down instead of spinning against a dead broker.
func (c *Connector) Closed() <-chan struct{} {
	return c.closed
}

// IsConnected reports whether the client currently has a live connection.
func (c *Connector) IsConnected() bool {
	return c.conn.IsConnected()
}

// Close drains in-flight work and releases the connection.
func (c *Connector) Close() error {
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
		return err
	}
	return nil
}
