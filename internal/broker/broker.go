// Package broker provides abstractions for the event bus between the webhook
// gateway and the per-source parser workers. It defines interfaces so the
// gateway and workers are not coupled to a specific broker implementation.
package broker

import (
	"context"
	"errors"
)

// ErrConnectExhausted is returned when the bounded connect retry budget is
// spent without reaching the broker. Callers treat it as fatal and exit; the
// host environment is expected to restart the process.
var ErrConnectExhausted = errors.New("broker connect retries exhausted")

// Delivery is one message handed to a consumer. The handler owns
// acknowledgement: it must call Ack exactly once after attempting to process
// the message, regardless of the outcome. Failed deliveries are logged and
// dropped, not requeued.
type Delivery struct {
	// Subject the message was routed on.
	Subject string

	// Data is the raw envelope bytes.
	Data []byte

	// Ack acknowledges the delivery. Nil-safe implementations are not
	// required; the connector always populates it.
	Ack func() error
}

// Handler processes one delivery. It must not panic; the connector recovers
// handler panics, issues a best-effort ack and keeps the loop alive.
type Handler func(ctx context.Context, d *Delivery)

// Publisher publishes envelopes onto the bus, routed by source name.
type Publisher interface {
	// Publish is a best-effort single attempt; callers on the HTTP request
	// path log failures rather than surfacing them to webhook senders.
	Publish(ctx context.Context, subject string, data []byte) error

	// Close releases the connection.
	Close() error
}

// Consumer pulls deliveries for one source's queue.
type Consumer interface {
	// Consume starts delivering messages to handler until stop is called or
	// the context is cancelled. Each message is delivered to the handler
	// exactly once per delivery attempt.
	Consume(ctx context.Context, source string, handler Handler) (stop func(), err error)

	// Close drains and releases the connection.
	Close() error
}
