// Package worker runs one source's parse-and-persist loop: it consumes the
// source's queue, normalizes each envelope into a canonical event and writes
// it to the store.
//
// Every delivery is acknowledged exactly once after the processing attempt,
// success or not. A failed envelope is logged with its payload and dropped;
// requeueing malformed input would only make the queue wedge on it forever.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deliverypulse/eventstream/internal/broker"
	"github.com/deliverypulse/eventstream/internal/envelope"
	"github.com/deliverypulse/eventstream/internal/logging"
	"github.com/deliverypulse/eventstream/internal/parser"
	"github.com/deliverypulse/eventstream/internal/store"
)

// Worker consumes one source's queue.
type Worker struct {
	source   string
	parser   parser.Parser
	consumer broker.Consumer
	store    store.RawInserter
	logger   *logging.Logger
}

// New builds a worker for the named source. Fails when no parser is
// registered for it.
func New(source string, consumer broker.Consumer, inserter store.RawInserter, logger *logging.Logger) (*Worker, error) {
	p, ok := parser.ForSource(source)
	if !ok {
		return nil, fmt.Errorf("no parser registered for source %q", source)
	}
	return &Worker{
		source:   source,
		parser:   p,
		consumer: consumer,
		store:    inserter,
		logger:   logger,
	}, nil
}

// Run consumes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	stop, err := w.consumer.Consume(ctx, w.source, w.Handle)
	if err != nil {
		return fmt.Errorf("start consumer for %s: %w", w.source, err)
	}
	defer stop()

	w.logger.InfoContext(ctx, "worker consuming",
		logging.Source(w.source), logging.Queue(broker.Queue(w.source)))

	<-ctx.Done()
	return ctx.Err()
}

// Handle processes one delivery. The ack always fires, even when parsing or
// persistence fails.
func (w *Worker) Handle(ctx context.Context, d *broker.Delivery) {
	deliveriesConsumed.WithLabelValues(w.source).Inc()
	start := time.Now()
	defer func() {
		processDuration.WithLabelValues(w.source).Observe(time.Since(start).Seconds())
		if err := d.Ack(); err != nil {
			w.logger.WarnContext(ctx, "ack failed",
				logging.Source(w.source), logging.Error(err))
		}
	}()

	env, err := envelope.Parse(d.Data)
	if err != nil {
		deliveriesDropped.WithLabelValues(w.source, "undecodable").Inc()
		w.logger.WarnContext(ctx, "discarding undecodable message",
			logging.Source(w.source), logging.Error(err), logging.Payload(d.Data))
		return
	}

	ev, err := w.parser.Parse(env)
	if err != nil {
		w.logParseFailure(ctx, err, d.Data)
		return
	}

	if err := w.store.InsertRaw(ctx, ev); err != nil {
		deliveriesDropped.WithLabelValues(w.source, "persist").Inc()
		w.logger.WarnContext(ctx, "failed to persist event",
			logging.Source(w.source),
			logging.EventType(ev.EventType),
			logging.MsgID(ev.MsgID),
			logging.Error(err),
			logging.Payload(d.Data))
		return
	}

	eventsPersisted.WithLabelValues(w.source, ev.EventType).Inc()
	w.logger.DebugContext(ctx, "event persisted",
		logging.Source(w.source),
		logging.EventType(ev.EventType),
		logging.MsgID(ev.MsgID))
}

func (w *Worker) logParseFailure(ctx context.Context, err error, payload []byte) {
	var unsupported *parser.UnsupportedEventError
	switch {
	case errors.As(err, &unsupported):
		deliveriesDropped.WithLabelValues(w.source, "unsupported").Inc()
		w.logger.WarnContext(ctx, "discarding unsupported event",
			logging.Source(w.source),
			logging.EventType(unsupported.EventType),
			logging.Payload(payload))
	case errors.Is(err, parser.ErrMissingAttributes):
		deliveriesDropped.WithLabelValues(w.source, "missing_attributes").Inc()
		w.logger.WarnContext(ctx, "discarding message without attributes",
			logging.Source(w.source),
			logging.Error(err),
			logging.Payload(payload))
	default:
		deliveriesDropped.WithLabelValues(w.source, "parse").Inc()
		w.logger.WarnContext(ctx, "failed to parse message",
			logging.Source(w.source),
			logging.Error(err),
			logging.Payload(payload))
	}
}
