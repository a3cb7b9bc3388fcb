package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deliverypulse/eventstream/internal/events"
	"github.com/deliverypulse/eventstream/internal/logging"
)

// Config holds connection pool settings.
type Config struct {
	// URL is a Postgres connection string.
	URL string

	// MinConns and MaxConns bound the pool. The pool is shared by every
	// insert within one worker process.
	MinConns int32
	MaxConns int32

	// AcquireRetries bounds pool acquisition attempts per insert.
	AcquireRetries int

	// AcquireBaseDelay seeds the exponential backoff between attempts.
	AcquireBaseDelay time.Duration
}

// DefaultConfig returns sensible pool defaults.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		MinConns:         1,
		MaxConns:         4,
		AcquireRetries:   5,
		AcquireBaseDelay: 250 * time.Millisecond,
	}
}

// Postgres implements RawInserter and EnrichedInserter on a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
	cfg  Config
}

var (
	_ RawInserter      = (*Postgres)(nil)
	_ EnrichedInserter = (*Postgres)(nil)
)

// New builds the pool and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Postgres{pool: pool, cfg: cfg}, nil
}

// Close releases the pool.
func (p *Postgres) Close() { p.pool.Close() }

// The conflict target makes the uniqueness check and the insert one atomic
// statement, so concurrent workers racing on the same signature cannot both
// insert.
const insertRawSQL = `
	INSERT INTO events_raw (id, event_type, metadata, time_created, signature, msg_id, source)
	VALUES ($1, $2, $3, $4::timestamp, $5, $6, $7)
	ON CONFLICT (signature) DO NOTHING`

const insertEnrichedSQL = `
	INSERT INTO events_enriched (events_raw_signature, enriched_metadata)
	VALUES ($1, $2)
	ON CONFLICT (events_raw_signature) DO NOTHING`

// InsertRaw writes one canonical event, deduplicating on signature.
func (p *Postgres) InsertRaw(ctx context.Context, ev *events.CanonicalEvent) error {
	if ev == nil {
		return ErrNoEvent
	}

	conn, err := p.acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, insertRawSQL,
		ev.ID, ev.EventType, ev.Metadata, ev.TimeCreated,
		ev.Signature, int64(ev.MsgID), ev.Source)
	if err != nil {
		// Statement-level failures are a per-row problem; they must not
		// abort the worker handling this message.
		slog.Warn("row not inserted",
			logging.Error(err),
			logging.Source(ev.Source),
			logging.EventType(ev.EventType),
			logging.MsgID(ev.MsgID),
			slog.String("row_id", ev.ID))
		return nil
	}
	if tag.RowsAffected() == 0 {
		slog.Debug("duplicate signature, row skipped",
			slog.String(logging.FieldSignature, ev.Signature),
			logging.MsgID(ev.MsgID))
	}
	return nil
}

// InsertEnriched mirrors InsertRaw, keyed by the raw event's signature.
func (p *Postgres) InsertEnriched(ctx context.Context, ev *events.EnrichedEvent) error {
	if ev == nil {
		return ErrNoEvent
	}

	conn, err := p.acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, insertEnrichedSQL,
		ev.EventsRawSignature, ev.EnrichedMetadata)
	if err != nil {
		slog.Warn("enriched row not inserted",
			logging.Error(err),
			slog.String(logging.FieldSignature, ev.EventsRawSignature))
		return nil
	}
	if tag.RowsAffected() == 0 {
		slog.Debug("duplicate enriched signature, row skipped",
			slog.String(logging.FieldSignature, ev.EventsRawSignature))
	}
	return nil
}

// acquire waits for a pooled connection with bounded exponential backoff.
// Exhausting the budget surfaces the last error to the caller, which treats
// it as fatal for the current message only.
func (p *Postgres) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	var lastErr error
	for attempt := 0; attempt < p.cfg.AcquireRetries; attempt++ {
		conn, err := p.pool.Acquire(ctx)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		delay := backoffDelay(p.cfg.AcquireBaseDelay, attempt)
		slog.Warn("connection acquire failed, backing off",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			logging.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("acquire retries exhausted: %w", lastErr)
}

// backoffDelay doubles the base per attempt, capped at 30 seconds.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	const maxDelay = 30 * time.Second
	d := base << uint(attempt)
	if d > maxDelay || d <= 0 {
		return maxDelay
	}
	return d
}
