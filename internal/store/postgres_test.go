package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInsertRawNilEventFailsFast(t *testing.T) {
	p := &Postgres{cfg: DefaultConfig("")}

	err := p.InsertRaw(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoEvent)
}

func TestInsertEnrichedNilEventFailsFast(t *testing.T) {
	p := &Postgres{cfg: DefaultConfig("")}

	err := p.InsertEnriched(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoEvent)
}

func TestInsertRawIsAtomicUpsert(t *testing.T) {
	// The uniqueness check and the insert must be one statement.
	assert.Contains(t, insertRawSQL, "ON CONFLICT (signature) DO NOTHING")
	assert.Contains(t, insertEnrichedSQL, "ON CONFLICT (events_raw_signature) DO NOTHING")
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	base := 250 * time.Millisecond

	assert.Equal(t, 250*time.Millisecond, backoffDelay(base, 0))
	assert.Equal(t, 500*time.Millisecond, backoffDelay(base, 1))
	assert.Equal(t, 1*time.Second, backoffDelay(base, 2))
	assert.Equal(t, 30*time.Second, backoffDelay(base, 20))
	assert.Equal(t, 30*time.Second, backoffDelay(base, 63), "shift overflow must cap, not wrap")
}

func TestDefaultConfigBounds(t *testing.T) {
	cfg := DefaultConfig("postgres://localhost/delivery_events")
	assert.Equal(t, int32(1), cfg.MinConns)
	assert.Equal(t, int32(4), cfg.MaxConns)
	assert.Equal(t, 5, cfg.AcquireRetries)
}
