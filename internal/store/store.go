// Package store persists canonical events to Postgres.
package store

import (
	"context"
	"errors"

	"github.com/deliverypulse/eventstream/internal/events"
)

// ErrNoEvent indicates an insert was called without an event.
var ErrNoEvent = errors.New("no data to insert")

// RawInserter is the surface the parser workers depend on.
type RawInserter interface {
	// InsertRaw writes one canonical event. Duplicate signatures are a
	// silent no-op; statement failures are logged and swallowed per row.
	// An error return means the row could not be attempted at all
	// (nil event, or pool acquisition exhausted its retries).
	InsertRaw(ctx context.Context, ev *events.CanonicalEvent) error
}

// EnrichedInserter is used by the downstream enrichment stage.
type EnrichedInserter interface {
	InsertEnriched(ctx context.Context, ev *events.EnrichedEvent) error
}
