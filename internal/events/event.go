// Package events defines the canonical records persisted by the pipeline.
package events

// CanonicalEvent is the normalized, source-agnostic record derived from one
// broker envelope. Rows are append-only facts: written once, never updated.
type CanonicalEvent struct {
	// ID is the source-defined business key (commit SHA, object id, or a
	// composite like "repo/614"). Not globally unique across sources.
	ID string

	// EventType is the recognized sub-kind for the source, e.g. "push".
	EventType string

	// Metadata is the full original payload, serialized.
	Metadata string

	// TimeCreated is the event's own timestamp when present, else the
	// gateway publishTime. Canonical ordering downstream is reconstructed
	// from this field, not from delivery order.
	TimeCreated string

	// Signature is the dedup key: the upstream HMAC signature when the
	// source carries one, else a content hash of the message.
	Signature string

	// MsgID is the gateway-assigned broker message ID.
	MsgID uint64

	// Source is the source name, suffixed with "mock" for test traffic.
	Source string
}

// EnrichedEvent links enrichment output back to a raw event by its signature.
// Produced by a downstream enrichment stage, not by the parser workers.
type EnrichedEvent struct {
	EventsRawSignature string
	EnrichedMetadata   string
}
