// Package parser normalizes per-source webhook envelopes into canonical
// events. Each source defines a table of recognized sub-types mapped to pure
// extraction rules, so adding a sub-type is a data change rather than new
// control flow.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deliverypulse/eventstream/internal/envelope"
	"github.com/deliverypulse/eventstream/internal/events"
)

// ErrMissingAttributes mirrors the envelope error for callers that only
// import this package.
var ErrMissingAttributes = envelope.ErrMissingAttributes

// UnsupportedEventError reports a sub-type outside a source's recognized set.
type UnsupportedEventError struct {
	Source    string
	EventType string
}

func (e *UnsupportedEventError) Error() string {
	return fmt.Sprintf("unsupported %s event: %q", e.Source, e.EventType)
}

// Parser turns one envelope into a canonical event.
type Parser interface {
	// Source is the routing key this parser consumes.
	Source() string

	// Parse extracts the canonical event. It fails with
	// UnsupportedEventError for unrecognized sub-types and never returns a
	// partially constructed event alongside an error.
	Parse(env envelope.Envelope) (*events.CanonicalEvent, error)
}

// rule extracts the business id and authoritative timestamp for one sub-type.
type rule func(env envelope.Envelope) (id, timeCreated string, err error)

var registry = map[string]Parser{}

func register(p Parser) {
	registry[p.Source()] = p
}

// ForSource returns the parser consuming the named source's queue.
func ForSource(name string) (Parser, bool) {
	p, ok := registry[name]
	return p, ok
}

// Sources lists every source with a registered parser.
func Sources() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// sourceName suffixes "mock" when the test marker header is present, so mock
// traffic is distinguishable from production rows without a separate schema.
func sourceName(base string, headers map[string]string) string {
	if _, ok := headerLookup(headers, "Mock"); ok {
		return base + "mock"
	}
	return base
}

// headerLookup finds a header value by case-insensitive name. Envelope
// headers carry whatever casing the original sender used.
func headerLookup(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// asMap walks one level into a decoded payload.
func asMap(m map[string]any, key string) map[string]any {
	child, _ := m[key].(map[string]any)
	return child
}

// asString reads a string field; absent and non-string values yield "".
func asString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// scalarString renders a string or numeric field in its literal form.
// Business ids arrive as either, e.g. numeric review ids and string SHAs.
func scalarString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}

// firstNonEmpty implements the documented timestamp fallback order.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// finalize assembles the canonical event, applying the publishTime fallback
// and deterministic metadata serialization.
func finalize(env envelope.Envelope, source, eventType, id, timeCreated, signature string) (*events.CanonicalEvent, error) {
	metadata, err := env.Marshal()
	if err != nil {
		return nil, fmt.Errorf("serialize metadata: %w", err)
	}
	if timeCreated == "" {
		timeCreated = env.PublishTime()
	}
	return &events.CanonicalEvent{
		ID:          id,
		EventType:   eventType,
		Metadata:    string(metadata),
		TimeCreated: timeCreated,
		Signature:   signature,
		MsgID:       env.MessageID(),
		Source:      source,
	}, nil
}
