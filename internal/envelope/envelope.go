// Package envelope defines the broker message exchanged between the gateway
// and the parser workers: the upstream webhook payload enriched with the
// sanitized request headers, the gateway receipt timestamp and a unique
// message ID.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// PublishTimeLayout is the wire form of the gateway receipt timestamp (UTC).
const PublishTimeLayout = "2006-01-02 15:04:05.000000"

// ErrMissingAttributes indicates an envelope without the attributes block a
// parser needs to read the original request headers.
var ErrMissingAttributes = errors.New("missing additional attributes")

// Envelope is the enriched payload published to the broker. The upstream
// payload keys stay at the top level; the gateway adds attributes,
// publishTime and message_id.
type Envelope map[string]any

// Enrich merges the gateway metadata into a decoded payload. The message ID
// is assigned exactly once here; parsers never mint IDs.
func Enrich(payload map[string]any, headers map[string]string, msgID uint64, receivedAt time.Time) Envelope {
	e := Envelope(payload)
	attrHeaders := make(map[string]any, len(headers))
	for k, v := range headers {
		attrHeaders[k] = v
	}
	e["attributes"] = map[string]any{"headers": attrHeaders}
	e["publishTime"] = receivedAt.UTC().Format(PublishTimeLayout)
	e["message_id"] = msgID
	return e
}

// Parse decodes a broker message body. Numbers are kept as json.Number so
// 64-bit message IDs survive the round trip without float truncation.
func Parse(data []byte) (Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var e Envelope
	if err := dec.Decode(&e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return e, nil
}

// Marshal serializes the envelope for publishing. Map keys marshal in sorted
// order, so identical logical envelopes produce identical bytes.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(map[string]any(e))
}

// Headers returns the sanitized request headers carried in the attributes
// block. Returns ErrMissingAttributes when the block is absent.
func (e Envelope) Headers() (map[string]string, error) {
	attr, ok := e["attributes"].(map[string]any)
	if !ok {
		return nil, ErrMissingAttributes
	}

	raw, ok := attr["headers"].(map[string]any)
	if !ok {
		return map[string]string{}, nil
	}

	headers := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}
	return headers, nil
}

// PublishTime returns the gateway receipt timestamp, or "" when absent.
func (e Envelope) PublishTime() string {
	s, _ := e["publishTime"].(string)
	return s
}

// MessageID returns the gateway-assigned message ID, or 0 when absent.
func (e Envelope) MessageID() uint64 {
	switch v := e["message_id"].(type) {
	case json.Number:
		id, err := strconv.ParseUint(v.String(), 10, 64)
		if err != nil {
			return 0
		}
		return id
	case uint64:
		return v
	case float64:
		return uint64(v)
	default:
		return 0
	}
}
