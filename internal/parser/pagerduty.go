package parser

import (
	"fmt"

	"github.com/deliverypulse/eventstream/internal/envelope"
	"github.com/deliverypulse/eventstream/internal/events"
	"github.com/deliverypulse/eventstream/internal/sources"
)

func init() {
	register(&pagerdutyParser{})
}

// pagerdutyParser handles PagerDuty v3 webhook deliveries. The sub-type
// discriminator is the nested event.event_type field; the dedup signature is
// the delivery's X-Pagerduty-Signature header.
type pagerdutyParser struct{}

func (p *pagerdutyParser) Source() string { return sources.PagerDuty }

// pagerdutyTypes is the recognized incident lifecycle set.
var pagerdutyTypes = map[string]struct{}{
	"incident.triggered":        {},
	"incident.acknowledged":     {},
	"incident.unacknowledged":   {},
	"incident.escalated":        {},
	"incident.delegated":        {},
	"incident.reassigned":       {},
	"incident.annotated":        {},
	"incident.reopened":         {},
	"incident.resolved":         {},
	"incident.priority_updated": {},
}

func (p *pagerdutyParser) Parse(env envelope.Envelope) (*events.CanonicalEvent, error) {
	headers, err := env.Headers()
	if err != nil {
		return nil, err
	}

	event := asMap(env, "event")
	if event == nil {
		return nil, fmt.Errorf("no pagerduty event in message")
	}

	eventType := asString(event, "event_type")
	if _, ok := pagerdutyTypes[eventType]; !ok {
		return nil, &UnsupportedEventError{Source: sources.PagerDuty, EventType: eventType}
	}

	signature, _ := headerLookup(headers, "X-Pagerduty-Signature")
	return finalize(env, sourceName(sources.PagerDuty, headers), eventType,
		scalarString(event, "id"), asString(event, "occurred_at"), signature)
}
