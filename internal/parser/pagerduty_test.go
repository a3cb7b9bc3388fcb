package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagerDutyIncidentResolved(t *testing.T) {
	env := mustEnvelope(t, `{
		"event": {
			"id": "01BRB6ZP4M6T8ZG4X6BP63ZB9O",
			"event_type": "incident.resolved",
			"occurred_at": "2023-06-15T13:12:14.906Z",
			"data": {"type": "incident", "title": "db on fire"}
		},
		"attributes": {"headers": {
			"X-Pagerduty-Signature": "v1=abcdef",
			"Mock": "True"
		}},
		"publishTime": "2023-06-15 13:12:20.000000",
		"message_id": 99
	}`)

	p, ok := ForSource("pagerduty")
	require.True(t, ok)

	ev, err := p.Parse(env)
	require.NoError(t, err)

	assert.Equal(t, "incident.resolved", ev.EventType)
	assert.Equal(t, "01BRB6ZP4M6T8ZG4X6BP63ZB9O", ev.ID)
	assert.Equal(t, "2023-06-15T13:12:14.906Z", ev.TimeCreated)
	assert.Equal(t, "v1=abcdef", ev.Signature)
	assert.Equal(t, "pagerdutymock", ev.Source)
}

func TestPagerDutyUnsupportedEventType(t *testing.T) {
	env := mustEnvelope(t, `{
		"event": {"id": "x", "event_type": "service.updated"},
		"attributes": {"headers": {"X-Pagerduty-Signature": "v1=abc"}}
	}`)

	p, _ := ForSource("pagerduty")
	_, err := p.Parse(env)

	var unsupported *UnsupportedEventError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "service.updated", unsupported.EventType)
}

func TestPagerDutyMissingEventBlock(t *testing.T) {
	env := mustEnvelope(t, `{"attributes": {"headers": {}}}`)

	p, _ := ForSource("pagerduty")
	_, err := p.Parse(env)
	assert.Error(t, err)
}

func TestPagerDutyOccurredAtAbsentFallsBackToPublishTime(t *testing.T) {
	env := mustEnvelope(t, `{
		"event": {"id": "x", "event_type": "incident.triggered"},
		"attributes": {"headers": {"X-Pagerduty-Signature": "v1=abc"}},
		"publishTime": "2023-06-15 13:12:20.000000"
	}`)

	p, _ := ForSource("pagerduty")
	ev, err := p.Parse(env)
	require.NoError(t, err)
	assert.Equal(t, "2023-06-15 13:12:20.000000", ev.TimeCreated)
}

func TestRegistryListsAllSources(t *testing.T) {
	assert.ElementsMatch(t, []string{"github", "gitlab", "pagerduty"}, Sources())
}
