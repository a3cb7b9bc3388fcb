package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "events.github", Subject("github"))
	assert.Equal(t, "events.gitlab", Subject("gitlab"))
}

func TestQueue(t *testing.T) {
	assert.Equal(t, "work-github", Queue("github"))
	assert.Equal(t, "work-pagerduty", Queue("pagerduty"))
}

func TestSourceFromSubject(t *testing.T) {
	assert.Equal(t, "github", SourceFromSubject("events.github"))
	assert.Equal(t, "", SourceFromSubject("search.jobs.query"))
	assert.Equal(t, "", SourceFromSubject("events"))
}
