package parser

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/deliverypulse/eventstream/internal/envelope"
	"github.com/deliverypulse/eventstream/internal/events"
	"github.com/deliverypulse/eventstream/internal/sources"
)

func init() {
	register(&gitlabParser{rules: gitlabRules})
}

// gitlabParser handles GitLab webhook deliveries. GitLab events carry no
// tamper-evident signature of their own, so the dedup signature is a content
// hash of the full message; the envelope's sorted-key serialization keeps
// the hash reproducible for identical logical input.
type gitlabParser struct {
	rules map[string]rule
}

func (p *gitlabParser) Source() string { return sources.GitLab }

func (p *gitlabParser) Parse(env envelope.Envelope) (*events.CanonicalEvent, error) {
	headers, err := env.Headers()
	if err != nil {
		return nil, err
	}

	if _, ok := headerLookup(headers, "X-Gitlab-Event"); !ok {
		return nil, fmt.Errorf("no gitlab event header in message")
	}

	eventType := asString(env, "object_kind")
	extract, ok := p.rules[eventType]
	if !ok {
		return nil, &UnsupportedEventError{Source: sources.GitLab, EventType: eventType}
	}

	id, timeCreated, err := extract(env)
	if err != nil {
		return nil, fmt.Errorf("extract %s event: %w", eventType, err)
	}

	signature, err := contentHash(env)
	if err != nil {
		return nil, err
	}

	return finalize(env, sourceName(sources.GitLab, headers), eventType,
		id, normalizeTimestamp(timeCreated), signature)
}

var gitlabRules = map[string]rule{
	"push":          gitlabPushRule,
	"tag_push":      gitlabPushRule,
	"merge_request": gitlabObjectRule,
	"note":          gitlabObjectRule,
	"issue":         gitlabObjectRule,
	"pipeline":      gitlabObjectRule,
	"job":           gitlabBuildRule,
	"build":         gitlabBuildRule,
	"deployment": func(env envelope.Envelope) (string, string, error) {
		return scalarString(env, "deployment_id"), asString(env, "status_changed_at"), nil
	},
}

// gitlabPushRule keys the event on the checked-out commit and takes its
// timestamp from the matching entry in the commit list.
func gitlabPushRule(env envelope.Envelope) (string, string, error) {
	id := asString(env, "checkout_sha")
	if id == "" {
		return "", "", fmt.Errorf("missing checkout_sha")
	}

	var timeCreated string
	commits, _ := env["commits"].([]any)
	for _, c := range commits {
		commit, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if asString(commit, "id") == id {
			timeCreated = asString(commit, "timestamp")
		}
	}
	return id, timeCreated, nil
}

// gitlabObjectRule covers the sub-types that nest their fields under
// object_attributes, with the updated/finished/created fallback order.
func gitlabObjectRule(env envelope.Envelope) (string, string, error) {
	obj := asMap(env, "object_attributes")
	if obj == nil {
		return "", "", fmt.Errorf("missing object_attributes")
	}
	t := firstNonEmpty(
		asString(obj, "updated_at"),
		asString(obj, "finished_at"),
		asString(obj, "created_at"))
	return scalarString(obj, "id"), t, nil
}

// gitlabBuildRule covers job and build hooks, which keep their fields at the
// top level; prefer the finish time, fall back to start then creation.
func gitlabBuildRule(env envelope.Envelope) (string, string, error) {
	id := scalarString(env, "build_id")
	if id == "" {
		return "", "", fmt.Errorf("missing build_id")
	}
	t := firstNonEmpty(
		asString(env, "build_finished_at"),
		asString(env, "build_started_at"),
		asString(env, "build_created_at"))
	return id, t, nil
}

// contentHash computes the dedup signature for sources without their own.
func contentHash(env envelope.Envelope) (string, error) {
	data, err := env.Marshal()
	if err != nil {
		return "", fmt.Errorf("serialize for content hash: %w", err)
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// normalizeTimestamp strips the numeric zone suffix from timestamps like
// "2021-04-28 21:50:00 +0200". Unparseable values pass through unchanged and
// default to whatever the payload supplied.
func normalizeTimestamp(ts string) string {
	t, err := time.Parse("2006-01-02 15:04:05 -0700", ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}
