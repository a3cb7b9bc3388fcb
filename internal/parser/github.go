package parser

import (
	"fmt"

	"github.com/deliverypulse/eventstream/internal/envelope"
	"github.com/deliverypulse/eventstream/internal/events"
	"github.com/deliverypulse/eventstream/internal/sources"
)

func init() {
	register(&githubParser{rules: githubRules})
}

// githubParser handles GitHub webhook deliveries. The sub-type discriminator
// is the X-Github-Event header; the dedup signature is the delivery's own
// X-Hub-Signature HMAC.
type githubParser struct {
	rules map[string]rule
}

func (p *githubParser) Source() string { return sources.GitHub }

func (p *githubParser) Parse(env envelope.Envelope) (*events.CanonicalEvent, error) {
	headers, err := env.Headers()
	if err != nil {
		return nil, err
	}

	eventType, ok := headerLookup(headers, "X-Github-Event")
	if !ok {
		return nil, fmt.Errorf("no github event header in message")
	}

	extract, ok := p.rules[eventType]
	if !ok {
		return nil, &UnsupportedEventError{Source: sources.GitHub, EventType: eventType}
	}

	id, timeCreated, err := extract(env)
	if err != nil {
		return nil, fmt.Errorf("extract %s event: %w", eventType, err)
	}

	signature, _ := headerLookup(headers, "X-Hub-Signature")
	return finalize(env, sourceName(sources.GitHub, headers), eventType, id, timeCreated, signature)
}

// githubRules maps each recognized sub-type to its id and timestamp
// extraction. Composite "repo/number" ids keep pull requests and issues from
// colliding with each other's numeric fields.
var githubRules = map[string]rule{
	"push": func(env envelope.Envelope) (string, string, error) {
		hc := asMap(env, "head_commit")
		if hc == nil {
			return "", "", fmt.Errorf("missing head_commit")
		}
		return scalarString(hc, "id"), asString(hc, "timestamp"), nil
	},
	"pull_request": func(env envelope.Envelope) (string, string, error) {
		pr := asMap(env, "pull_request")
		repo := asMap(env, "repository")
		if pr == nil || repo == nil {
			return "", "", fmt.Errorf("missing pull_request or repository")
		}
		id := asString(repo, "name") + "/" + scalarString(env, "number")
		return id, asString(pr, "updated_at"), nil
	},
	"pull_request_review": func(env envelope.Envelope) (string, string, error) {
		review := asMap(env, "review")
		if review == nil {
			return "", "", fmt.Errorf("missing review")
		}
		return scalarString(review, "id"), asString(review, "submitted_at"), nil
	},
	"pull_request_review_comment": func(env envelope.Envelope) (string, string, error) {
		comment := asMap(env, "comment")
		if comment == nil {
			return "", "", fmt.Errorf("missing comment")
		}
		return scalarString(comment, "id"), asString(comment, "updated_at"), nil
	},
	"issues": func(env envelope.Envelope) (string, string, error) {
		issue := asMap(env, "issue")
		repo := asMap(env, "repository")
		if issue == nil || repo == nil {
			return "", "", fmt.Errorf("missing issue or repository")
		}
		id := asString(repo, "name") + "/" + scalarString(issue, "number")
		return id, asString(issue, "updated_at"), nil
	},
	"issue_comment": func(env envelope.Envelope) (string, string, error) {
		comment := asMap(env, "comment")
		if comment == nil {
			return "", "", fmt.Errorf("missing comment")
		}
		return scalarString(comment, "id"), asString(comment, "updated_at"), nil
	},
	"check_run": func(env envelope.Envelope) (string, string, error) {
		cr := asMap(env, "check_run")
		if cr == nil {
			return "", "", fmt.Errorf("missing check_run")
		}
		t := firstNonEmpty(asString(cr, "completed_at"), asString(cr, "started_at"))
		return scalarString(cr, "id"), t, nil
	},
	"check_suite": func(env envelope.Envelope) (string, string, error) {
		cs := asMap(env, "check_suite")
		if cs == nil {
			return "", "", fmt.Errorf("missing check_suite")
		}
		t := firstNonEmpty(asString(cs, "updated_at"), asString(cs, "created_at"))
		return scalarString(cs, "id"), t, nil
	},
	"status": func(env envelope.Envelope) (string, string, error) {
		return scalarString(env, "id"), asString(env, "updated_at"), nil
	},
	"deployment_status": func(env envelope.Envelope) (string, string, error) {
		ds := asMap(env, "deployment_status")
		if ds == nil {
			return "", "", fmt.Errorf("missing deployment_status")
		}
		return scalarString(ds, "id"), asString(ds, "updated_at"), nil
	},
	"release": func(env envelope.Envelope) (string, string, error) {
		rel := asMap(env, "release")
		if rel == nil {
			return "", "", fmt.Errorf("missing release")
		}
		t := firstNonEmpty(asString(rel, "published_at"), asString(rel, "created_at"))
		return scalarString(rel, "id"), t, nil
	},
}
