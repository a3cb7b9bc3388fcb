package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deliverypulse/eventstream/internal/envelope"
	"github.com/deliverypulse/eventstream/internal/logging"
	"github.com/deliverypulse/eventstream/internal/snowflake"
	"github.com/deliverypulse/eventstream/internal/sources"
)

type capturedPublish struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu        sync.Mutex
	published []capturedPublish
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, capturedPublish{subject: subject, data: data})
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type deniedLimiter struct{}

func (deniedLimiter) Allow(context.Context, string) (bool, error) { return false, nil }
func (deniedLimiter) Close() error                                { return nil }

var testSecrets = map[string]string{
	"GITHUB_SECRET":     "github-secret",
	"CIRCLECI_SECRET":   "circleci-secret",
	"PAGER_DUTY_SECRET": "pagerduty-secret",
	"TOKEN":             "shared-token",
}

func testResolver(name string) (string, error) {
	s, ok := testSecrets[name]
	if !ok {
		return "", fmt.Errorf("unable to find secret for %s", name)
	}
	return s, nil
}

func newTestHandler(t *testing.T, pub *fakePublisher) *Handler {
	t.Helper()
	logger := &logging.Logger{Logger: slog.Default()}
	return NewHandler(sources.NewRegistry(testResolver), pub, snowflake.NewWithNode(7), nil, logger)
}

func sign(secret, prefix string, sha256Algo bool, body []byte) string {
	var mac []byte
	if sha256Algo {
		m := hmac.New(sha256.New, []byte(secret))
		m.Write(body)
		mac = m.Sum(nil)
	} else {
		m := hmac.New(sha1.New, []byte(secret))
		m.Write(body)
		mac = m.Sum(nil)
	}
	return prefix + hex.EncodeToString(mac)
}

func TestGitHubWebhookAccepted(t *testing.T) {
	pub := &fakePublisher{}
	h := newTestHandler(t, pub)

	body := `{"head_commit": {"id": "abc", "timestamp": "2023-06-15T13:12:14Z"}}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	req.Header.Set("User-Agent", "GitHub-Hookshot/abc123")
	req.Header.Set("X-Github-Event", "push")
	req.Header.Set("X-Hub-Signature", sign("github-secret", "sha1=", false, []byte(body)))
	req.Header.Set("Authorization", "Bearer super-secret")

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, 204, rec.Code)
	require.Equal(t, 1, pub.count())
	assert.Equal(t, "events.github", pub.published[0].subject)

	env, err := envelope.Parse(pub.published[0].data)
	require.NoError(t, err)

	headers, err := env.Headers()
	require.NoError(t, err)
	assert.NotContains(t, headers, "Authorization", "credentials must not reach the broker")
	assert.Equal(t, "push", headers["X-Github-Event"])
	assert.NotZero(t, env.MessageID())
	assert.NotEmpty(t, env.PublishTime())
}

func TestUnknownSenderForbidden(t *testing.T) {
	pub := &fakePublisher{}
	h := newTestHandler(t, pub)

	req := httptest.NewRequest("POST", "/", strings.NewReader("{}"))
	req.Header.Set("User-Agent", "curl/8.0")

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, 403, rec.Code)
	assert.Contains(t, rec.Body.String(), "Source not authorized: curl/8.0")
	assert.Zero(t, pub.count())
}

func TestMissingSignatureForbidden(t *testing.T) {
	pub := &fakePublisher{}
	h := newTestHandler(t, pub)

	req := httptest.NewRequest("POST", "/", strings.NewReader("{}"))
	req.Header.Set("User-Agent", "GitHub-Hookshot/abc123")
	req.Header.Set("X-Github-Event", "push")

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, 403, rec.Code)
	assert.Contains(t, rec.Body.String(), "Signature not found in request headers")
	assert.Zero(t, pub.count())
}

func TestBadSignatureForbidden(t *testing.T) {
	pub := &fakePublisher{}
	h := newTestHandler(t, pub)

	req := httptest.NewRequest("POST", "/", strings.NewReader("{}"))
	req.Header.Set("User-Agent", "GitHub-Hookshot/abc123")
	req.Header.Set("X-Hub-Signature", "sha1=deadbeef")

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, 403, rec.Code)
	assert.Contains(t, rec.Body.String(), "Signature does not match expected signature")
	assert.Zero(t, pub.count())
}

func TestPagerDutyEmptySignatureHeaderForbidden(t *testing.T) {
	pub := &fakePublisher{}
	h := newTestHandler(t, pub)

	// Header present (so classification selects pagerduty) but with an
	// empty value, which is never a valid credential.
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"event": {}}`))
	req.Header.Set("X-Pagerduty-Signature", "")

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, 403, rec.Code)
	assert.Zero(t, pub.count())
}

func TestPagerDutySignatureListAccepted(t *testing.T) {
	pub := &fakePublisher{}
	h := newTestHandler(t, pub)

	body := `{"event": {"id": "x", "event_type": "incident.resolved"}}`
	good := sign("pagerduty-secret", "v1=", true, []byte(body))

	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	req.Header.Set("X-Pagerduty-Signature", "v1=stale,"+good)

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, 204, rec.Code)
	require.Equal(t, 1, pub.count())
	assert.Equal(t, "events.pagerduty", pub.published[0].subject)
}

func TestGitLabTokenInQueryParameter(t *testing.T) {
	pub := &fakePublisher{}
	h := newTestHandler(t, pub)

	req := httptest.NewRequest("POST", "/?X-Gitlab-Token=shared-token", strings.NewReader(`{"object_kind": "push"}`))
	req.Header.Set("X-Gitlab-Event", "Push Hook")

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, 204, rec.Code)
	assert.Equal(t, 1, pub.count())
}

func TestPublishFailureStillAccepted(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	h := newTestHandler(t, pub)

	body := `{"object_kind": "push"}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	req.Header.Set("X-Gitlab-Event", "Push Hook")
	req.Header.Set("X-Gitlab-Token", "shared-token")

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, 204, rec.Code, "sender never sees broker failures")
}

func TestRateLimitedRejected(t *testing.T) {
	pub := &fakePublisher{}
	logger := &logging.Logger{Logger: slog.Default()}
	h := NewHandler(sources.NewRegistry(testResolver), pub, snowflake.NewWithNode(7), deniedLimiter{}, logger)

	req := httptest.NewRequest("POST", "/", strings.NewReader("{}"))
	req.Header.Set("X-Gitlab-Event", "Push Hook")
	req.Header.Set("X-Gitlab-Token", "shared-token")

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, 429, rec.Code)
	assert.Zero(t, pub.count())
}

func TestMethodNotAllowed(t *testing.T) {
	pub := &fakePublisher{}
	h := newTestHandler(t, pub)

	req := httptest.NewRequest("PUT", "/", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, 405, rec.Code)
}

func TestRouterHealthAndReady(t *testing.T) {
	pub := &fakePublisher{}
	h := newTestHandler(t, pub)

	ready := false
	router := NewRouter(h, func() bool { return ready })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 200, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 503, rec.Code)

	ready = true
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 200, rec.Code)
}
