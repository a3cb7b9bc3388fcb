// Package sources classifies inbound webhooks and verifies their credentials.
//
// Each authorized source names the header its credential travels in and a
// verification function. Every verification path fails closed: a missing
// credential or an unresolvable secret yields false, never an error that
// escapes the verification boundary.
package sources

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"log/slog"
	"net/http"
	"strings"
)

// Source names recognized by the gateway.
const (
	GitHub    = "github"
	GitLab    = "gitlab"
	Tekton    = "tekton"
	CircleCI  = "circleci"
	PagerDuty = "pagerduty"
)

// VerifyFunc checks a supplied credential against the raw request body.
type VerifyFunc func(credential string, body []byte) bool

// Source is an authorized upstream webhook sender.
type Source struct {
	// Name is the routing key the gateway publishes under.
	Name string

	// SignatureHeader is the header (or query parameter) carrying the
	// credential for this source.
	SignatureHeader string

	// Verify validates the credential against the raw body.
	Verify VerifyFunc
}

// Registry holds the authorized sources. Immutable after construction.
type Registry struct {
	resolve SecretResolver
	byName  map[string]Source
}

// NewRegistry builds the authorized source set using the given secret
// resolver. Pass EnvResolver for production use.
func NewRegistry(resolve SecretResolver) *Registry {
	r := &Registry{resolve: resolve}
	r.byName = map[string]Source{
		GitHub: {
			Name:            GitHub,
			SignatureHeader: "X-Hub-Signature",
			Verify:          r.hmacVerification("GITHUB_SECRET", "sha1=", sha1.New),
		},
		GitLab: {
			Name:            GitLab,
			SignatureHeader: "X-Gitlab-Token",
			Verify:          r.tokenVerification("TOKEN"),
		},
		Tekton: {
			Name:            Tekton,
			SignatureHeader: "tekton-secret",
			Verify:          r.tokenVerification("TOKEN"),
		},
		CircleCI: {
			Name:            CircleCI,
			SignatureHeader: "Circleci-Signature",
			Verify:          r.hmacVerification("CIRCLECI_SECRET", "v1=", sha256.New),
		},
		PagerDuty: {
			Name:            PagerDuty,
			SignatureHeader: "X-Pagerduty-Signature",
			Verify:          r.signatureListVerification("PAGER_DUTY_SECRET", "v1=", sha256.New),
		},
	}
	return r
}

// Lookup returns the authorized source for name.
func (r *Registry) Lookup(name string) (Source, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Classify determines the source of a request from its headers.
// First match wins; an unrecognized sender classifies as its raw User-Agent,
// which will fail authorization downstream.
func Classify(headers http.Header) string {
	if hasHeader(headers, "X-Gitlab-Event") {
		return GitLab
	}
	if strings.Contains(headers.Get("Ce-Type"), "tekton") {
		return Tekton
	}
	if strings.Contains(headers.Get("User-Agent"), "GitHub-Hookshot") {
		return GitHub
	}
	if hasHeader(headers, "Circleci-Event-Type") {
		return CircleCI
	}
	if hasHeader(headers, "X-Pagerduty-Signature") {
		return PagerDuty
	}
	return headers.Get("User-Agent")
}

// hasHeader reports presence regardless of value, matching on the
// canonicalized name.
func hasHeader(headers http.Header, name string) bool {
	_, ok := headers[http.CanonicalHeaderKey(name)]
	return ok
}

// hmacVerification recomputes an HMAC over the body with the named secret and
// compares "<prefix><hexdigest>" against the supplied credential in constant
// time. Secret resolution failure returns false; the error detail is not
// logged to keep secret names and values out of log streams.
func (r *Registry) hmacVerification(secretName, prefix string, algo func() hash.Hash) VerifyFunc {
	return func(credential string, body []byte) bool {
		expected, ok := r.expectedSignature(secretName, prefix, algo, body)
		if !ok {
			return false
		}
		return hmac.Equal([]byte(credential), []byte(expected))
	}
}

// signatureListVerification treats the credential as a comma-separated list
// of candidate signatures and succeeds if the recomputed value appears in it.
func (r *Registry) signatureListVerification(secretName, prefix string, algo func() hash.Hash) VerifyFunc {
	return func(credential string, body []byte) bool {
		if credential == "" {
			return false
		}
		expected, ok := r.expectedSignature(secretName, prefix, algo, body)
		if !ok {
			return false
		}
		matched := false
		for _, candidate := range strings.Split(credential, ",") {
			if hmac.Equal([]byte(strings.TrimSpace(candidate)), []byte(expected)) {
				matched = true
			}
		}
		return matched
	}
}

// tokenVerification succeeds only when the supplied token equals the resolved
// shared secret. Empty tokens are an explicit failure.
func (r *Registry) tokenVerification(secretName string) VerifyFunc {
	return func(credential string, _ []byte) bool {
		if credential == "" {
			return false
		}
		secret, err := r.resolve(secretName)
		if err != nil {
			slog.Warn("secret resolution failed during verification")
			return false
		}
		return hmac.Equal([]byte(credential), []byte(secret))
	}
}

func (r *Registry) expectedSignature(secretName, prefix string, algo func() hash.Hash, body []byte) (string, bool) {
	secret, err := r.resolve(secretName)
	if err != nil {
		slog.Warn("secret resolution failed during verification")
		return "", false
	}
	mac := hmac.New(algo, []byte(secret))
	mac.Write(body)
	return prefix + hex.EncodeToString(mac.Sum(nil)), true
}
