// Package seeder generates signed mock webhook traffic against a running
// gateway. Every request carries the Mock marker header, so seeded rows land
// with a "mock"-suffixed source and never pollute production data.
package seeder

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/deliverypulse/eventstream/internal/sources"
)

// Config controls one seeding run.
type Config struct {
	// GatewayURL is the webhook endpoint, e.g. "http://localhost:8080".
	GatewayURL string

	// Source selects the payload shape: github, gitlab or pagerduty.
	Source string

	// Count is the number of webhooks to send.
	Count int

	// Resolver provides the signing secrets; the gateway must resolve the
	// same values or every request comes back 403.
	Resolver sources.SecretResolver

	// Client defaults to a 10 second timeout client when nil.
	Client *http.Client
}

// Result summarizes a run.
type Result struct {
	Sent   int
	Failed int
}

// Run sends Count signed mock webhooks and reports how many were accepted.
func Run(ctx context.Context, cfg Config) (Result, error) {
	gen, ok := generators[cfg.Source]
	if !ok {
		return Result{}, fmt.Errorf("no payload generator for source %q", cfg.Source)
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	var res Result
	for i := 0; i < cfg.Count; i++ {
		body, headers, err := gen(cfg.Resolver)
		if err != nil {
			return res, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.GatewayURL, bytes.NewReader(body))
		if err != nil {
			return res, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Mock", "True")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			res.Failed++
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			res.Failed++
			continue
		}
		res.Sent++
	}
	return res, nil
}

// generator builds one payload and its authentication headers.
type generator func(resolve sources.SecretResolver) (body []byte, headers map[string]string, err error)

var generators = map[string]generator{
	sources.GitHub:    githubPayload,
	sources.GitLab:    gitlabPayload,
	sources.PagerDuty: pagerdutyPayload,
}

// Sources lists the seedable source names.
func Sources() []string {
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	return names
}

func githubPayload(resolve sources.SecretResolver) ([]byte, map[string]string, error) {
	sha := fakeSHA()
	body, err := json.Marshal(map[string]any{
		"ref": "refs/heads/" + gofakeit.Word(),
		"head_commit": map[string]any{
			"id":        sha,
			"message":   gofakeit.HackerPhrase(),
			"timestamp": recentTimestamp(time.RFC3339),
			"author": map[string]any{
				"name":  gofakeit.Name(),
				"email": gofakeit.Email(),
			},
		},
		"repository": map[string]any{
			"name":      gofakeit.Word(),
			"full_name": gofakeit.Username() + "/" + gofakeit.Word(),
		},
	})
	if err != nil {
		return nil, nil, err
	}

	sig, err := signHMAC(resolve, "GITHUB_SECRET", "sha1=", false, body)
	if err != nil {
		return nil, nil, err
	}
	return body, map[string]string{
		"User-Agent":      "GitHub-Hookshot/" + gofakeit.LetterN(7),
		"X-Github-Event":  "push",
		"X-Hub-Signature": sig,
	}, nil
}

func gitlabPayload(resolve sources.SecretResolver) ([]byte, map[string]string, error) {
	sha := fakeSHA()
	body, err := json.Marshal(map[string]any{
		"object_kind":  "push",
		"checkout_sha": sha,
		"commits": []map[string]any{
			{
				"id":        sha,
				"message":   gofakeit.HackerPhrase(),
				"timestamp": recentTimestamp(time.RFC3339),
			},
		},
		"project": map[string]any{
			"name": gofakeit.Word(),
		},
	})
	if err != nil {
		return nil, nil, err
	}

	token, err := resolve("TOKEN")
	if err != nil {
		return nil, nil, err
	}
	return body, map[string]string{
		"X-Gitlab-Event": "Push Hook",
		"X-Gitlab-Token": token,
	}, nil
}

func pagerdutyPayload(resolve sources.SecretResolver) ([]byte, map[string]string, error) {
	body, err := json.Marshal(map[string]any{
		"event": map[string]any{
			"id":          gofakeit.UUID(),
			"event_type":  "incident.resolved",
			"occurred_at": recentTimestamp("2006-01-02T15:04:05.000Z"),
			"data": map[string]any{
				"type":  "incident",
				"title": gofakeit.HackerPhrase(),
			},
		},
	})
	if err != nil {
		return nil, nil, err
	}

	sig, err := signHMAC(resolve, "PAGER_DUTY_SECRET", "v1=", true, body)
	if err != nil {
		return nil, nil, err
	}
	return body, map[string]string{
		"X-Pagerduty-Signature": sig,
	}, nil
}

func signHMAC(resolve sources.SecretResolver, secretName, prefix string, useSHA256 bool, body []byte) (string, error) {
	secret, err := resolve(secretName)
	if err != nil {
		return "", fmt.Errorf("resolve signing secret: %w", err)
	}
	mac := hmac.New(sha1.New, []byte(secret))
	if useSHA256 {
		mac = hmac.New(sha256.New, []byte(secret))
	}
	mac.Write(body)
	return prefix + hex.EncodeToString(mac.Sum(nil)), nil
}

func fakeSHA() string {
	return gofakeit.HexUint128()[2:] + gofakeit.HexUint32()[2:]
}

func recentTimestamp(layout string) string {
	offset := time.Duration(gofakeit.Number(0, 3600)) * time.Second
	return time.Now().UTC().Add(-offset).Format(layout)
}
