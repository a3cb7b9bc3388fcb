package seeder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deliverypulse/eventstream/internal/sources"
)

var testSecrets = map[string]string{
	"GITHUB_SECRET":     "github-secret",
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

func TestRunSendsVerifiableWebhooks(t *testing.T) {
	registry := sources.NewRegistry(testResolver)

	received := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received++

		source := sources.Classify(r.Header)
		src, ok := registry.Lookup(source)
		require.True(t, ok, "seeded request must classify as an authorized source, got %q", source)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.True(t, src.Verify(r.Header.Get(src.SignatureHeader), body),
			"seeded %s request must carry a valid credential", source)
		assert.Equal(t, "True", r.Header.Get("Mock"))

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	for _, source := range []string{"github", "gitlab", "pagerduty"} {
		t.Run(source, func(t *testing.T) {
			res, err := Run(context.Background(), Config{
				GatewayURL: srv.URL,
				Source:     source,
				Count:      3,
				Resolver:   testResolver,
			})
			require.NoError(t, err)
			assert.Equal(t, 3, res.Sent)
			assert.Zero(t, res.Failed)
		})
	}

	assert.Equal(t, 9, received)
}

func TestRunCountsRejections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Signature does not match expected signature", http.StatusForbidden)
	}))
	defer srv.Close()

	res, err := Run(context.Background(), Config{
		GatewayURL: srv.URL,
		Source:     "github",
		Count:      2,
		Resolver:   testResolver,
	})
	require.NoError(t, err)
	assert.Zero(t, res.Sent)
	assert.Equal(t, 2, res.Failed)
}

func TestRunUnknownSource(t *testing.T) {
	_, err := Run(context.Background(), Config{Source: "bitbucket", Count: 1, Resolver: testResolver})
	assert.Error(t, err)
}

func TestRunUnresolvableSecret(t *testing.T) {
	missing := func(string) (string, error) { return "", fmt.Errorf("nope") }
	_, err := Run(context.Background(), Config{
		GatewayURL: "http://localhost:0",
		Source:     "github",
		Count:      1,
		Resolver:   missing,
	})
	assert.Error(t, err)
}

func TestSourcesListsGenerators(t *testing.T) {
	assert.ElementsMatch(t, []string{"github", "gitlab", "pagerduty"}, Sources())
}
