package sources

import (
	"fmt"
	"os"
)

// SecretResolver looks up a shared secret by logical name.
// Implementations must treat a missing secret as an error, never as an empty
// value, so verification fails closed.
type SecretResolver func(name string) (string, error)

// EnvPrefix is the environment variable prefix for resolved secrets.
const EnvPrefix = "EV"

// EnvResolver resolves secrets from process environment variables using the
// {PREFIX}_{NAME} convention, e.g. GITHUB_SECRET -> EV_GITHUB_SECRET.
func EnvResolver(name string) (string, error) {
	computed := EnvPrefix + "_" + name
	secret, ok := os.LookupEnv(computed)
	if !ok {
		return "", fmt.Errorf("unable to find secret for %s", computed)
	}
	return secret, nil
}
