package generate

import (
	"crypto/rand"
	"fmt"
	"sort"
)

// secretMinLength is both the generated length and the minimum accepted
// length for user-supplied secrets.
const secretMinLength = 24

// Alphanumeric only: generated secrets end up in env files and connection
// strings where quoting rules differ.
const secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewSecret returns a cryptographically random secret of secretMinLength.
func NewSecret() (string, error) {
	buf := make([]byte, secretMinLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	out := make([]byte, secretMinLength)
	for i, b := range buf {
		out[i] = secretAlphabet[int(b)%len(secretAlphabet)]
	}
	return string(out), nil
}

// CompleteSettings returns a copy of settings with defaults applied and
// every secret required by the resolved profiles present, generating values
// for absent ones. Generation happens before validation so that a missing
// generatable secret can never fail a selection. The generated key names are
// returned so the caller can surface and persist them.
func (g *Generator) CompleteSettings(resolved []string, settings map[string]string) (map[string]string, []string, error) {
	out := make(map[string]string, len(settings)+len(settingsDefaults))
	for key, value := range settings {
		out[key] = value
	}
	for key, value := range settingsDefaults {
		if _, ok := out[key]; !ok {
			out[key] = value
		}
	}

	required := make(map[string]bool)
	for _, id := range resolved {
		p, ok := g.cat.Lookup(id)
		if !ok {
			continue
		}
		for _, svc := range p.Services {
			for _, key := range svc.RequiredSecrets {
				required[key] = true
			}
		}
	}

	keys := make([]string, 0, len(required))
	for key := range required {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var generated []string
	for _, key := range keys {
		if _, ok := out[key]; ok {
			continue
		}
		value, err := NewSecret()
		if err != nil {
			return nil, nil, err
		}
		out[key] = value
		generated = append(generated, key)
	}
	return out, generated, nil
}

// RequiredSecretsFor lists the secret keys the resolved profiles need.
func RequiredSecretsFor(cat Catalog, resolved []string) []string {
	required := make(map[string]bool)
	for _, id := range resolved {
		p, ok := cat.Lookup(id)
		if !ok {
			continue
		}
		for _, svc := range p.Services {
			for _, key := range svc.RequiredSecrets {
				required[key] = true
			}
		}
	}
	out := make([]string, 0, len(required))
	for key := range required {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
