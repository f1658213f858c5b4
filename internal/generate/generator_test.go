package generate

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"kasaio/internal/catalog"
)

func fullSettings() map[string]string {
	return map[string]string{
		"KASPA_NETWORK":     "mainnet",
		"KASAIO_DATA_DIR":   "/var/lib/kasaio",
		"POSTGRES_PASSWORD": "supersecretpassword123456",
		"SOCKET_AUTH_TOKEN": "anothersecretvalue7890123",
	}
}

func TestGenerate(t *testing.T) {
	g := NewGenerator(catalog.Default)

	t.Run("deterministic output", func(t *testing.T) {
		resolved := []string{"kaspa-node", "postgres", "kaspa-indexer"}
		first, fieldErrs, err := g.Generate(resolved, fullSettings())
		if err != nil || len(fieldErrs) > 0 {
			t.Fatalf("Generate() err = %v, fieldErrs = %v", err, fieldErrs)
		}
		second, _, err := g.Generate(resolved, fullSettings())
		if err != nil {
			t.Fatalf("Generate() second err = %v", err)
		}
		if !bytes.Equal(first.ComposeYAML, second.ComposeYAML) {
			t.Fatal("compose output differs between identical runs")
		}
		firstEnv, _ := EncodeEnv(first.Env)
		secondEnv, _ := EncodeEnv(second.Env)
		if !bytes.Equal(firstEnv, secondEnv) {
			t.Fatal("env output differs between identical runs")
		}
	})

	t.Run("service included exactly when owner profile resolved", func(t *testing.T) {
		out, fieldErrs, err := g.Generate([]string{"kaspa-node"}, fullSettings())
		if err != nil || len(fieldErrs) > 0 {
			t.Fatalf("Generate() err = %v, fieldErrs = %v", err, fieldErrs)
		}
		doc := string(out.ComposeYAML)
		if !strings.Contains(doc, "kaspad:") {
			t.Fatal("kaspad service missing despite kaspa-node being selected")
		}
		if strings.Contains(doc, "kaspa-stratum-bridge") {
			t.Fatal("unselected profile's service leaked into document")
		}
	})

	t.Run("two service profile materializes both blocks", func(t *testing.T) {
		resolved := []string{"kaspa-explorer", "kaspa-rest-server", "postgres"}
		out, fieldErrs, err := g.Generate(resolved, fullSettings())
		if err != nil || len(fieldErrs) > 0 {
			t.Fatalf("Generate() err = %v, fieldErrs = %v", err, fieldErrs)
		}
		project, err := ParseCompose(context.Background(), out.ComposeYAML)
		if err != nil {
			t.Fatalf("ParseCompose() error = %v", err)
		}
		names := ServiceNames(project)
		for _, want := range []string{"kaspa-explorer", "kaspa-socket"} {
			found := false
			for _, name := range names {
				if name == want {
					found = true
				}
			}
			if !found {
				t.Errorf("service %s missing from document: %v", want, names)
			}
		}
	})

	t.Run("missing secret generated before validation", func(t *testing.T) {
		settings := map[string]string{"KASPA_NETWORK": "mainnet"}
		out, fieldErrs, err := g.Generate([]string{"postgres"}, settings)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if len(fieldErrs) > 0 {
			t.Fatalf("fieldErrs = %v; omitted generatable secret must not fail validation", fieldErrs)
		}
		if len(out.GeneratedSecrets) != 1 || out.GeneratedSecrets[0] != "POSTGRES_PASSWORD" {
			t.Fatalf("GeneratedSecrets = %v, want [POSTGRES_PASSWORD]", out.GeneratedSecrets)
		}
		if len(out.Env["POSTGRES_PASSWORD"]) < secretMinLength {
			t.Fatalf("generated secret too short: %d", len(out.Env["POSTGRES_PASSWORD"]))
		}
	})

	t.Run("user supplied secret kept verbatim", func(t *testing.T) {
		settings := fullSettings()
		out, fieldErrs, err := g.Generate([]string{"postgres"}, settings)
		if err != nil || len(fieldErrs) > 0 {
			t.Fatalf("Generate() err = %v, fieldErrs = %v", err, fieldErrs)
		}
		if out.Env["POSTGRES_PASSWORD"] != settings["POSTGRES_PASSWORD"] {
			t.Fatal("user-supplied secret was replaced")
		}
		if len(out.GeneratedSecrets) != 0 {
			t.Fatalf("GeneratedSecrets = %v, want none", out.GeneratedSecrets)
		}
	})

	t.Run("unknown settings key rejected", func(t *testing.T) {
		settings := fullSettings()
		settings["TYPO_KEY"] = "x"
		out, fieldErrs, err := g.Generate([]string{"kaspa-node"}, settings)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if len(fieldErrs) != 1 || fieldErrs[0].Field != "TYPO_KEY" {
			t.Fatalf("fieldErrs = %v, want one error on TYPO_KEY", fieldErrs)
		}
		if out.ComposeYAML != nil {
			t.Fatal("document emitted despite validation failure")
		}
	})

	t.Run("port below 1024 rejected as field error", func(t *testing.T) {
		settings := fullSettings()
		settings["REST_PORT"] = "80"
		_, fieldErrs, err := g.Generate([]string{"kaspa-rest-server", "postgres", "kaspa-indexer", "kaspa-node"}, settings)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if len(fieldErrs) != 1 || fieldErrs[0].Field != "REST_PORT" {
			t.Fatalf("fieldErrs = %v, want port range error on REST_PORT", fieldErrs)
		}
	})

	t.Run("network enum enforced", func(t *testing.T) {
		settings := fullSettings()
		settings["KASPA_NETWORK"] = "moonnet"
		_, fieldErrs, _ := g.Generate([]string{"kaspa-node"}, settings)
		if len(fieldErrs) != 1 || fieldErrs[0].Field != "KASPA_NETWORK" {
			t.Fatalf("fieldErrs = %v, want enum error on KASPA_NETWORK", fieldErrs)
		}
	})

	t.Run("shell metacharacters in data dir rejected", func(t *testing.T) {
		settings := fullSettings()
		settings["KASAIO_DATA_DIR"] = "/var/lib/kasaio;rm -rf /"
		_, fieldErrs, _ := g.Generate([]string{"kaspa-node"}, settings)
		if len(fieldErrs) == 0 {
			t.Fatal("metacharacter path accepted")
		}
	})

	t.Run("hex private key rejected as field error", func(t *testing.T) {
		settings := fullSettings()
		settings["POSTGRES_PASSWORD"] = "0f3c9a1b2d4e5f60718293a4b5c6d7e8f9a0b1c2d3e4f5061728394a5b6c7d8e"
		out, fieldErrs, err := g.Generate([]string{"postgres"}, settings)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if len(fieldErrs) != 1 || fieldErrs[0].Field != "POSTGRES_PASSWORD" {
			t.Fatalf("fieldErrs = %v, want key material error on POSTGRES_PASSWORD", fieldErrs)
		}
		if out.ComposeYAML != nil {
			t.Fatal("document emitted despite key material in settings")
		}
	})

	t.Run("mnemonic phrase rejected as field error", func(t *testing.T) {
		settings := fullSettings()
		settings["SOCKET_AUTH_TOKEN"] = "abandon ability able about above absent absorb abstract absurd abuse access accident"
		_, fieldErrs, _ := g.Generate([]string{"kaspa-explorer", "kaspa-rest-server", "kaspa-indexer", "postgres", "kaspa-node"}, settings)
		if len(fieldErrs) != 1 || fieldErrs[0].Field != "SOCKET_AUTH_TOKEN" {
			t.Fatalf("fieldErrs = %v, want key material error on SOCKET_AUTH_TOKEN", fieldErrs)
		}
	})

	t.Run("ordinary long password passes the key material filter", func(t *testing.T) {
		settings := fullSettings()
		settings["POSTGRES_PASSWORD"] = "correct-horse-battery-staple-2024"
		_, fieldErrs, err := g.Generate([]string{"postgres"}, settings)
		if err != nil || len(fieldErrs) > 0 {
			t.Fatalf("Generate() err = %v, fieldErrs = %v", err, fieldErrs)
		}
	})

	t.Run("settings override service defaults", func(t *testing.T) {
		settings := fullSettings()
		settings["KASPAD_UTXOINDEX"] = "false"
		out, fieldErrs, err := g.Generate([]string{"kaspa-node"}, settings)
		if err != nil || len(fieldErrs) > 0 {
			t.Fatalf("Generate() err = %v, fieldErrs = %v", err, fieldErrs)
		}
		project, err := ParseCompose(context.Background(), out.ComposeYAML)
		if err != nil {
			t.Fatalf("ParseCompose() error = %v", err)
		}
		svc, err := project.GetService("kaspad")
		if err != nil {
			t.Fatalf("GetService(kaspad) error = %v", err)
		}
		if v := svc.Environment["KASPAD_UTXOINDEX"]; v == nil || *v != "false" {
			t.Fatalf("KASPAD_UTXOINDEX = %v, want false", v)
		}
	})
}

func TestEnvRoundTrip(t *testing.T) {
	env := map[string]string{
		"KASPA_NETWORK":     "testnet-10",
		"POSTGRES_PASSWORD": "s3cret-with-dash_and_underscore",
	}
	data, err := EncodeEnv(env)
	if err != nil {
		t.Fatalf("EncodeEnv() error = %v", err)
	}
	back, err := ParseEnv(data)
	if err != nil {
		t.Fatalf("ParseEnv() error = %v", err)
	}
	if len(back) != len(env) {
		t.Fatalf("round trip size = %d, want %d", len(back), len(env))
	}
	for key, value := range env {
		if back[key] != value {
			t.Errorf("round trip %s = %q, want %q", key, back[key], value)
		}
	}
}

func TestNewSecret(t *testing.T) {
	a, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret() error = %v", err)
	}
	b, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret() error = %v", err)
	}
	if len(a) != secretMinLength {
		t.Fatalf("secret length = %d, want %d", len(a), secretMinLength)
	}
	if a == b {
		t.Fatal("two generated secrets are identical")
	}
}
