package runtime_test

import (
	"testing"

	"github.com/2389-research/specloom/runtime"
)

func TestDetectProvidersNoneConfigured(t *testing.T) {
	for _, k := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(k, "")
	}

	cfg := &runtime.Config{DefaultProvider: "anthropic", DefaultModel: "claude-sonnet-4-5-20250929"}
	status := runtime.DetectProviders(cfg)

	if status.AnyAvailable {
		t.Error("expected AnyAvailable to be false with no keys set")
	}
	if len(status.Providers) != 3 {
		t.Fatalf("expected 3 known providers, got %d", len(status.Providers))
	}
	for _, p := range status.Providers {
		if p.HasAPIKey {
			t.Errorf("provider %s should not report a key", p.Name)
		}
	}
}

func TestDetectProvidersOneConfigured(t *testing.T) {
	for _, k := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(k, "")
	}
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := &runtime.Config{DefaultProvider: "openai"}
	status := runtime.DetectProviders(cfg)

	if !status.AnyAvailable {
		t.Fatal("expected AnyAvailable to be true")
	}
	var found bool
	for _, p := range status.Providers {
		if p.Name == "openai" {
			found = true
			if !p.HasAPIKey {
				t.Error("expected openai HasAPIKey true")
			}
		}
	}
	if !found {
		t.Fatal("expected an openai provider entry")
	}
}

func TestNewLLMClientFromEnvNoKeyReturnsNilWithoutError(t *testing.T) {
	for _, k := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(k, "")
	}

	cfg := &runtime.Config{DefaultProvider: "anthropic"}
	client, model, err := runtime.NewLLMClientFromEnv(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client != nil {
		t.Error("expected nil client when no credential is configured")
	}
	if model != "" {
		t.Errorf("expected empty model, got %q", model)
	}
}

func TestNewLLMClientFromEnvUnknownProviderErrors(t *testing.T) {
	cfg := &runtime.Config{DefaultProvider: "carrier-pigeon"}
	if _, _, err := runtime.NewLLMClientFromEnv(cfg); err == nil {
		t.Fatal("expected an error for an unknown provider")
	}
}

func TestNewLLMClientFromEnvBuildsAnthropicClient(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("ANTHROPIC_MODEL", "")

	cfg := &runtime.Config{DefaultProvider: "anthropic"}
	client, model, err := runtime.NewLLMClientFromEnv(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client == nil {
		t.Fatal("expected a non-nil client")
	}
	if model != "claude-sonnet-4-5-20250929" {
		t.Errorf("expected default anthropic model, got %q", model)
	}
}
