package runtime

import (
	"context"
	"fmt"
	"os"

	muxllm "github.com/2389-research/mux/llm"
)

// ProviderInfo describes one LLM provider's configuration status without
// exposing its credential.
type ProviderInfo struct {
	Name      string
	HasAPIKey bool
	Model     string
}

// ProviderStatus is the aggregated provider availability the daemon logs
// at startup. Swarm start is gated separately, on whether an LLM client
// could be built for the default provider.
type ProviderStatus struct {
	DefaultProvider string
	DefaultModel    string
	Providers       []ProviderInfo
	AnyAvailable    bool
}

type providerEnv struct {
	name         string
	apiKeyVar    string
	modelVar     string
	defaultModel string
}

var knownProviders = []providerEnv{
	{name: "anthropic", apiKeyVar: "ANTHROPIC_API_KEY", modelVar: "ANTHROPIC_MODEL", defaultModel: "claude-sonnet-4-5-20250929"},
	{name: "openai", apiKeyVar: "OPENAI_API_KEY", modelVar: "OPENAI_MODEL", defaultModel: "gpt-4o"},
	{name: "gemini", apiKeyVar: "GEMINI_API_KEY", modelVar: "GEMINI_MODEL", defaultModel: "gemini-2.0-flash"},
}

// DetectProviders checks environment variables for provider credentials
// without ever surfacing the credential values themselves.
func DetectProviders(cfg *Config) ProviderStatus {
	var infos []ProviderInfo
	anyAvailable := false
	for _, p := range knownProviders {
		hasKey := os.Getenv(p.apiKeyVar) != ""
		model := envOrDefault(p.modelVar, p.defaultModel)
		infos = append(infos, ProviderInfo{Name: p.name, HasAPIKey: hasKey, Model: model})
		anyAvailable = anyAvailable || hasKey
	}
	return ProviderStatus{
		DefaultProvider: cfg.DefaultProvider,
		DefaultModel:    cfg.DefaultModel,
		Providers:       infos,
		AnyAvailable:    anyAvailable,
	}
}

// NewLLMClientFromEnv builds a mux LLM client for cfg.DefaultProvider using
// whichever API key is present in the environment. It returns (nil, "",
// nil) rather than an error when no provider is configured: the swarm
// orchestrator simply never starts for a spec in that case, which is a
// normal deployment mode (a human-only collaborator), not a fault.
func NewLLMClientFromEnv(cfg *Config) (muxllm.Client, string, error) {
	provider := cfg.DefaultProvider
	if provider == "" {
		provider = "anthropic"
	}

	entry, ok := providerEntry(provider)
	if !ok {
		return nil, "", fmt.Errorf("unknown provider %q", provider)
	}

	apiKey := os.Getenv(entry.apiKeyVar)
	if apiKey == "" {
		return nil, "", nil
	}

	model := cfg.DefaultModel
	if model == "" {
		model = envOrDefault(entry.modelVar, entry.defaultModel)
	}

	client, err := newMuxClient(entry.name, apiKey)
	if err != nil {
		return nil, "", fmt.Errorf("creating %s client: %w", entry.name, err)
	}
	return client, model, nil
}

func providerEntry(name string) (providerEnv, bool) {
	for _, p := range knownProviders {
		if p.name == name {
			return p, true
		}
	}
	return providerEnv{}, false
}

func newMuxClient(provider, apiKey string) (muxllm.Client, error) {
	switch provider {
	case "anthropic":
		return muxllm.NewAnthropicClient(apiKey, ""), nil
	case "openai":
		return muxllm.NewOpenAIClient(apiKey, ""), nil
	case "gemini":
		return muxllm.NewGeminiClient(context.Background(), apiKey, "")
	default:
		return muxllm.NewAnthropicClient(apiKey, ""), nil
	}
}
