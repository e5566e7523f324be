package config

// LLMConfig selects and configures the LLM provider the Runner drives
// (internal/providers), per SPEC_FULL.md §10: Gemini primary, Anthropic as
// the fallback/maintenance-path provider.
type LLMConfig struct {
	// DefaultProvider is "gemini" or "anthropic".
	DefaultProvider string            `yaml:"default_provider"`
	Gemini          LLMProviderConfig `yaml:"gemini"`
	Anthropic       LLMProviderConfig `yaml:"anthropic"`
}

// LLMProviderConfig holds one provider's credentials and default model.
type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
}

func applyLLMDefaults(cfg *LLMConfig) {
	if cfg.Gemini.DefaultModel == "" {
		cfg.Gemini.DefaultModel = "gemini-2.0-flash"
	}
	if cfg.Anthropic.DefaultModel == "" {
		cfg.Anthropic.DefaultModel = "claude-sonnet-4-20250514"
	}
}
