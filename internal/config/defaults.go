package config

import "time"

// FileName is the config file looked up in the working directory.
const FileName = ".wingman.yml"

// defaultModels maps each provider to a vision-capable model.
var defaultModels = map[ProviderType]string{
	ProviderAnthropic:  "claude-sonnet-4-5-20250929",
	ProviderOpenAI:     "gpt-4o",
	ProviderOpenRouter: "openai/gpt-4o",
	ProviderOllama:     "llava",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             defaultModels[ProviderOpenAI],
		DataDir:           ".wingman",
		RetrievalLimit:    3,
		Temperature:       0.8,
		MaxTokens:         1500,
		RequestsPerMinute: 60,
		LogLevel:          "info",
		LogFormat:         "console",
		Port:              8080,
		SaveRetryInterval: 30 * time.Second,
	}
}

// DefaultModel returns the default model for the given provider, falling
// back to the OpenAI default for unknown providers.
func DefaultModel(provider ProviderType) string {
	if m, ok := defaultModels[provider]; ok {
		return m
	}
	return defaultModels[ProviderOpenAI]
}
