package llm

import (
	"errors"
	"fmt"
	"os"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOllamaHost = "http://localhost:11434"
)

// ErrMissingAPIKey is returned when a hosted provider has no key in the
// environment.
var ErrMissingAPIKey = errors.New("API key environment variable is not set")

// apiKeyEnv names the environment variable holding each hosted provider's key.
var apiKeyEnv = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
}

// NewProvider creates a provider for the given type and model, reading
// credentials from the environment. Supported types: "anthropic",
// "openai", "openrouter", "ollama". Every supported model must accept
// images for screenshot turns.
func NewProvider(providerType string, model string) (Provider, error) {
	if providerType == "ollama" {
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = defaultOllamaHost
		}
		return NewOllamaProvider(host, model), nil
	}

	env, ok := apiKeyEnv[providerType]
	if !ok {
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
	key := os.Getenv(env)
	if key == "" {
		return nil, fmt.Errorf("%s: %w", env, ErrMissingAPIKey)
	}

	switch providerType {
	case "anthropic":
		return NewAnthropicProvider(key, model), nil
	case "openrouter":
		return NewOpenAICompatibleProvider("openrouter", openRouterBaseURL, key, model), nil
	default:
		return NewOpenAIProvider(key, model), nil
	}
}
