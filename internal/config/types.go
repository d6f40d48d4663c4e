package config

import "time"

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderOpenAI     ProviderType = "openai"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderOllama     ProviderType = "ollama"
)

// Config is the top-level wingman configuration, corresponding to .wingman.yml.
type Config struct {
	Provider          ProviderType  `yaml:"provider" koanf:"provider"`
	Model             string        `yaml:"model" koanf:"model"`
	KnowledgeBase     string        `yaml:"knowledge_base" koanf:"knowledge_base"`
	DataDir           string        `yaml:"data_dir" koanf:"data_dir"`
	RetrievalLimit    int           `yaml:"retrieval_limit" koanf:"retrieval_limit"`
	Temperature       float64       `yaml:"temperature" koanf:"temperature"`
	MaxTokens         int           `yaml:"max_tokens" koanf:"max_tokens"`
	RequestsPerMinute int           `yaml:"requests_per_minute" koanf:"requests_per_minute"`
	LogLevel          string        `yaml:"log_level" koanf:"log_level"`
	LogFormat         string        `yaml:"log_format" koanf:"log_format"`
	Port              int           `yaml:"port" koanf:"port"`
	AllowAllOrigins   bool          `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	DefaultGoal       string        `yaml:"default_goal" koanf:"default_goal"`
	DefaultStyle      string        `yaml:"default_style" koanf:"default_style"`
	SaveRetryInterval time.Duration `yaml:"save_retry_interval" koanf:"save_retry_interval"`
}
