package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wingmanhq/wingman/internal/coaching"
	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/knowledge"
	"github.com/wingmanhq/wingman/internal/llm"
	"github.com/wingmanhq/wingman/internal/logging"
	"github.com/wingmanhq/wingman/internal/orchestrator"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `wingman init` to create a config file", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the process logger. It always writes to stderr, which
// keeps stdout free for MCP and command output.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return log, nil
}

// loadKnowledge loads the configured knowledge base, or the embedded one.
func loadKnowledge(cfg *config.Config, log *zap.Logger) (*knowledge.Base, error) {
	kb, err := knowledge.LoadOrDefault(cfg.KnowledgeBase)
	if err != nil {
		return nil, err
	}
	source := cfg.KnowledgeBase
	if source == "" {
		source = "embedded"
	}
	log.Info("knowledge base loaded",
		zap.String("source", source),
		zap.Int("principles", len(kb.Principles)),
		zap.Int("platforms", len(kb.Platforms)),
		zap.Int("conversations", len(kb.Conversations)),
		zap.Int("skipped", kb.Skipped),
	)
	return kb, nil
}

// createLLMProviderFromConfig creates a rate-limited LLM provider based on
// config settings.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	p, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimitedProvider(p, cfg.RequestsPerMinute), nil
}

func engineOptions(cfg *config.Config) orchestrator.Options {
	return orchestrator.Options{
		Model:          cfg.Model,
		RetrievalLimit: cfg.RetrievalLimit,
		Temperature:    cfg.Temperature,
		MaxTokens:      cfg.MaxTokens,
		Defaults: coaching.Preferences{
			Goal:  cfg.DefaultGoal,
			Style: cfg.DefaultStyle,
		},
	}
}
