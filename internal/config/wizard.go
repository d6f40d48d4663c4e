package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"

	"github.com/wingmanhq/wingman/internal/coaching"
)

// wizardAnswers holds the raw choices made in the wizard.
type wizardAnswers struct {
	Provider      ProviderType
	Model         string
	KnowledgeBase string
	Goal          string
	Style         string
	Port          string
}

// RunWizard runs an interactive configuration wizard, saves the result
// to path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to wingman! Let's set up your coach.")
	fmt.Println()

	var a wizardAnswers

	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"openai", "anthropic", "openrouter", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	a.Provider = ProviderType(providerStr)

	modelPrompt := promptui.Prompt{
		Label:   "Model (must accept images)",
		Default: DefaultModel(a.Provider),
	}
	if a.Model, err = modelPrompt.Run(); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	kbPrompt := promptui.Prompt{
		Label:   "Knowledge base file (blank for the built-in corpus)",
		Default: "",
	}
	if a.KnowledgeBase, err = kbPrompt.Run(); err != nil {
		return nil, fmt.Errorf("knowledge base: %w", err)
	}

	if a.Goal, err = selectChip("goal", "Your usual goal"); err != nil {
		return nil, err
	}
	if a.Style, err = selectChip("style", "Your preferred tone"); err != nil {
		return nil, err
	}

	portPrompt := promptui.Prompt{
		Label:    "HTTP port",
		Default:  "8080",
		Validate: validatePort,
	}
	if a.Port, err = portPrompt.Run(); err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}

	cfg, err := buildConfig(a)
	if err != nil {
		return nil, err
	}

	if envVar := APIKeyEnvVar(cfg.Provider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment before running wingman server.\n", envVar)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// selectChip offers the chips of a clarifying question as a preference;
// the skip chip leaves the preference unset.
func selectChip(questionID, label string) (string, error) {
	q, ok := coaching.QuestionByID(questionID)
	if !ok {
		return "", fmt.Errorf("unknown question %q", questionID)
	}
	items := make([]string, len(q.Chips))
	for i, c := range q.Chips {
		items[i] = c.Label
	}
	sel := promptui.Select{Label: label, Items: items}
	idx, _, err := sel.Run()
	if err != nil {
		return "", fmt.Errorf("%s selection: %w", questionID, err)
	}
	if v := q.Chips[idx].Value; v != coaching.SkipValue {
		return v, nil
	}
	return "", nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if n <= 0 || n > 65535 {
		return fmt.Errorf("port out of range")
	}
	return nil
}

// buildConfig turns wizard answers into a validated config.
func buildConfig(a wizardAnswers) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Provider = a.Provider
	cfg.Model = a.Model
	if cfg.Model == "" {
		cfg.Model = DefaultModel(a.Provider)
	}
	cfg.KnowledgeBase = a.KnowledgeBase
	cfg.DefaultGoal = a.Goal
	cfg.DefaultStyle = a.Style

	if a.Port != "" {
		port, err := strconv.Atoi(a.Port)
		if err != nil {
			return nil, fmt.Errorf("parsing port %q: %w", a.Port, err)
		}
		cfg.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
