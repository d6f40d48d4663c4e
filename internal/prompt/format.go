// Package prompt renders knowledge base material and thread context into
// prompt text for the generation provider.
package prompt

import (
	"fmt"
	"strings"

	"github.com/wingmanhq/wingman/internal/knowledge"
)

// Truncation bounds that cap the prompt cost of each example.
const (
	MaxExampleLines  = 25
	MaxAnalysisRunes = 400
)

// FormatPrinciples renders every principle as "[ID] text", one per line,
// in corpus order.
func FormatPrinciples(principles []knowledge.Principle) string {
	lines := make([]string, len(principles))
	for i, p := range principles {
		lines[i] = fmt.Sprintf("[%s] %s", p.ID, p.Text)
	}
	return strings.Join(lines, "\n")
}

// FormatExamples renders ranked examples as tagged blocks.
func FormatExamples(examples []knowledge.Conversation) string {
	blocks := make([]string, 0, len(examples))
	for _, ex := range examples {
		blocks = append(blocks, formatExample(ex))
	}
	return strings.Join(blocks, "\n\n")
}

func formatExample(ex knowledge.Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<example source=%q platform=%q outcome=%q>\n", ex.Source, ex.Platform, ex.Outcome)
	fmt.Fprintf(&b, "Context: %s\n", ex.Context)

	lines := ex.Lines
	if len(lines) > MaxExampleLines {
		lines = lines[:MaxExampleLines]
	}
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}

	if ex.HasAnalysis() {
		fmt.Fprintf(&b, "Analysis: %s\n", truncateRunes(strings.TrimSpace(ex.Analysis), MaxAnalysisRunes))
	}
	b.WriteString("</example>")
	return b.String()
}

// FormatPlatformContext renders the profile for key, or "" when the key
// is empty or unknown.
func FormatPlatformContext(kb *knowledge.Base, key string) string {
	p, ok := kb.Platform(key)
	if !ok {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "PLATFORM: %s\n", p.DisplayName)
	if len(p.Characteristics) > 0 {
		b.WriteString("Characteristics:\n")
		for _, c := range p.Characteristics {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	if len(p.CommonMistakes) > 0 {
		b.WriteString("Common mistakes:\n")
		for _, m := range p.CommonMistakes {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
