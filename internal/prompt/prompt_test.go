package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/wingmanhq/wingman/internal/analysis"
	"github.com/wingmanhq/wingman/internal/coaching"
	"github.com/wingmanhq/wingman/internal/knowledge"
)

func testKB() *knowledge.Base {
	return &knowledge.Base{
		Principles: []knowledge.Principle{
			{ID: "P01", Text: "Match energy", Category: knowledge.CategoryStyle},
			{ID: "P02", Text: "Be playful", Category: knowledge.CategoryStyle},
			{ID: "P03", Text: "Wait two days", Category: knowledge.CategoryTiming},
		},
		Platforms: map[string]knowledge.PlatformProfile{
			"tinder": {
				Key:             "tinder",
				DisplayName:     "Tinder",
				Characteristics: []string{"Fast matches"},
				CommonMistakes:  []string{"Saying hey"},
			},
		},
	}
}

func TestFormatPrinciplesIncludesAll(t *testing.T) {
	got := FormatPrinciples(testKB().Principles)
	want := "[P01] Match energy\n[P02] Be playful\n[P03] Wait two days"
	if got != want {
		t.Errorf("FormatPrinciples =\n%s\nwant\n%s", got, want)
	}
	if FormatPrinciples(nil) != "" {
		t.Error("expected empty string for no principles")
	}
}

func TestFormatPlatformContext(t *testing.T) {
	kb := testKB()

	if got := FormatPlatformContext(kb, ""); got != "" {
		t.Errorf("expected empty for absent key, got %q", got)
	}
	if got := FormatPlatformContext(kb, "nonexistent-key"); got != "" {
		t.Errorf("expected empty for unknown key, got %q", got)
	}
	if got := FormatPlatformContext(nil, "tinder"); got != "" {
		t.Errorf("expected empty for nil knowledge base, got %q", got)
	}

	got := FormatPlatformContext(kb, "TINDER")
	for _, want := range []string{"PLATFORM: Tinder", "Characteristics:", "- Fast matches", "Common mistakes:", "- Saying hey"} {
		if !strings.Contains(got, want) {
			t.Errorf("platform block missing %q:\n%s", want, got)
		}
	}
}

func TestFormatExamplesTruncates(t *testing.T) {
	var lines []string
	for i := 0; i < 40; i++ {
		lines = append(lines, fmt.Sprintf("line %02d", i))
	}
	ex := knowledge.Conversation{
		ID: "c1", Source: "coach", Platform: "tinder", Outcome: knowledge.OutcomeDate,
		Context: "ghosted", Lines: lines, Analysis: strings.Repeat("é", 500),
	}

	got := FormatExamples([]knowledge.Conversation{ex})

	if !strings.HasPrefix(got, `<example source="coach" platform="tinder" outcome="date">`) {
		t.Errorf("unexpected block header: %q", strings.SplitN(got, "\n", 2)[0])
	}
	if !strings.Contains(got, "Context: ghosted") {
		t.Error("missing context line")
	}
	if !strings.Contains(got, "line 24") {
		t.Error("expected the 25th line to be kept")
	}
	if strings.Contains(got, "line 25") {
		t.Error("expected lines beyond 25 to be dropped")
	}
	if !strings.HasSuffix(got, "</example>") {
		t.Error("block not closed")
	}

	analysisLine := ""
	for _, l := range strings.Split(got, "\n") {
		if strings.HasPrefix(l, "Analysis: ") {
			analysisLine = strings.TrimPrefix(l, "Analysis: ")
		}
	}
	if n := len([]rune(analysisLine)); n != MaxAnalysisRunes+1 {
		t.Errorf("expected %d runes of analysis plus ellipsis, got %d", MaxAnalysisRunes, n)
	}
}

func TestFormatExamplesWithoutAnalysis(t *testing.T) {
	ex := knowledge.Conversation{Source: "s", Platform: "hinge", Outcome: knowledge.OutcomeUnknown, Lines: []string{"hi"}}
	b := knowledge.Conversation{Source: "t", Platform: "bumble", Outcome: knowledge.OutcomeUnknown, Lines: []string{"yo"}}
	got := FormatExamples([]knowledge.Conversation{ex, b})
	if strings.Contains(got, "Analysis:") {
		t.Error("analysis line must be omitted when absent")
	}
	if strings.Count(got, "<example ") != 2 {
		t.Errorf("expected 2 blocks:\n%s", got)
	}
	if FormatExamples(nil) != "" {
		t.Error("expected empty string for no examples")
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	kb := testKB()
	ctx := coaching.New(coaching.Preferences{Goal: "dating", Style: "playful"})
	ctx = coaching.ProcessAnswer(ctx, "platform", "tinder")
	ctx = coaching.UpdateFromAnalysis(ctx, &analysis.Analysis{Language: "fr"})

	got := BuildSystemPrompt(Input{
		Knowledge: kb,
		Context:   ctx,
		Examples:  []knowledge.Conversation{{Source: "coach", Platform: "tinder", Lines: []string{"hey"}}},
		Media:     true,
	})

	for _, want := range []string{
		"[P01] Match energy",
		"[P03] Wait two days",
		"PLATFORM: Tinder",
		"- goal: dating",
		"- language: fr (detected)",
		"- platform: tinder",
		"<example source=\"coach\"",
		MediaInstruction,
		`"replies"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}

	plain := BuildSystemPrompt(Input{Knowledge: kb, Context: coaching.New(coaching.Preferences{})})
	if strings.Contains(plain, "## Platform") || strings.Contains(plain, "## Similar conversations") || strings.Contains(plain, MediaInstruction) {
		t.Errorf("unexpected optional sections in prompt:\n%s", plain)
	}
}
