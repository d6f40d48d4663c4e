package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/wingmanhq/wingman/internal/analysis"
	"github.com/wingmanhq/wingman/internal/coaching"
	"github.com/wingmanhq/wingman/internal/knowledge"
	"github.com/wingmanhq/wingman/internal/prompt"
	"github.com/wingmanhq/wingman/internal/retrieval"
)

// handleRankExamples scores the corpus against the given situation.
func (s *Server) handleRankExamples(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := retrieval.Query{
		Goal:        request.GetString("goal", ""),
		Style:       request.GetString("style", ""),
		Platform:    request.GetString("platform", ""),
		Stage:       request.GetString("stage", ""),
		UserMessage: request.GetString("message", ""),
	}
	limit := request.GetInt("limit", retrieval.DefaultLimit)

	scored := retrieval.RankScored(q, s.kb.Conversations, limit)
	s.log.Debug("rank_examples", zap.Int("results", len(scored)), zap.String("platform", q.Platform))
	if len(scored) == 0 {
		return mcp.NewToolResultText("No example conversations are loaded."), nil
	}

	return mcp.NewToolResultText(formatScored(scored)), nil
}

// handlePlatformContext returns the platform block used in system prompts.
func (s *Server) handlePlatformContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := request.RequireString("platform")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: platform"), nil
	}

	text := prompt.FormatPlatformContext(s.kb, key)
	if text == "" {
		return mcp.NewToolResultError(fmt.Sprintf(
			"Unknown platform %q. Known platforms: %s",
			key, strings.Join(s.platformKeys(), ", "),
		)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// handleListPrinciples lists principles, optionally filtered by category.
func (s *Server) handleListPrinciples(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := knowledge.Category(strings.ToLower(request.GetString("category", "")))

	var principles []knowledge.Principle
	for _, p := range s.kb.Principles {
		if category == "" || p.Category == category {
			principles = append(principles, p)
		}
	}
	if len(principles) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No principles in category %q.", category)), nil
	}
	return mcp.NewToolResultText(prompt.FormatPrinciples(principles)), nil
}

// handleNextQuestion rebuilds a context from the arguments and runs the
// question selector over it.
func (s *Server) handleNextQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tc := contextFromArgs(request)

	if coaching.HasEnoughContext(tc) {
		return mcp.NewToolResultText("Enough context to suggest replies. No question needed."), nil
	}
	return mcp.NewToolResultText(formatQuestion(coaching.NextQuestion(tc))), nil
}

// contextFromArgs treats each given field as the user's answer and each
// detected_ field as an inference. Answers win over inferences.
func contextFromArgs(request mcp.CallToolRequest) coaching.ThreadContext {
	tc := coaching.New(coaching.Preferences{})
	for _, q := range coaching.Questions() {
		if v := request.GetString(q.ID, ""); v != "" {
			tc = coaching.ProcessAnswer(tc, q.ID, v)
		}
	}
	return coaching.UpdateFromAnalysis(tc, &analysis.Analysis{
		Platform: request.GetString("detected_platform", ""),
		Stage:    request.GetString("detected_stage", ""),
	})
}

func (s *Server) platformKeys() []string {
	keys := make([]string, 0, len(s.kb.Platforms))
	for k := range s.kb.Platforms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatScored renders ranked examples with their scores for agent
// consumption.
func formatScored(scored []retrieval.Scored) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d example(s):\n", len(scored)))

	for i, sc := range scored {
		sb.WriteString(fmt.Sprintf("\n--- Example %d (score %d) ---\n", i+1, sc.Score))
		sb.WriteString(prompt.FormatExamples([]knowledge.Conversation{sc.Conversation}))
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatQuestion(q *coaching.Question) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Ask (%s): %s\n", q.ID, q.Question))
	sb.WriteString("Quick answers:\n")
	for _, c := range q.Chips {
		sb.WriteString(fmt.Sprintf("- %s [%s]\n", c.Label, c.Value))
	}
	return sb.String()
}
