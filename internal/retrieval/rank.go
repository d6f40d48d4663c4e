// Package retrieval ranks example conversations against a query context.
package retrieval

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/wingmanhq/wingman/internal/knowledge"
)

// DefaultLimit is the number of examples returned when no limit is given.
const DefaultLimit = 3

// Scoring weights.
const (
	WeightPlatform    = 15
	WeightOutcome     = 10
	WeightAnalysis    = 8
	WeightStageTag    = 6
	WeightGoalTag     = 3
	WeightStyleTag    = 3
	WeightContentWord = 1
)

// minContentWordRunes is the length a message word must exceed to count
// toward content overlap.
const minContentWordRunes = 3

// Query is the retrieval context built for a single request. Empty fields
// are treated as absent.
type Query struct {
	Goal        string `json:"goal,omitempty"`
	Style       string `json:"style,omitempty"`
	Platform    string `json:"platform,omitempty"`
	Stage       string `json:"stage,omitempty"`
	UserMessage string `json:"user_message,omitempty"`
}

// Scored pairs a conversation with its relevance score.
type Scored struct {
	Conversation knowledge.Conversation `json:"conversation"`
	Score        int                    `json:"score"`
}

// Rank returns the limit highest-scoring conversations, ties kept in
// corpus order. It never fails; an empty corpus yields an empty result.
func Rank(q Query, corpus []knowledge.Conversation, limit int) []knowledge.Conversation {
	scored := RankScored(q, corpus, limit)
	out := make([]knowledge.Conversation, len(scored))
	for i, s := range scored {
		out[i] = s.Conversation
	}
	return out
}

// RankScored is Rank with the scores attached.
func RankScored(q Query, corpus []knowledge.Conversation, limit int) []Scored {
	if limit <= 0 {
		limit = DefaultLimit
	}

	terms := newQueryTerms(q)
	scored := make([]Scored, len(corpus))
	for i, c := range corpus {
		scored[i] = Scored{Conversation: c, Score: terms.score(c)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// Score computes the additive relevance score of one conversation.
func Score(q Query, c knowledge.Conversation) int {
	return newQueryTerms(q).score(c)
}

// queryTerms holds the lower-cased query terms so they are prepared once
// per ranking call.
type queryTerms struct {
	platform string
	stage    string
	goal     string
	style    string
	words    []string
}

func newQueryTerms(q Query) queryTerms {
	t := queryTerms{
		platform: normalize(q.Platform),
		stage:    normalize(q.Stage),
		goal:     normalize(q.Goal),
		style:    normalize(q.Style),
	}
	for _, w := range strings.Fields(strings.ToLower(q.UserMessage)) {
		if utf8.RuneCountInString(w) > minContentWordRunes {
			t.words = append(t.words, w)
		}
	}
	return t
}

func (t queryTerms) score(c knowledge.Conversation) int {
	score := 0

	if t.platform != "" && t.platform == normalize(c.Platform) {
		score += WeightPlatform
	}
	if c.Outcome.Successful() {
		score += WeightOutcome
	}
	if c.HasAnalysis() {
		score += WeightAnalysis
	}
	if matchesAnyTag(t.stage, c.Tags) {
		score += WeightStageTag
	}
	if matchesAnyTag(t.goal, c.Tags) {
		score += WeightGoalTag
	}
	if matchesAnyTag(t.style, c.Tags) {
		score += WeightStyleTag
	}

	if len(t.words) > 0 {
		text := strings.ToLower(strings.Join(c.Lines, " "))
		for _, w := range t.words {
			if strings.Contains(text, w) {
				score += WeightContentWord
			}
		}
	}

	return score
}

func matchesAnyTag(term string, tags []string) bool {
	if term == "" {
		return false
	}
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
