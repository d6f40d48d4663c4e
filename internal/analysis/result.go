// Package analysis parses the structured result returned by the generation
// provider.
package analysis

import (
	"encoding/json"
	"strings"

	"github.com/wingmanhq/wingman/internal/knowledge"
)

// Result is the outcome of parsing a generation response. It is either
// NoSignal or *Analysis; callers switch on the concrete type.
type Result interface {
	result()
}

// NoSignal means the response carried no usable structure.
type NoSignal struct{}

func (NoSignal) result() {}

// Reply is one suggested message.
type Reply struct {
	Text         string   `json:"text"`
	Tone         string   `json:"tone,omitempty"`
	PrincipleIDs []string `json:"principle_ids,omitempty"`
	Rationale    string   `json:"rationale,omitempty"`
}

// Analysis is a well-formed generation result.
type Analysis struct {
	Platform string  `json:"detected_platform,omitempty"`
	Language string  `json:"detected_language,omitempty"`
	Stage    string  `json:"detected_stage,omitempty"`
	Summary  string  `json:"summary,omitempty"`
	Replies  []Reply `json:"replies"`

	// Degraded marks a locally built fallback rather than a provider answer.
	Degraded bool `json:"degraded,omitempty"`
}

func (*Analysis) result() {}

// Parse extracts an Analysis from raw provider text. Anything that is not
// a JSON object with at least one reply yields NoSignal.
func Parse(raw string) Result {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return NoSignal{}
	}

	var a Analysis
	if err := json.Unmarshal([]byte(raw[start:end+1]), &a); err != nil {
		return NoSignal{}
	}

	replies := a.Replies[:0]
	for _, r := range a.Replies {
		r.Text = strings.TrimSpace(r.Text)
		if r.Text != "" {
			replies = append(replies, r)
		}
	}
	if len(replies) == 0 {
		return NoSignal{}
	}
	a.Replies = replies
	a.Platform = strings.ToLower(strings.TrimSpace(a.Platform))
	a.Language = strings.ToLower(strings.TrimSpace(a.Language))
	a.Stage = strings.ToLower(strings.TrimSpace(a.Stage))
	a.Degraded = false
	return &a
}

// UnknownCitations returns the principle IDs cited by the replies that do
// not exist in kb.
func (a *Analysis) UnknownCitations(kb *knowledge.Base) []string {
	var unknown []string
	seen := map[string]bool{}
	for _, r := range a.Replies {
		for _, id := range r.PrincipleIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			if _, ok := kb.Principle(id); !ok {
				unknown = append(unknown, id)
			}
		}
	}
	return unknown
}
