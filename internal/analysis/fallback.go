package analysis

import "strings"

// FallbackSummary labels every degraded response.
const FallbackSummary = "Offline suggestion: the coach is unavailable right now, so these are generic replies. Try again in a moment for tailored ones."

// Fallback builds the degraded response used when the provider fails.
// A "direct" style puts the direct reply first.
func Fallback(style string) *Analysis {
	replies := []Reply{
		{
			Text:         "Haha I was waiting for you to say that. So, what's the plan this week?",
			Tone:         "playful",
			PrincipleIDs: []string{"P02", "P04"},
			Rationale:    "Light and easy to answer, and it moves toward a concrete plan.",
		},
		{
			Text:         "I like where this is going. Drinks on Thursday?",
			Tone:         "direct",
			PrincipleIDs: []string{"P05"},
			Rationale:    "Specific invitation that is simple to accept.",
		},
	}

	if strings.EqualFold(strings.TrimSpace(style), "direct") {
		replies[0], replies[1] = replies[1], replies[0]
	}

	return &Analysis{
		Summary:  FallbackSummary,
		Replies:  replies,
		Degraded: true,
	}
}
