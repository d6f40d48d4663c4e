package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wingmanhq/wingman/internal/coaching"
	"github.com/wingmanhq/wingman/internal/knowledge"
)

const persona = `You are a dating and social messaging coach. The user shares a conversation (as text or a screenshot) and you suggest what they could send next.

Respect the user's goal and tone. Replies must sound natural for the platform and be ready to send as written, in the language of the conversation.`

const outputContract = `You MUST respond with valid JSON matching this schema:
{
  "detected_platform": "platform key if you can tell, otherwise empty",
  "detected_language": "ISO 639-1 code of the conversation",
  "detected_stage": "opener|ongoing|ghosting|date_proposal|post_date, or empty",
  "summary": "one or two sentences on what is happening",
  "replies": [
    {
      "text": "the message to send",
      "tone": "playful|direct|romantic|funny|chill",
      "principle_ids": ["IDs of the principles this reply applies"],
      "rationale": "why this works"
    }
  ]
}

Give 3 replies. Only cite principle IDs from the list below.`

// MediaInstruction is appended for screenshot turns.
const MediaInstruction = `The latest user turn is a screenshot. Read the whole conversation in it, tell who is who, and fill detected_platform, detected_language and detected_stage from what you see.`

// Input collects everything the system prompt is built from.
type Input struct {
	Knowledge *knowledge.Base
	Context   coaching.ThreadContext
	Examples  []knowledge.Conversation
	Media     bool
}

// BuildSystemPrompt assembles the system prompt for a generation call.
func BuildSystemPrompt(in Input) string {
	var b strings.Builder

	b.WriteString(persona)
	b.WriteString("\n\n")
	b.WriteString(outputContract)

	if in.Knowledge != nil {
		b.WriteString("\n\n## Principles\n")
		b.WriteString(FormatPrinciples(in.Knowledge.Principles))
	}

	if platform := FormatPlatformContext(in.Knowledge, in.Context.Platform()); platform != "" {
		b.WriteString("\n\n## Platform\n")
		b.WriteString(platform)
	}

	if known := FormatKnownContext(in.Context); known != "" {
		b.WriteString("\n\n## What we know\n")
		b.WriteString(known)
	}

	if len(in.Examples) > 0 {
		b.WriteString("\n\n## Similar conversations\n")
		b.WriteString(FormatExamples(in.Examples))
	}

	if in.Media {
		b.WriteString("\n\n")
		b.WriteString(MediaInstruction)
	}

	return b.String()
}

// FormatKnownContext lists the known context fields, sorted by key.
func FormatKnownContext(ctx coaching.ThreadContext) string {
	keys := make([]string, 0, len(ctx.Fields))
	for k, f := range ctx.Fields {
		if f.Value == "" {
			continue
		}
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		f := ctx.Fields[coaching.FieldKey(k)]
		line := fmt.Sprintf("- %s: %s", k, f.Value)
		if f.Source == coaching.SourceInferred {
			line += " (detected)"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
