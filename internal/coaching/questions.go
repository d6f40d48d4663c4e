package coaching

import (
	"fmt"
	"strings"
)

// SkipValue is the chip value meaning "I'd rather not say".
const SkipValue = "skip"

// Encouragement prefixes the first question of a thread.
const Encouragement = "Let's find the perfect reply! A few quick questions first so I can tailor it."

// QuickAnswer is a pre-written answer offered as a chip.
type QuickAnswer struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Question is a clarifying question targeting one context field.
type Question struct {
	ID       string        `json:"id"`
	Question string        `json:"question"`
	Chips    []QuickAnswer `json:"chips"`
	Field    FieldKey      `json:"field"`
}

// Render formats the question as assistant message text.
func (q Question) Render(first bool) string {
	var b strings.Builder
	if first {
		b.WriteString(Encouragement)
		b.WriteString("\n\n")
	}
	b.WriteString(q.Question)
	for _, c := range q.Chips {
		fmt.Fprintf(&b, "\n- %s", c.Label)
	}
	return b.String()
}

// Match returns the chip whose value or label equals text, ignoring case
// and surrounding space.
func (q Question) Match(text string) (QuickAnswer, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return QuickAnswer{}, false
	}
	for _, c := range q.Chips {
		if strings.EqualFold(c.Value, text) || strings.EqualFold(c.Label, text) {
			return c, true
		}
	}
	return QuickAnswer{}, false
}

type rule struct {
	question Question
	// when gates the rule on the current context.
	when func(ThreadContext) bool
}

func unresolved(key FieldKey) func(ThreadContext) bool {
	return func(c ThreadContext) bool { return !c.set(key) }
}

func chip(id, label, value string) QuickAnswer {
	return QuickAnswer{ID: id, Label: label, Value: value}
}

func skipChip(prefix string) QuickAnswer {
	return chip(prefix+"_skip", "Skip", SkipValue)
}

// rules is the ordered question table and the single source of truth for
// the elicitation flow. Order is significant.
var rules = []rule{
	{
		question: Question{
			ID:       "platform",
			Question: "Where is this conversation happening?",
			Field:    FieldPlatform,
			Chips: []QuickAnswer{
				chip("platform_tinder", "Tinder", "tinder"),
				chip("platform_bumble", "Bumble", "bumble"),
				chip("platform_hinge", "Hinge", "hinge"),
				chip("platform_instagram", "Instagram", "instagram"),
				chip("platform_whatsapp", "WhatsApp", "whatsapp"),
				chip("platform_sms", "iMessage / SMS", "sms"),
				skipChip("platform"),
			},
		},
		when: unresolved(FieldPlatform),
	},
	{
		question: Question{
			ID:       "relationship",
			Question: "Who are you talking to?",
			Field:    FieldRelationship,
			Chips: []QuickAnswer{
				chip("relationship_match", "A new match", "new match"),
				chip("relationship_crush", "A crush I know in real life", "crush"),
				chip("relationship_ex", "An ex", "ex"),
				chip("relationship_friend", "A friend", "friend"),
				chip("relationship_colleague", "A colleague", "colleague"),
				skipChip("relationship"),
			},
		},
		when: unresolved(FieldRelationship),
	},
	{
		question: Question{
			ID:       "stage",
			Question: "Where are you in the conversation?",
			Field:    FieldStage,
			Chips: []QuickAnswer{
				chip("stage_opener", "I need an opener", "opener"),
				chip("stage_ongoing", "We're chatting", "ongoing"),
				chip("stage_ghosting", "They stopped replying", "ghosting"),
				chip("stage_date", "Setting up a date", "date_proposal"),
				chip("stage_post_date", "After a date", "post_date"),
				skipChip("stage"),
			},
		},
		when: unresolved(FieldStage),
	},
	{
		question: Question{
			ID:       "goal",
			Question: "What are you hoping for?",
			Field:    FieldGoal,
			Chips: []QuickAnswer{
				chip("goal_dating", "A date", "dating"),
				chip("goal_relationship", "Something serious", "relationship"),
				chip("goal_friendship", "Friendship", "friendship"),
				chip("goal_reconnect", "Reconnecting", "reconnect"),
				skipChip("goal"),
			},
		},
		when: unresolved(FieldGoal),
	},
	{
		question: Question{
			ID:       "style",
			Question: "What tone do you want?",
			Field:    FieldStyle,
			Chips: []QuickAnswer{
				chip("style_playful", "Playful", "playful"),
				chip("style_direct", "Direct", "direct"),
				chip("style_romantic", "Romantic", "romantic"),
				chip("style_funny", "Funny", "funny"),
				chip("style_chill", "Chill", "chill"),
				skipChip("style"),
			},
		},
		when: unresolved(FieldStyle),
	},
}

// RequiredFields lists the fields that must be resolved before generating.
var RequiredFields = func() []FieldKey {
	keys := make([]FieldKey, len(rules))
	for i, r := range rules {
		keys[i] = r.question.Field
	}
	return keys
}()

// Questions returns the rule table's questions in order.
func Questions() []Question {
	out := make([]Question, len(rules))
	for i, r := range rules {
		out[i] = r.question.clone()
	}
	return out
}

// QuestionByID looks up a question in the rule table.
func QuestionByID(id string) (Question, bool) {
	for _, r := range rules {
		if r.question.ID == id {
			return r.question.clone(), true
		}
	}
	return Question{}, false
}

func questionFor(key FieldKey) (Question, bool) {
	for _, r := range rules {
		if r.question.Field == key {
			return r.question, true
		}
	}
	return Question{}, false
}

func (q Question) clone() Question {
	q.Chips = append([]QuickAnswer(nil), q.Chips...)
	return q
}

// NextQuestion returns the first question whose rule applies and which has
// not been asked, or nil when nothing is left to ask.
func NextQuestion(ctx ThreadContext) *Question {
	for _, r := range rules {
		if ctx.IsAsked(r.question.ID) || !r.when(ctx) {
			continue
		}
		q := r.question.clone()
		return &q
	}
	return nil
}

// HasEnoughContext reports whether every required field is resolved: it
// has a value, was skipped, or its question was already asked. Adding
// information never turns the answer from true to false.
func HasEnoughContext(ctx ThreadContext) bool {
	for _, key := range RequiredFields {
		if ctx.set(key) {
			continue
		}
		if q, ok := questionFor(key); ok && ctx.IsAsked(q.ID) {
			continue
		}
		return false
	}
	return true
}
