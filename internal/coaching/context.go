// Package coaching holds the per-thread context model and the clarifying
// question policy that decides when enough is known to generate replies.
package coaching

import (
	"sort"
	"strings"

	"github.com/wingmanhq/wingman/internal/analysis"
	"github.com/wingmanhq/wingman/internal/retrieval"
)

// FieldKey names one piece of context about the user's situation.
type FieldKey string

const (
	FieldPlatform     FieldKey = "platform"
	FieldRelationship FieldKey = "relationship"
	FieldStage        FieldKey = "stage"
	FieldGoal         FieldKey = "goal"
	FieldStyle        FieldKey = "style"
	FieldLanguage     FieldKey = "language"
)

// Source records where a field value came from.
type Source string

const (
	SourceAnswer     Source = "answer"
	SourcePreference Source = "preference"
	SourceInferred   Source = "inferred"
)

// Field is one known (or explicitly skipped) context value.
type Field struct {
	Value   string `json:"value,omitempty"`
	Source  Source `json:"source"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Explicit reports whether the field came from the user and must never be
// replaced by an inference.
func (f Field) Explicit() bool {
	return f.Source == SourceAnswer || f.Source == SourcePreference || f.Skipped
}

// Preferences are the user's defaults applied when a thread starts.
type Preferences struct {
	Goal  string `json:"goal,omitempty"`
	Style string `json:"style,omitempty"`
}

// TargetInfo is what is known about the person the user is talking to.
type TargetInfo struct {
	Relationship string `json:"relationship,omitempty"`
}

// ThreadContext is the accumulated knowledge for one conversation thread.
// Operations in this package treat it as a value and return updated copies.
type ThreadContext struct {
	Fields  map[FieldKey]Field `json:"fields,omitempty"`
	Asked   []string           `json:"asked,omitempty"`
	Pending string             `json:"pending,omitempty"`
}

// New returns a context for a fresh thread with the given preferences.
func New(prefs Preferences) ThreadContext {
	var ctx ThreadContext
	if v := strings.TrimSpace(prefs.Goal); v != "" {
		ctx = ctx.with(FieldGoal, Field{Value: v, Source: SourcePreference})
	}
	if v := strings.TrimSpace(prefs.Style); v != "" {
		ctx = ctx.with(FieldStyle, Field{Value: v, Source: SourcePreference})
	}
	return ctx
}

// Field returns the field stored under key.
func (c ThreadContext) Field(key FieldKey) (Field, bool) {
	f, ok := c.Fields[key]
	return f, ok
}

// Value returns the value of key, or "" when unknown or skipped.
func (c ThreadContext) Value(key FieldKey) string {
	return c.Fields[key].Value
}

// Platform returns the known or detected platform.
func (c ThreadContext) Platform() string { return c.Value(FieldPlatform) }

// Stage returns the known or detected conversation stage.
func (c ThreadContext) Stage() string { return c.Value(FieldStage) }

// TargetInfo returns what is known about the other person.
func (c ThreadContext) TargetInfo() TargetInfo {
	return TargetInfo{Relationship: c.Value(FieldRelationship)}
}

// IsAsked reports whether the question with the given id was answered.
func (c ThreadContext) IsAsked(id string) bool {
	i := sort.SearchStrings(c.Asked, id)
	return i < len(c.Asked) && c.Asked[i] == id
}

// Fresh reports whether no clarifying question has been answered yet.
func (c ThreadContext) Fresh() bool {
	return len(c.Asked) == 0
}

// Query derives the retrieval query for the latest user message.
func (c ThreadContext) Query(userMessage string) retrieval.Query {
	return retrieval.Query{
		Goal:        c.Value(FieldGoal),
		Style:       c.Value(FieldStyle),
		Platform:    c.Value(FieldPlatform),
		Stage:       c.Value(FieldStage),
		UserMessage: userMessage,
	}
}

// set reports whether key holds a value or was explicitly skipped.
func (c ThreadContext) set(key FieldKey) bool {
	f, ok := c.Fields[key]
	return ok && (f.Value != "" || f.Skipped)
}

func (c ThreadContext) clone() ThreadContext {
	out := ThreadContext{Pending: c.Pending}
	if c.Fields != nil {
		out.Fields = make(map[FieldKey]Field, len(c.Fields))
		for k, v := range c.Fields {
			out.Fields[k] = v
		}
	}
	if c.Asked != nil {
		out.Asked = append([]string(nil), c.Asked...)
	}
	return out
}

// with writes a field in place. Callers must own c (a clone).
func (c ThreadContext) with(key FieldKey, f Field) ThreadContext {
	if c.Fields == nil {
		c.Fields = make(map[FieldKey]Field)
	}
	c.Fields[key] = f
	return c
}

func (c ThreadContext) markAsked(id string) ThreadContext {
	i := sort.SearchStrings(c.Asked, id)
	if i < len(c.Asked) && c.Asked[i] == id {
		return c
	}
	c.Asked = append(c.Asked, "")
	copy(c.Asked[i+1:], c.Asked[i:])
	c.Asked[i] = id
	return c
}

// ProcessAnswer records the answer to a posed question. The question is
// marked asked for good; the value lands in the field the question
// targets. Applying the same answer twice yields the same context.
func ProcessAnswer(ctx ThreadContext, questionID, value string) ThreadContext {
	next := ctx.clone().markAsked(questionID)
	if next.Pending == questionID {
		next.Pending = ""
	}

	q, ok := QuestionByID(questionID)
	if !ok {
		return next
	}

	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, SkipValue) {
		return next.with(q.Field, Field{Source: SourceAnswer, Skipped: true})
	}
	if q.Field == FieldPlatform {
		value = strings.ToLower(value)
	}
	return next.with(q.Field, Field{Value: value, Source: SourceAnswer})
}

// UpdateFromAnalysis merges the signals detected by a generation result.
// Fields the user set explicitly are left untouched.
func UpdateFromAnalysis(ctx ThreadContext, res analysis.Result) ThreadContext {
	next := ctx.clone()

	switch r := res.(type) {
	case *analysis.Analysis:
		if r == nil {
			return next
		}
		next = next.infer(FieldPlatform, r.Platform)
		next = next.infer(FieldStage, r.Stage)
		next = next.infer(FieldLanguage, r.Language)
	case analysis.NoSignal:
	}
	return next
}

func (c ThreadContext) infer(key FieldKey, value string) ThreadContext {
	value = strings.TrimSpace(value)
	if value == "" {
		return c
	}
	if cur, ok := c.Fields[key]; ok && cur.Explicit() {
		return c
	}
	return c.with(key, Field{Value: value, Source: SourceInferred})
}

// WithPending returns a copy with questionID recorded as awaiting an answer.
func WithPending(ctx ThreadContext, questionID string) ThreadContext {
	next := ctx.clone()
	next.Pending = questionID
	return next
}

// Clear returns a copy without the given field. Asked questions stay asked.
func Clear(ctx ThreadContext, key FieldKey) ThreadContext {
	next := ctx.clone()
	delete(next.Fields, key)
	return next
}

// Copy returns a deep copy of c.
func (c ThreadContext) Copy() ThreadContext {
	return c.clone()
}
