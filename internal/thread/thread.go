// Package thread models coaching conversations and their persistence.
package thread

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wingmanhq/wingman/internal/analysis"
	"github.com/wingmanhq/wingman/internal/coaching"
)

// ErrNotFound is returned when a thread does not exist.
var ErrNotFound = errors.New("thread not found")

// Role is who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind says how a message should be rendered.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindAnswer   Kind = "answer"
	KindQuestion Kind = "question"
	KindReply    Kind = "reply"
	KindDegraded Kind = "degraded"
	KindProse    Kind = "prose"
)

// Message is one entry in a thread.
type Message struct {
	ID        string             `json:"id"`
	Role      Role               `json:"role"`
	Kind      Kind               `json:"kind"`
	Content   string             `json:"content"`
	ImageURL  string             `json:"image_url,omitempty"`
	Question  *coaching.Question `json:"question,omitempty"`
	Replies   []analysis.Reply   `json:"replies,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Thread is one conversation the user is being coached on.
type Thread struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	Context   coaching.ThreadContext `json:"context"`
	Messages  []Message              `json:"messages"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// New creates an empty thread seeded with the user's preferences.
func New(title string, prefs coaching.Preferences) *Thread {
	now := time.Now().UTC()
	return &Thread{
		ID:        uuid.New().String(),
		Title:     title,
		Context:   coaching.New(prefs),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewMessage builds a message with a fresh id.
func NewMessage(role Role, kind Kind, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Kind:      kind,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Append adds messages and bumps UpdatedAt.
func (t *Thread) Append(msgs ...Message) {
	t.Messages = append(t.Messages, msgs...)
	t.UpdatedAt = time.Now().UTC()
}

// Last returns the most recent message, or nil for an empty thread.
func (t *Thread) Last() *Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return &t.Messages[len(t.Messages)-1]
}

// Clone returns a deep copy of t.
func (t *Thread) Clone() *Thread {
	if t == nil {
		return nil
	}
	out := *t
	out.Context = t.Context.Copy()
	if t.Messages != nil {
		out.Messages = make([]Message, len(t.Messages))
		for i, m := range t.Messages {
			out.Messages[i] = m.clone()
		}
	}
	return &out
}

func (m Message) clone() Message {
	if m.Question != nil {
		q := *m.Question
		q.Chips = append([]coaching.QuickAnswer(nil), q.Chips...)
		m.Question = &q
	}
	if m.Replies != nil {
		replies := make([]analysis.Reply, len(m.Replies))
		for i, r := range m.Replies {
			r.PrincipleIDs = append([]string(nil), r.PrincipleIDs...)
			replies[i] = r
		}
		m.Replies = replies
	}
	return m
}

// Repository persists threads.
type Repository interface {
	Get(ctx context.Context, id string) (*Thread, error)
	List(ctx context.Context) ([]*Thread, error)
	Save(ctx context.Context, t *Thread) error
	Delete(ctx context.Context, id string) error
}
