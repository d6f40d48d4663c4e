package knowledge

import "strings"

// Category groups principles by the kind of advice they give.
type Category string

const (
	CategoryStyle     Category = "style"
	CategoryTiming    Category = "timing"
	CategoryMindset   Category = "mindset"
	CategoryContent   Category = "content"
	CategoryLogistics Category = "logistics"
)

// Outcome records how an example conversation ended.
type Outcome string

const (
	OutcomeDate        Outcome = "date"
	OutcomeNumberClose Outcome = "number_close"
	OutcomeFullClose   Outcome = "full_close"
	OutcomeUnknown     Outcome = "unknown"
)

// Successful reports whether the outcome counts as a success for ranking.
func (o Outcome) Successful() bool {
	return o == OutcomeDate || o == OutcomeFullClose
}

// GeneralTag is assigned to conversations that ship without tags.
const GeneralTag = "general"

// Principle is a citable coaching rule.
type Principle struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	ShortName string   `json:"shortName"`
	Category  Category `json:"category"`
}

// PlatformProfile describes the conventions of one messaging platform.
type PlatformProfile struct {
	Key             string   `json:"key"`
	DisplayName     string   `json:"displayName"`
	Characteristics []string `json:"characteristics"`
	CommonMistakes  []string `json:"commonMistakes"`
}

// Conversation is an annotated example transcript used as retrieval material.
type Conversation struct {
	ID       string   `json:"id"`
	Source   string   `json:"source"`
	Platform string   `json:"platform"`
	Outcome  Outcome  `json:"outcome"`
	Context  string   `json:"context"`
	Lines    []string `json:"lines"`
	Analysis string   `json:"analysis,omitempty"`
	Tags     []string `json:"tags"`
}

// HasAnalysis reports whether a human annotation is attached.
func (c Conversation) HasAnalysis() bool {
	return strings.TrimSpace(c.Analysis) != ""
}

// Stats summarizes the corpus.
type Stats struct {
	TotalConversations int            `json:"totalConversations"`
	ByOutcome          map[string]int `json:"byOutcome,omitempty"`
	ByPlatform         map[string]int `json:"byPlatform,omitempty"`
}

// Base is the loaded, normalized knowledge base. It is read-only after
// loading and safe to share between goroutines.
type Base struct {
	Principles    []Principle                `json:"principles"`
	Platforms     map[string]PlatformProfile `json:"platforms"`
	Conversations []Conversation             `json:"conversations"`
	Stats         Stats                      `json:"stats"`

	// Skipped counts conversations dropped during normalization.
	Skipped int `json:"-"`
}

// Platform looks up a platform profile by key, case-insensitively.
func (b *Base) Platform(key string) (PlatformProfile, bool) {
	if b == nil {
		return PlatformProfile{}, false
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return PlatformProfile{}, false
	}
	p, ok := b.Platforms[key]
	return p, ok
}

// Principle looks up a principle by ID.
func (b *Base) Principle(id string) (Principle, bool) {
	if b == nil {
		return Principle{}, false
	}
	for _, p := range b.Principles {
		if p.ID == id {
			return p, true
		}
	}
	return Principle{}, false
}
