package analysis

import (
	"testing"

	"github.com/wingmanhq/wingman/internal/knowledge"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantSignal  bool
		wantReplies int
	}{
		{
			name:        "valid JSON",
			input:       `{"detected_platform":"Tinder","detected_stage":"ghosting","summary":"she went quiet","replies":[{"text":"hey you","tone":"playful","principle_ids":["P08"]}]}`,
			wantSignal:  true,
			wantReplies: 1,
		},
		{
			name:        "JSON in markdown code block",
			input:       "```json\n{\"replies\":[{\"text\":\"a\"},{\"text\":\"b\"}]}\n```",
			wantSignal:  true,
			wantReplies: 2,
		},
		{name: "prose", input: "Here are some ideas: just say hi.", wantSignal: false},
		{name: "empty", input: "", wantSignal: false},
		{name: "truncated JSON", input: `{"replies":[{"text":"a"}`, wantSignal: false},
		{name: "missing replies key", input: `{"summary":"x"}`, wantSignal: false},
		{name: "replies wrong type", input: `{"replies":"hello"}`, wantSignal: false},
		{name: "only blank replies", input: `{"replies":[{"text":"  "}]}`, wantSignal: false},
		{name: "closing brace before opening", input: `} nope {`, wantSignal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.input)
			switch r := res.(type) {
			case NoSignal:
				if tt.wantSignal {
					t.Fatalf("expected analysis, got NoSignal")
				}
			case *Analysis:
				if !tt.wantSignal {
					t.Fatalf("expected NoSignal, got %+v", r)
				}
				if len(r.Replies) != tt.wantReplies {
					t.Errorf("expected %d replies, got %d", tt.wantReplies, len(r.Replies))
				}
				if r.Degraded {
					t.Error("parsed analysis must not be degraded")
				}
			default:
				t.Fatalf("unexpected result type %T", res)
			}
		})
	}
}

func TestParseNormalizesSignals(t *testing.T) {
	res := Parse(`{"detected_platform":" WhatsApp ","detected_language":"FR","detected_stage":"Ongoing","replies":[{"text":"ok"}]}`)
	a, ok := res.(*Analysis)
	if !ok {
		t.Fatalf("expected *Analysis, got %T", res)
	}
	if a.Platform != "whatsapp" || a.Language != "fr" || a.Stage != "ongoing" {
		t.Errorf("signals not normalized: %+v", a)
	}
}

func TestFallback(t *testing.T) {
	a := Fallback("playful")
	if !a.Degraded {
		t.Error("fallback must be degraded")
	}
	if a.Summary != FallbackSummary {
		t.Errorf("unexpected summary %q", a.Summary)
	}
	if len(a.Replies) == 0 {
		t.Fatal("fallback must carry replies")
	}
	if a.Replies[0].Tone != "playful" {
		t.Errorf("expected playful first, got %q", a.Replies[0].Tone)
	}

	direct := Fallback("Direct")
	if direct.Replies[0].Tone != "direct" {
		t.Errorf("expected direct first, got %q", direct.Replies[0].Tone)
	}
}

func TestUnknownCitations(t *testing.T) {
	kb := &knowledge.Base{Principles: []knowledge.Principle{{ID: "P01"}}}
	a := &Analysis{Replies: []Reply{
		{Text: "a", PrincipleIDs: []string{"P01", "P99"}},
		{Text: "b", PrincipleIDs: []string{"P99"}},
	}}
	got := a.UnknownCitations(kb)
	if len(got) != 1 || got[0] != "P99" {
		t.Errorf("expected [P99], got %v", got)
	}
}
