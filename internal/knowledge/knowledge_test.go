package knowledge

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCorpus(t *testing.T) {
	b, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if len(b.Principles) == 0 {
		t.Error("expected principles in embedded corpus")
	}
	if len(b.Conversations) == 0 {
		t.Error("expected conversations in embedded corpus")
	}
	for _, c := range b.Conversations {
		if len(c.Lines) == 0 {
			t.Errorf("conversation %s has no lines", c.ID)
		}
		if len(c.Tags) == 0 {
			t.Errorf("conversation %s has no tags", c.ID)
		}
	}
	if _, ok := b.Platform("Tinder"); !ok {
		t.Error("expected case-insensitive lookup of tinder")
	}
}

func TestParseNormalizes(t *testing.T) {
	data := []byte(`{
		"principles": [{"id":"P01","text":"t","shortName":"s","category":"style"}],
		"platforms": {"WhatsApp": {"characteristics":["a"],"commonMistakes":["b"]}},
		"conversations": [
			{"id":"a","platform":"WhatsApp","outcome":"weird","lines":["x"]},
			{"id":"b","platform":"tinder","outcome":"date","lines":[]},
			{"id":"c","platform":"tinder","outcome":"full_close","lines":["y"],"tags":["opener"]}
		]
	}`)

	b, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(b.Conversations) != 2 {
		t.Fatalf("expected 2 conversations after dropping empty lines, got %d", len(b.Conversations))
	}
	if b.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", b.Skipped)
	}

	first := b.Conversations[0]
	if first.Platform != "whatsapp" {
		t.Errorf("platform not lower-cased: %q", first.Platform)
	}
	if first.Outcome != OutcomeUnknown {
		t.Errorf("expected unknown outcome, got %q", first.Outcome)
	}
	if len(first.Tags) != 1 || first.Tags[0] != GeneralTag {
		t.Errorf("expected general tag fallback, got %v", first.Tags)
	}

	p, ok := b.Platform("whatsapp")
	if !ok {
		t.Fatal("expected whatsapp platform")
	}
	if p.Key != "whatsapp" || p.DisplayName != "WhatsApp" {
		t.Errorf("unexpected profile key/name: %q %q", p.Key, p.DisplayName)
	}

	if b.Stats.TotalConversations != 2 {
		t.Errorf("expected computed stats total 2, got %d", b.Stats.TotalConversations)
	}
	if b.Stats.ByOutcome["full_close"] != 1 {
		t.Errorf("expected 1 full_close, got %d", b.Stats.ByOutcome["full_close"])
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestLoadOrDefault(t *testing.T) {
	b, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if len(b.Conversations) == 0 {
		t.Error("expected embedded corpus")
	}

	path := filepath.Join(t.TempDir(), "kb.json")
	os.WriteFile(path, []byte(`{"principles":[],"platforms":{},"conversations":[{"id":"z","lines":["hi"]}]}`), 0o644)
	b, err = LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault(path): %v", err)
	}
	if len(b.Conversations) != 1 || b.Conversations[0].ID != "z" {
		t.Errorf("expected file corpus, got %+v", b.Conversations)
	}
}

func TestOutcomeSuccessful(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    bool
	}{
		{OutcomeDate, true},
		{OutcomeFullClose, true},
		{OutcomeNumberClose, false},
		{OutcomeUnknown, false},
	}
	for _, tt := range tests {
		if got := tt.outcome.Successful(); got != tt.want {
			t.Errorf("%s.Successful() = %v, want %v", tt.outcome, got, tt.want)
		}
	}
}
