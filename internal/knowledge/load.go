package knowledge

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed default.json
var defaultCorpus []byte

// Default returns the knowledge base compiled into the binary.
func Default() (*Base, error) {
	b, err := Parse(defaultCorpus)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded knowledge base: %w", err)
	}
	return b, nil
}

// Load reads and normalizes a knowledge base JSON file.
func Load(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading knowledge base %s: %w", path, err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing knowledge base %s: %w", path, err)
	}
	return b, nil
}

// LoadOrDefault loads path, or the embedded corpus when path is empty.
func LoadOrDefault(path string) (*Base, error) {
	if path == "" {
		return Default()
	}
	return Load(path)
}

// Parse decodes a knowledge base document and normalizes it.
func Parse(data []byte) (*Base, error) {
	var b Base
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	b.normalize()
	return &b, nil
}

func (b *Base) normalize() {
	platforms := make(map[string]PlatformProfile, len(b.Platforms))
	for key, p := range b.Platforms {
		k := strings.ToLower(strings.TrimSpace(key))
		if p.Key == "" {
			p.Key = k
		}
		if p.DisplayName == "" {
			p.DisplayName = key
		}
		platforms[k] = p
	}
	b.Platforms = platforms

	kept := b.Conversations[:0]
	for _, c := range b.Conversations {
		if len(c.Lines) == 0 {
			b.Skipped++
			continue
		}
		c.Platform = strings.ToLower(strings.TrimSpace(c.Platform))
		switch c.Outcome {
		case OutcomeDate, OutcomeNumberClose, OutcomeFullClose:
		default:
			c.Outcome = OutcomeUnknown
		}
		if len(c.Tags) == 0 {
			c.Tags = []string{GeneralTag}
		}
		kept = append(kept, c)
	}
	b.Conversations = kept

	if b.Stats.TotalConversations == 0 {
		b.Stats = computeStats(b.Conversations)
	}
}

func computeStats(convs []Conversation) Stats {
	s := Stats{
		TotalConversations: len(convs),
		ByOutcome:          make(map[string]int),
		ByPlatform:         make(map[string]int),
	}
	for _, c := range convs {
		s.ByOutcome[string(c.Outcome)]++
		platform := c.Platform
		if platform == "" {
			platform = "unknown"
		}
		s.ByPlatform[platform]++
	}
	return s
}
