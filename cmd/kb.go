package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wingmanhq/wingman/internal/knowledge"
	"github.com/wingmanhq/wingman/internal/progress"
	"github.com/wingmanhq/wingman/internal/retrieval"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Inspect the knowledge base",
}

var kbCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the knowledge base and check that retrieval finds each example",
	Long: `Loads the knowledge base, reports its statistics and structural problems,
then ranks every example against a query built from itself and reports the
ones retrieval does not return.`,
	RunE: runKBCheck,
}

func init() {
	kbCheckCmd.Flags().String("file", "", "knowledge base file (defaults to the configured or built-in one)")
	kbCmd.AddCommand(kbCheckCmd)
	rootCmd.AddCommand(kbCmd)
}

func runKBCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if f, _ := cmd.Flags().GetString("file"); f != "" {
		cfg.KnowledgeBase = f
	}

	kb, err := knowledge.LoadOrDefault(cfg.KnowledgeBase)
	if err != nil {
		return err
	}

	printStats(os.Stdout, kb)

	report := checkKnowledge(kb, cfg.RetrievalLimit, progress.NewReporter(os.Stderr, "Checking retrieval"))
	report.print(os.Stdout)
	if len(report.Problems) > 0 {
		return fmt.Errorf("knowledge base has %d problem(s)", len(report.Problems))
	}
	return nil
}

func printStats(w io.Writer, kb *knowledge.Base) {
	fmt.Fprintf(w, "Principles:    %d\n", len(kb.Principles))
	fmt.Fprintf(w, "Platforms:     %d\n", len(kb.Platforms))
	fmt.Fprintf(w, "Conversations: %d (%d skipped without lines)\n", len(kb.Conversations), kb.Skipped)
	for _, k := range sortedKeys(kb.Stats.ByOutcome) {
		fmt.Fprintf(w, "  outcome %-12s %d\n", k, kb.Stats.ByOutcome[k])
	}
	for _, k := range sortedKeys(kb.Stats.ByPlatform) {
		fmt.Fprintf(w, "  platform %-11s %d\n", k, kb.Stats.ByPlatform[k])
	}
}

// kbReport is the result of checkKnowledge. Problems make the check fail;
// Misses and Warnings are informational.
type kbReport struct {
	Problems []string
	Warnings []string
	// Misses are conversations that self-retrieval did not return.
	Misses []string
}

// checkKnowledge validates kb and ranks each conversation against a query
// built from its own platform and lines.
func checkKnowledge(kb *knowledge.Base, limit int, r progress.Reporter) kbReport {
	var rep kbReport

	seen := make(map[string]bool, len(kb.Principles))
	for _, p := range kb.Principles {
		switch {
		case p.ID == "":
			rep.Problems = append(rep.Problems, fmt.Sprintf("principle without id: %q", p.Text))
		case seen[p.ID]:
			rep.Problems = append(rep.Problems, fmt.Sprintf("duplicate principle id %s", p.ID))
		}
		seen[p.ID] = true
	}

	for _, c := range kb.Conversations {
		if c.Platform != "" {
			if _, ok := kb.Platform(c.Platform); !ok {
				rep.Warnings = append(rep.Warnings, fmt.Sprintf("conversation %s uses unknown platform %q", c.ID, c.Platform))
			}
		}
	}

	if limit <= 0 {
		limit = retrieval.DefaultLimit
	}
	r.Start(len(kb.Conversations))
	for i, c := range kb.Conversations {
		q := retrieval.Query{
			Platform:    c.Platform,
			UserMessage: strings.Join(c.Lines, " "),
		}
		found := false
		for _, got := range retrieval.Rank(q, kb.Conversations, limit) {
			if got.ID == c.ID {
				found = true
				break
			}
		}
		if !found {
			rep.Misses = append(rep.Misses, c.ID)
		}
		r.Update(i+1, c.ID)
	}
	r.Finish()

	return rep
}

func (rep kbReport) print(w io.Writer) {
	for _, p := range rep.Problems {
		fmt.Fprintf(w, "ERROR: %s\n", p)
	}
	for _, warn := range rep.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	if len(rep.Misses) == 0 {
		fmt.Fprintln(w, "Self-retrieval: every example is found by its own content.")
		return
	}
	fmt.Fprintf(w, "Self-retrieval: %d example(s) not returned for their own content: %s\n",
		len(rep.Misses), strings.Join(rep.Misses, ", "))
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
