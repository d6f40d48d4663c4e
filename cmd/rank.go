package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wingmanhq/wingman/internal/knowledge"
	"github.com/wingmanhq/wingman/internal/prompt"
	"github.com/wingmanhq/wingman/internal/retrieval"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Show the example conversations most relevant to a situation",
	Long:  `Scores the knowledge base against a goal, style, platform, stage and message and prints the top examples as they would appear in a prompt.`,
	RunE:  runRank,
}

func init() {
	rankCmd.Flags().String("goal", "", "what the user is hoping for")
	rankCmd.Flags().String("style", "", "preferred tone")
	rankCmd.Flags().String("platform", "", "messaging platform key")
	rankCmd.Flags().String("stage", "", "conversation stage")
	rankCmd.Flags().String("message", "", "what the user said about the conversation")
	rankCmd.Flags().Int("limit", retrieval.DefaultLimit, "maximum number of examples")
	rankCmd.Flags().Bool("json", false, "output scored results as JSON")
	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	kb, err := loadKnowledge(cfg, log)
	if err != nil {
		return err
	}

	var q retrieval.Query
	q.Goal, _ = cmd.Flags().GetString("goal")
	q.Style, _ = cmd.Flags().GetString("style")
	q.Platform, _ = cmd.Flags().GetString("platform")
	q.Stage, _ = cmd.Flags().GetString("stage")
	q.UserMessage, _ = cmd.Flags().GetString("message")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	scored := retrieval.RankScored(q, kb.Conversations, limit)
	log.Debug("ranked examples", zap.Int("results", len(scored)))

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(scored)
	}

	if len(scored) == 0 {
		fmt.Println("No example conversations are loaded.")
		return nil
	}

	examples := make([]knowledge.Conversation, len(scored))
	for i, sc := range scored {
		examples[i] = sc.Conversation
		fmt.Printf("%d. %s (score %d)\n", i+1, sc.Conversation.ID, sc.Score)
	}
	fmt.Println()
	fmt.Println(prompt.FormatExamples(examples))

	if block := prompt.FormatPlatformContext(kb, q.Platform); block != "" {
		fmt.Println()
		fmt.Println(block)
	}
	return nil
}
