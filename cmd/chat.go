package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/wingmanhq/wingman/internal/coaching"
	"github.com/wingmanhq/wingman/internal/orchestrator"
	"github.com/wingmanhq/wingman/internal/thread"
)

const typeOwnAnswer = "Type my own answer"

var errQuit = errors.New("quit")

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Get coached interactively in the terminal",
	Long: `Starts an interactive coaching session. Describe the conversation or
attach a screenshot with /image <path>, pick quick answers to the
clarifying questions, and get reply suggestions. Nothing is saved.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("goal", "", "your goal for this conversation (overrides config)")
	chatCmd.Flags().String("style", "", "preferred tone (overrides config)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

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
	llmProvider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}

	engine := orchestrator.New(orchestrator.Deps{
		Repository: thread.NewMemoryRepository(),
		Provider:   llmProvider,
		Knowledge:  kb,
		Logger:     log,
		Options:    engineOptions(cfg),
	})

	var prefs coaching.Preferences
	prefs.Goal, _ = cmd.Flags().GetString("goal")
	prefs.Style, _ = cmd.Flags().GetString("style")
	th, err := engine.CreateThread(ctx, "terminal", prefs)
	if err != nil {
		return err
	}

	fmt.Println("Tell me what's going on. Use /image <path> [caption] for a screenshot, /quit to leave.")

	var pending *coaching.Question
	for {
		var in orchestrator.Input
		if pending != nil {
			in, err = answerQuestion(pending)
		} else {
			in, err = readTurn()
		}
		if isQuit(err) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		fmt.Println("...")
		res, err := engine.HandleTurn(ctx, th.ID, in)
		if errors.Is(err, orchestrator.ErrInvalidInput) {
			continue
		}
		if err != nil {
			return err
		}
		for _, m := range res.Messages {
			fmt.Println(formatMessage(m))
			fmt.Println()
		}
		pending = res.Question
	}
}

func isQuit(err error) bool {
	return errors.Is(err, errQuit) || errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF)
}

func readTurn() (orchestrator.Input, error) {
	p := promptui.Prompt{Label: "You"}
	line, err := p.Run()
	if err != nil {
		return orchestrator.Input{}, err
	}
	return parseChatLine(line, os.ReadFile)
}

// answerQuestion offers the question's chips plus a free-text option.
// Typed text naming a chip answers the question; other text is sent as a
// message.
func answerQuestion(q *coaching.Question) (orchestrator.Input, error) {
	items := make([]string, 0, len(q.Chips)+1)
	for _, c := range q.Chips {
		items = append(items, c.Label)
	}
	items = append(items, typeOwnAnswer)

	sel := promptui.Select{Label: q.Question, Items: items, Size: len(items)}
	i, _, err := sel.Run()
	if err != nil {
		return orchestrator.Input{}, err
	}
	if i < len(q.Chips) {
		return orchestrator.Input{Answer: &orchestrator.Answer{QuestionID: q.ID, Value: q.Chips[i].Value}}, nil
	}
	return readTurn()
}

// parseChatLine turns one line of REPL input into a turn. readFile loads
// /image attachments.
func parseChatLine(line string, readFile func(string) ([]byte, error)) (orchestrator.Input, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "/quit" || line == "/exit":
		return orchestrator.Input{}, errQuit

	case strings.HasPrefix(line, "/image"):
		fields := strings.Fields(strings.TrimPrefix(line, "/image"))
		if len(fields) == 0 {
			return orchestrator.Input{}, errors.New("usage: /image <path> [caption]")
		}
		data, err := readFile(fields[0])
		if err != nil {
			return orchestrator.Input{}, fmt.Errorf("reading screenshot: %w", err)
		}
		mime := http.DetectContentType(data)
		if !strings.HasPrefix(mime, "image/") {
			return orchestrator.Input{}, fmt.Errorf("%s is not an image (%s)", fields[0], mime)
		}
		return orchestrator.Input{
			Text:  strings.Join(fields[1:], " "),
			Image: &orchestrator.Image{MIMEType: mime, Data: data},
		}, nil
	}
	return orchestrator.Input{Text: line}, nil
}

// formatMessage renders an assistant message for the terminal. Question
// chips are left out since the chip selector shows them.
func formatMessage(m thread.Message) string {
	switch m.Kind {
	case thread.KindQuestion:
		text, _, _ := strings.Cut(m.Content, "\n- ")
		return text

	case thread.KindReply, thread.KindDegraded:
		var b strings.Builder
		if m.Kind == thread.KindDegraded {
			b.WriteString("[offline suggestions, the coach could not be reached]\n")
		}
		if m.Content != "" {
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
		for i, r := range m.Replies {
			fmt.Fprintf(&b, "\n%d. %s", i+1, r.Text)
			if r.Tone != "" {
				fmt.Fprintf(&b, "  (%s)", r.Tone)
			}
			if len(r.PrincipleIDs) > 0 {
				fmt.Fprintf(&b, " [%s]", strings.Join(r.PrincipleIDs, ", "))
			}
			if r.Rationale != "" {
				fmt.Fprintf(&b, "\n   %s", r.Rationale)
			}
		}
		return strings.TrimSpace(b.String())
	}
	return m.Content
}
