package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wingmanhq/wingman/internal/analysis"
	"github.com/wingmanhq/wingman/internal/coaching"
	"github.com/wingmanhq/wingman/internal/knowledge"
	"github.com/wingmanhq/wingman/internal/llm"
	"github.com/wingmanhq/wingman/internal/prompt"
	"github.com/wingmanhq/wingman/internal/retrieval"
	"github.com/wingmanhq/wingman/internal/thread"
)

// maxHistory bounds how many earlier messages are sent to the provider.
const maxHistory = 12

var errEmptyResponse = errors.New("empty response")

const openerRequest = "I don't have a conversation yet. Suggest how to start one."

// Image is a screenshot sent with a turn. Either URL or Data is set.
type Image struct {
	URL      string `json:"url,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

// Answer responds to a clarifying question, usually by picking a chip.
type Answer struct {
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
}

// Input is what the user sent in one turn.
type Input struct {
	Text   string  `json:"text,omitempty"`
	Image  *Image  `json:"image,omitempty"`
	Answer *Answer `json:"answer,omitempty"`
}

func (in Input) validate() error {
	if in.Answer != nil {
		if in.Image != nil || strings.TrimSpace(in.Text) != "" {
			return ErrInvalidInput
		}
		if strings.TrimSpace(in.Answer.QuestionID) == "" {
			return ErrInvalidInput
		}
		return nil
	}
	if in.Image != nil {
		if in.Image.URL == "" && len(in.Image.Data) == 0 {
			return ErrInvalidInput
		}
		return nil
	}
	if strings.TrimSpace(in.Text) == "" {
		return ErrInvalidInput
	}
	return nil
}

// TurnResult is the thread after a turn and the assistant messages the
// turn added.
type TurnResult struct {
	Thread    *thread.Thread   `json:"thread"`
	Messages  []thread.Message `json:"messages"`
	Generated bool             `json:"generated"`
	Degraded  bool             `json:"degraded"`
	// Question is the clarifying question now pending, if any.
	Question *coaching.Question `json:"question,omitempty"`
}

// HandleTurn applies one user turn to a thread. Without enough context a
// text turn gets a clarifying question and no provider call. A screenshot
// always goes to the provider first; questions it leaves open follow the
// reply. Provider failures yield a labelled fallback reply, never an error.
func (e *Engine) HandleTurn(ctx context.Context, threadID string, in Input) (*TurnResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if !e.acquire(threadID) {
		return nil, ErrTurnInProgress
	}
	defer e.release(threadID)

	t, err := e.load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	log := e.log.With(zap.String("thread_id", t.ID))

	media := in.Image != nil
	e.record(t, in)
	before := len(t.Messages)

	res := &TurnResult{}
	if !media && !coaching.HasEnoughContext(t.Context) {
		e.ask(t, coaching.NextQuestion(t.Context))
		log.Debug("asking for context", zap.String("question", t.Context.Pending))
	} else {
		res.Generated = true
		res.Degraded = e.generate(ctx, log, t, media)
		if media {
			if q := coaching.NextQuestion(t.Context); q != nil {
				e.ask(t, q)
			}
		}
	}

	e.persist(ctx, t)

	res.Thread = t.Clone()
	res.Messages = append([]thread.Message(nil), res.Thread.Messages[before:]...)
	if t.Context.Pending != "" {
		if q, ok := coaching.QuestionByID(t.Context.Pending); ok {
			res.Question = &q
		}
	}
	return res, nil
}

// record appends the user's message and applies any answer it carries.
// Typed text that names a chip of the pending question answers it; any
// other text is kept verbatim and the question stays pending.
func (e *Engine) record(t *thread.Thread, in Input) {
	switch {
	case in.Answer != nil:
		t.Context = coaching.ProcessAnswer(t.Context, in.Answer.QuestionID, in.Answer.Value)
		t.Append(thread.NewMessage(thread.RoleUser, thread.KindAnswer, answerLabel(in.Answer)))

	case in.Image != nil:
		msg := thread.NewMessage(thread.RoleUser, thread.KindImage, strings.TrimSpace(in.Text))
		msg.ImageURL = imageRef(*in.Image)
		t.Append(msg)

	default:
		text := strings.TrimSpace(in.Text)
		if c, ok := pendingChip(t.Context, text); ok {
			t.Context = coaching.ProcessAnswer(t.Context, t.Context.Pending, c.Value)
			t.Append(thread.NewMessage(thread.RoleUser, thread.KindAnswer, c.Label))
			return
		}
		t.Append(thread.NewMessage(thread.RoleUser, thread.KindText, text))
	}
}

// pendingChip matches text against the chips of the pending question.
func pendingChip(ctx coaching.ThreadContext, text string) (coaching.QuickAnswer, bool) {
	if ctx.Pending == "" {
		return coaching.QuickAnswer{}, false
	}
	q, ok := coaching.QuestionByID(ctx.Pending)
	if !ok {
		return coaching.QuickAnswer{}, false
	}
	return q.Match(text)
}

// ask poses q and marks it pending.
func (e *Engine) ask(t *thread.Thread, q *coaching.Question) {
	if q == nil {
		return
	}
	first := t.Context.Fresh() && !hasQuestion(t)
	msg := thread.NewMessage(thread.RoleAssistant, thread.KindQuestion, q.Render(first))
	msg.Question = q
	t.Context = coaching.WithPending(t.Context, q.ID)
	t.Append(msg)
}

func hasQuestion(t *thread.Thread) bool {
	for _, m := range t.Messages {
		if m.Kind == thread.KindQuestion {
			return true
		}
	}
	return false
}

// generate calls the provider and appends the reply. It reports whether
// the fallback was used.
func (e *Engine) generate(ctx context.Context, log *zap.Logger, t *thread.Thread, media bool) bool {
	q := t.Context.Query(subjectText(t))
	examples := retrieval.Rank(q, e.corpus(), e.opts.RetrievalLimit)

	system := prompt.BuildSystemPrompt(prompt.Input{
		Knowledge: e.kb,
		Context:   t.Context,
		Examples:  examples,
		Media:     media,
	})

	req := llm.CompletionRequest{
		Model:       e.opts.Model,
		Messages:    buildMessages(system, t),
		MaxTokens:   e.opts.MaxTokens,
		Temperature: e.opts.Temperature,
		JSONMode:    true,
	}

	// Detached from the caller: a reply that arrives after the client
	// went away is still saved to the thread.
	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.GenerationTimeout)
	defer cancel()

	start := time.Now()
	resp, err := e.provider.Complete(genCtx, req)
	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = &llm.ProviderError{Provider: e.provider.Name(), Err: errEmptyResponse}
	}
	if err != nil {
		log.Warn("generation failed, using fallback",
			zap.String("provider", e.provider.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		e.appendAnalysis(t, analysis.Fallback(t.Context.Value(coaching.FieldStyle)))
		return true
	}

	log.Info("generation complete",
		zap.String("model", resp.Model),
		zap.Int("examples", len(examples)),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("media", media),
	)

	result := analysis.Parse(resp.Content)
	switch r := result.(type) {
	case *analysis.Analysis:
		if unknown := r.UnknownCitations(e.kb); len(unknown) > 0 {
			log.Debug("reply cites unknown principles", zap.Strings("ids", unknown))
		}
		e.appendAnalysis(t, r)
	case analysis.NoSignal:
		log.Debug("unstructured response, showing as prose")
		t.Append(thread.NewMessage(thread.RoleAssistant, thread.KindProse, strings.TrimSpace(resp.Content)))
	}
	t.Context = coaching.UpdateFromAnalysis(t.Context, result)
	return false
}

func (e *Engine) appendAnalysis(t *thread.Thread, a *analysis.Analysis) {
	kind := thread.KindReply
	if a.Degraded {
		kind = thread.KindDegraded
	}
	msg := thread.NewMessage(thread.RoleAssistant, kind, a.Summary)
	msg.Replies = a.Replies
	t.Append(msg)
}

func (e *Engine) corpus() []knowledge.Conversation {
	if e.kb == nil {
		return nil
	}
	return e.kb.Conversations
}

// subjectText is the latest text the user shared about their conversation.
func subjectText(t *thread.Thread) string {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		m := t.Messages[i]
		if m.Role != thread.RoleUser {
			continue
		}
		if (m.Kind == thread.KindText || m.Kind == thread.KindImage) && m.Content != "" {
			return m.Content
		}
	}
	return ""
}

// buildMessages turns the thread history into provider messages. Only the
// most recent screenshot is attached; older ones are referenced by text.
func buildMessages(system string, t *thread.Thread) []llm.Message {
	var hist []thread.Message
	for _, m := range t.Messages {
		switch m.Kind {
		case thread.KindText, thread.KindImage, thread.KindReply, thread.KindProse:
			hist = append(hist, m)
		}
	}
	if len(hist) > maxHistory {
		hist = hist[len(hist)-maxHistory:]
	}
	for len(hist) > 0 && hist[0].Role != thread.RoleUser {
		hist = hist[1:]
	}

	lastImage := -1
	for i, m := range hist {
		if m.Kind == thread.KindImage {
			lastImage = i
		}
	}

	out := []llm.Message{{Role: llm.RoleSystem, Content: system}}
	for i, m := range hist {
		switch {
		case m.Kind == thread.KindImage && i == lastImage:
			out = append(out, llm.Message{
				Role:    llm.RoleUser,
				Content: m.Content,
				Images:  []llm.Image{parseImageRef(m.ImageURL)},
			})
		case m.Kind == thread.KindImage:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: strings.TrimSpace("[earlier screenshot] " + m.Content)})
		case m.Role == thread.RoleAssistant:
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: replyText(m)})
		default:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: m.Content})
		}
	}
	if len(out) == 1 {
		out = append(out, llm.Message{Role: llm.RoleUser, Content: openerRequest})
	}
	return out
}

func replyText(m thread.Message) string {
	var b strings.Builder
	b.WriteString(m.Content)
	for _, r := range m.Replies {
		b.WriteString("\n- ")
		b.WriteString(r.Text)
	}
	return strings.TrimSpace(b.String())
}

// answerLabel shows the chip label the user picked, or the typed value.
func answerLabel(a *Answer) string {
	if q, ok := coaching.QuestionByID(a.QuestionID); ok {
		for _, c := range q.Chips {
			if c.Value == a.Value {
				return c.Label
			}
		}
	}
	return strings.TrimSpace(a.Value)
}

// imageRef stores inline bytes as a data URL so the thread can be
// persisted and replayed.
func imageRef(img Image) string {
	if len(img.Data) == 0 {
		return img.URL
	}
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// parseImageRef reverses imageRef. Anything that is not a base64 data URL
// is passed on as a remote URL.
func parseImageRef(ref string) llm.Image {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return llm.Image{URL: ref}
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return llm.Image{URL: ref}
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return llm.Image{URL: ref}
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return llm.Image{URL: ref}
	}
	return llm.Image{MIMEType: mime, Data: data}
}
