// Package orchestrator runs coaching turns: it records what the user sent,
// asks clarifying questions until enough context is known, and then
// generates reply suggestions.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wingmanhq/wingman/internal/coaching"
	"github.com/wingmanhq/wingman/internal/knowledge"
	"github.com/wingmanhq/wingman/internal/llm"
	"github.com/wingmanhq/wingman/internal/thread"
)

var (
	// ErrTurnInProgress is returned when a thread already has a turn running.
	ErrTurnInProgress = errors.New("a turn is already in progress for this thread")
	// ErrInvalidInput is returned for turns that carry nothing to act on.
	ErrInvalidInput = errors.New("invalid turn input")
	// ErrUnknownField is returned when clearing a field that does not exist.
	ErrUnknownField = errors.New("unknown context field")
)

const defaultGenerationTimeout = 90 * time.Second

// Options tune generation.
type Options struct {
	Model             string
	RetrievalLimit    int
	Temperature       float64
	MaxTokens         int
	GenerationTimeout time.Duration
	// Defaults fill the preferences a new thread does not set.
	Defaults coaching.Preferences
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Repository thread.Repository
	Provider   llm.Provider
	Knowledge  *knowledge.Base
	Logger     *zap.Logger
	Options    Options
}

// Engine handles turns for many threads. Turns on different threads run
// concurrently; a second turn on a busy thread is rejected.
type Engine struct {
	repo     thread.Repository
	provider llm.Provider
	kb       *knowledge.Base
	log      *zap.Logger
	opts     Options

	mu       sync.Mutex
	inflight map[string]struct{}
	// pending holds threads whose last save failed, newest copy per id.
	pending map[string]*thread.Thread
}

// New builds an Engine.
func New(d Deps) *Engine {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	opts := d.Options
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = defaultGenerationTimeout
	}
	return &Engine{
		repo:     d.Repository,
		provider: d.Provider,
		kb:       d.Knowledge,
		log:      log,
		opts:     opts,
		inflight: make(map[string]struct{}),
		pending:  make(map[string]*thread.Thread),
	}
}

// Knowledge returns the knowledge base the engine generates from.
func (e *Engine) Knowledge() *knowledge.Base {
	return e.kb
}

// CreateThread starts a thread. Empty preferences fall back to the
// engine's defaults.
func (e *Engine) CreateThread(ctx context.Context, title string, prefs coaching.Preferences) (*thread.Thread, error) {
	if strings.TrimSpace(prefs.Goal) == "" {
		prefs.Goal = e.opts.Defaults.Goal
	}
	if strings.TrimSpace(prefs.Style) == "" {
		prefs.Style = e.opts.Defaults.Style
	}

	t := thread.New(strings.TrimSpace(title), prefs)
	e.persist(ctx, t)
	e.log.Info("thread created", zap.String("thread_id", t.ID))
	return t.Clone(), nil
}

// GetThread returns a thread, preferring an unsaved copy.
func (e *Engine) GetThread(ctx context.Context, id string) (*thread.Thread, error) {
	return e.load(ctx, id)
}

// ListThreads returns every thread, most recently updated first. Unsaved
// copies replace their stored versions.
func (e *Engine) ListThreads(ctx context.Context) ([]*thread.Thread, error) {
	stored, err := e.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}

	e.mu.Lock()
	byID := make(map[string]*thread.Thread, len(stored)+len(e.pending))
	for _, t := range stored {
		byID[t.ID] = t
	}
	for id, t := range e.pending {
		byID[id] = t.Clone()
	}
	e.mu.Unlock()

	out := make([]*thread.Thread, 0, len(byID))
	for _, t := range byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// DeleteThread removes a thread and any unsaved copy of it.
func (e *Engine) DeleteThread(ctx context.Context, id string) error {
	if !e.acquire(id) {
		return ErrTurnInProgress
	}
	defer e.release(id)

	e.mu.Lock()
	_, hadPending := e.pending[id]
	delete(e.pending, id)
	e.mu.Unlock()

	err := e.repo.Delete(ctx, id)
	if errors.Is(err, thread.ErrNotFound) && hadPending {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("deleting thread %s: %w", id, err)
	}
	e.log.Info("thread deleted", zap.String("thread_id", id))
	return nil
}

// Preview returns the question the next turn would ask, or nil when the
// thread has enough context. It changes nothing.
func (e *Engine) Preview(ctx context.Context, id string) (*coaching.Question, error) {
	t, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return coaching.NextQuestion(t.Context), nil
}

// ClearField forgets one context field so the user can correct it.
func (e *Engine) ClearField(ctx context.Context, id string, key coaching.FieldKey) (*thread.Thread, error) {
	if !knownField(key) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	if !e.acquire(id) {
		return nil, ErrTurnInProgress
	}
	defer e.release(id)

	t, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Context = coaching.Clear(t.Context, key)
	t.UpdatedAt = time.Now().UTC()
	e.persist(ctx, t)
	return t.Clone(), nil
}

func knownField(key coaching.FieldKey) bool {
	if key == coaching.FieldLanguage {
		return true
	}
	for _, k := range coaching.RequiredFields {
		if k == key {
			return true
		}
	}
	return false
}

// RetryPendingSaves retries every failed save and returns how many
// threads are still unsaved. Threads with a turn running are skipped;
// that turn saves them itself.
func (e *Engine) RetryPendingSaves(ctx context.Context) int {
	e.mu.Lock()
	ids := make([]string, 0, len(e.pending))
	for id := range e.pending {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		if !e.acquire(id) {
			continue
		}
		e.mu.Lock()
		t, ok := e.pending[id]
		e.mu.Unlock()
		if ok {
			e.persist(ctx, t.Clone())
		}
		e.release(id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// RetryLoop calls RetryPendingSaves every interval until ctx is done.
func (e *Engine) RetryLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if left := e.RetryPendingSaves(ctx); left > 0 {
				e.log.Warn("threads still unsaved", zap.Int("count", left))
			}
		}
	}
}

func (e *Engine) acquire(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[id]; busy {
		return false
	}
	e.inflight[id] = struct{}{}
	return true
}

func (e *Engine) release(id string) {
	e.mu.Lock()
	delete(e.inflight, id)
	e.mu.Unlock()
}

// load returns a private copy of the thread.
func (e *Engine) load(ctx context.Context, id string) (*thread.Thread, error) {
	e.mu.Lock()
	t, ok := e.pending[id]
	e.mu.Unlock()
	if ok {
		return t.Clone(), nil
	}

	t, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading thread %s: %w", id, err)
	}
	return t, nil
}

// persist saves t. A failed save keeps t in memory for a later retry and
// is not reported to the caller.
func (e *Engine) persist(ctx context.Context, t *thread.Thread) {
	err := e.repo.Save(context.WithoutCancel(ctx), t)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.log.Warn("saving thread failed, will retry",
			zap.String("thread_id", t.ID),
			zap.Error(err),
		)
		e.pending[t.ID] = t.Clone()
		return
	}
	delete(e.pending, t.ID)
}
