package thread

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wingmanhq/wingman/internal/analysis"
	"github.com/wingmanhq/wingman/internal/coaching"
	"github.com/wingmanhq/wingman/internal/db"
)

func sampleThread() *Thread {
	t := New("Sam from Hinge", coaching.Preferences{Goal: "dating"})
	t.Context = coaching.ProcessAnswer(t.Context, "platform", "hinge")
	q, _ := coaching.QuestionByID("relationship")

	t.Append(
		NewMessage(RoleUser, KindText, "she stopped replying"),
		Message{ID: "q1", Role: RoleAssistant, Kind: KindQuestion, Content: q.Render(true), Question: &q, CreatedAt: time.Now().UTC()},
		Message{ID: "r1", Role: RoleAssistant, Kind: KindReply, Content: "summary", Replies: []analysis.Reply{
			{Text: "Still up for that coffee?", Tone: "direct", PrincipleIDs: []string{"P05"}},
		}, CreatedAt: time.Now().UTC()},
	)
	return t
}

// repositories runs each test against both implementations.
func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	d, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"sqlite": NewSQLiteRepository(d),
	}
}

// timeEqual compares instants regardless of location or monotonic reading.
var timeEqual = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })

func TestRepositoryRoundTrip(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			th := sampleThread()
			if err := repo.Save(ctx, th); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, err := repo.Get(ctx, th.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if diff := cmp.Diff(th, got, timeEqual); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRepositorySaveReplacesMessages(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			th := sampleThread()
			if err := repo.Save(ctx, th); err != nil {
				t.Fatalf("Save: %v", err)
			}

			th.Messages = th.Messages[:1]
			th.Title = "renamed"
			if err := repo.Save(ctx, th); err != nil {
				t.Fatalf("second Save: %v", err)
			}

			got, err := repo.Get(ctx, th.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if len(got.Messages) != 1 || got.Title != "renamed" {
				t.Errorf("expected 1 message and new title, got %d %q", len(got.Messages), got.Title)
			}
		})
	}
}

func TestRepositoryListAndDelete(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			older := sampleThread()
			older.UpdatedAt = time.Now().Add(-time.Hour).UTC()
			newer := sampleThread()

			for _, th := range []*Thread{older, newer} {
				if err := repo.Save(ctx, th); err != nil {
					t.Fatalf("Save: %v", err)
				}
			}

			list, err := repo.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(list) != 2 || list[0].ID != newer.ID {
				t.Fatalf("expected newest first, got %d threads", len(list))
			}
			if len(list[1].Messages) != len(older.Messages) {
				t.Errorf("List dropped messages: %d", len(list[1].Messages))
			}

			if err := repo.Delete(ctx, older.ID); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := repo.Get(ctx, older.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound after delete, got %v", err)
			}
			if err := repo.Delete(ctx, older.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound on second delete, got %v", err)
			}
		})
	}
}

func TestRepositoryGetMissing(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestMemoryRepositoryIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	th := sampleThread()
	if err := repo.Save(ctx, th); err != nil {
		t.Fatalf("Save: %v", err)
	}

	th.Messages[2].Replies[0].Text = "mutated"
	th.Context = coaching.ProcessAnswer(th.Context, "stage", "ghosting")

	got, _ := repo.Get(ctx, th.ID)
	if got.Messages[2].Replies[0].Text == "mutated" {
		t.Error("stored replies aliased the caller's slice")
	}
	if got.Context.Stage() != "" {
		t.Error("stored context aliased the caller's context")
	}

	got.Messages[1].Question.Chips[0].Value = "mutated"
	again, _ := repo.Get(ctx, th.ID)
	if again.Messages[1].Question.Chips[0].Value == "mutated" {
		t.Error("Get returned a shared question")
	}
}

func TestLast(t *testing.T) {
	th := New("", coaching.Preferences{})
	if th.Last() != nil {
		t.Error("expected nil for empty thread")
	}
	th.Append(NewMessage(RoleUser, KindText, "a"), NewMessage(RoleUser, KindText, "b"))
	if th.Last().Content != "b" {
		t.Errorf("unexpected last message %q", th.Last().Content)
	}
}
