package thread

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wingmanhq/wingman/internal/analysis"
	"github.com/wingmanhq/wingman/internal/coaching"
	"github.com/wingmanhq/wingman/internal/db"
)

// SQLiteRepository stores threads in the wingman database.
type SQLiteRepository struct {
	db *db.DB
}

// NewSQLiteRepository creates a repository on an opened database.
func NewSQLiteRepository(database *db.DB) *SQLiteRepository {
	return &SQLiteRepository{db: database}
}

// messageMeta holds the structured parts of a message.
type messageMeta struct {
	Question *coaching.Question `json:"question,omitempty"`
	Replies  []analysis.Reply   `json:"replies,omitempty"`
}

// Save upserts the thread row and replaces its messages in one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, t *Thread) error {
	contextJSON, err := json.Marshal(t.Context)
	if err != nil {
		return fmt.Errorf("encoding context: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO threads (id, title, context, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, context = excluded.context, updated_at = excluded.updated_at`,
		t.ID, t.Title, string(contextJSON), t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting thread: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM thread_messages WHERE thread_id = ?`, t.ID); err != nil {
		return fmt.Errorf("clearing messages: %w", err)
	}

	for i, m := range t.Messages {
		meta, err := json.Marshal(messageMeta{Question: m.Question, Replies: m.Replies})
		if err != nil {
			return fmt.Errorf("encoding message %s: %w", m.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO thread_messages (id, thread_id, seq, role, kind, content, image_url, metadata, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, t.ID, i, m.Role, m.Kind, m.Content, m.ImageURL, string(meta), m.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting message %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing thread: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Thread, error) {
	t := &Thread{}
	var contextJSON string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, context, created_at, updated_at FROM threads WHERE id = ?`, id,
	).Scan(&t.ID, &t.Title, &contextJSON, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting thread: %w", err)
	}
	if err := json.Unmarshal([]byte(contextJSON), &t.Context); err != nil {
		return nil, fmt.Errorf("decoding context of thread %s: %w", id, err)
	}

	msgs, err := r.messages(ctx, `WHERE thread_id = ?`, id)
	if err != nil {
		return nil, err
	}
	t.Messages = msgs[id]
	return t, nil
}

// List returns threads most recently updated first.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Thread, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, context, created_at, updated_at FROM threads ORDER BY updated_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying threads: %w", err)
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		t := &Thread{}
		var contextJSON string
		if err := rows.Scan(&t.ID, &t.Title, &contextJSON, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		if err := json.Unmarshal([]byte(contextJSON), &t.Context); err != nil {
			return nil, fmt.Errorf("decoding context of thread %s: %w", t.ID, err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	msgs, err := r.messages(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, t := range threads {
		t.Messages = msgs[t.ID]
	}
	return threads, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// messages loads messages grouped by thread id, in thread order.
func (r *SQLiteRepository) messages(ctx context.Context, where string, args ...any) (map[string][]Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT thread_id, id, role, kind, content, image_url, metadata, created_at
		 FROM thread_messages `+where+` ORDER BY thread_id, seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]Message)
	for rows.Next() {
		var (
			threadID string
			m        Message
			metaJSON string
			created  time.Time
		)
		if err := rows.Scan(&threadID, &m.ID, &m.Role, &m.Kind, &m.Content, &m.ImageURL, &metaJSON, &created); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		var meta messageMeta
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("decoding message %s: %w", m.ID, err)
		}
		m.Question = meta.Question
		m.Replies = meta.Replies
		m.CreatedAt = created
		out[threadID] = append(out[threadID], m)
	}
	return out, rows.Err()
}
