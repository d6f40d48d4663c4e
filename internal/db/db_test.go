package db

import (
	"path/filepath"
	"testing"
)

func TestOpenMemory(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	for _, table := range []string{"threads", "thread_messages"} {
		var count int
		if err := d.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestMigrateIdempotent(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	if err := d.migrate(); err != nil {
		t.Fatalf("second migrate() error: %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer d.Close()

	if d.Path() != path {
		t.Errorf("Path() = %q, want %q", d.Path(), path)
	}
}

func TestMessagesCascadeOnThreadDelete(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	if _, err := d.Exec(`INSERT INTO threads (id) VALUES ('t1')`); err != nil {
		t.Fatalf("insert thread: %v", err)
	}
	if _, err := d.Exec(`INSERT INTO thread_messages (id, thread_id, seq, role, kind) VALUES ('m1', 't1', 0, 'user', 'text')`); err != nil {
		t.Fatalf("insert message: %v", err)
	}
	if _, err := d.Exec(`DELETE FROM threads WHERE id = 't1'`); err != nil {
		t.Fatalf("delete thread: %v", err)
	}

	var count int
	if err := d.QueryRow(`SELECT COUNT(*) FROM thread_messages`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected messages removed with their thread, got %d", count)
	}
}
