package filestore

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, root
}

func TestPutOpenRemove(t *testing.T) {
	s, root := newTestStore(t)

	rel, err := s.Put(OMR, Name("omr", "R1", ".jpg"), strings.NewReader("first"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if rel != "omr/omr_R1.jpg" {
		t.Errorf("rel = %q", rel)
	}

	// Same name replaces the content in place.
	if _, err := s.Put(OMR, "omr_R1.jpg", strings.NewReader("second")); err != nil {
		t.Fatalf("Put again: %v", err)
	}
	f, err := s.Open(rel)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "second" {
		t.Errorf("content = %q, want second", data)
	}

	entries, _ := os.ReadDir(filepath.Join(root, "omr"))
	if len(entries) != 1 {
		t.Errorf("expected only the final file, found %d entries", len(entries))
	}

	if err := s.Remove(rel); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(rel); err != nil {
		t.Errorf("Remove of missing file: %v", err)
	}
	if err := s.Remove(""); err != nil {
		t.Errorf("Remove(\"\"): %v", err)
	}
}

func TestRejectsEscapingPaths(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Open("../etc/passwd"); err == nil {
		t.Error("expected error for path outside root")
	}
	if err := s.Remove("/abs/path"); err == nil {
		t.Error("expected error for absolute path")
	}
	if _, err := s.Put(AnswerKeys, "../x.pdf", strings.NewReader("x")); err == nil {
		t.Error("expected error for escaping name")
	}
}

func TestStashRestoreAndDrop(t *testing.T) {
	s, root := newTestStore(t)
	read := func(rel string) string {
		t.Helper()
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		return string(data)
	}

	rel, err := s.Put(AnswerKeys, "answer_key_DCO.pdf", strings.NewReader("old"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	st, err := s.Stash(rel)
	if err != nil || st == nil {
		t.Fatalf("Stash = %v, %v", st, err)
	}
	if _, err := s.Put(AnswerKeys, "answer_key_DCO.pdf", strings.NewReader("new")); err != nil {
		t.Fatalf("Put replacement: %v", err)
	}
	if err := st.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := read(rel); got != "old" {
		t.Errorf("after Restore content = %q, want old", got)
	}

	st, err = s.Stash(rel)
	if err != nil {
		t.Fatalf("Stash: %v", err)
	}
	if _, err := s.Put(AnswerKeys, "answer_key_DCO.pdf", strings.NewReader("new")); err != nil {
		t.Fatalf("Put replacement: %v", err)
	}
	if err := st.Drop(); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if got := read(rel); got != "new" {
		t.Errorf("after Drop content = %q, want new", got)
	}
	entries, _ := os.ReadDir(filepath.Join(root, "answer-keys"))
	if len(entries) != 1 {
		t.Errorf("expected only the final file, found %d entries", len(entries))
	}

	missing, err := s.Stash("omr/omr_NONE.jpg")
	if err != nil || missing != nil {
		t.Errorf("Stash of missing file = %v, %v", missing, err)
	}
	if err := missing.Restore(); err != nil {
		t.Errorf("Restore of nil stash: %v", err)
	}
}
