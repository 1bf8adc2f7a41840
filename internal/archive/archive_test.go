package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pavelanni/resultportal/internal/model"
)

func buildZip(t *testing.T, files map[string]string, dirs ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, d := range dirs {
		if _, err := zw.Create(d); err != nil {
			t.Fatal(err)
		}
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEntries(t *testing.T) {
	data := buildZip(t, map[string]string{
		"scans/7_R1.jpg":            "one",
		"R2.pdf":                    "two",
		"__MACOSX/scans/._7_R1.jpg": "meta",
		"scans/.DS_Store":           "junk",
	}, "scans/")

	a, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer a.Close()

	entries := a.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(entries), entries)
	}
	got := map[string]string{}
	for _, e := range entries {
		b, err := e.Read(1 << 10)
		if err != nil {
			t.Fatalf("Read(%s): %v", e.Name, err)
		}
		got[e.Name] = string(b)
	}
	if got["scans/7_R1.jpg"] != "one" || got["R2.pdf"] != "two" {
		t.Errorf("unexpected contents: %v", got)
	}
}

func TestReadLimit(t *testing.T) {
	data := buildZip(t, map[string]string{"big.jpg": "0123456789"})
	a, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	e := a.Entries()[0]
	if _, err := e.Read(5); err == nil {
		t.Error("expected size limit error")
	}
	if b, err := e.Read(0); err != nil || string(b) != "0123456789" {
		t.Errorf("unlimited read = %q, %v", b, err)
	}
}

func TestOpenFileAndInvalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "omr.zip")
	if err := os.WriteFile(p, buildZip(t, map[string]string{"A1.png": "x"}), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := Open(p)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if n := len(a.Entries()); n != 1 {
		t.Errorf("expected 1 entry, got %d", n)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	junk := []byte("definitely not a zip")
	_, err = NewReader(bytes.NewReader(junk), int64(len(junk)))
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}
