// Package filestore keeps uploaded scans and answer keys on local disk
// under deterministic names.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// Category is a subdirectory of the storage root.
type Category string

const (
	OMR        Category = "omr"
	AnswerKeys Category = "answer-keys"
)

// Store writes files below root. Stored paths are slash-separated and
// relative to root, e.g. "omr/omr_R1.jpg".
type Store struct {
	root string
}

// New creates the category directories below root.
func New(root string) (*Store, error) {
	for _, c := range []Category{OMR, AnswerKeys} {
		if err := os.MkdirAll(filepath.Join(root, string(c)), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", c, err)
		}
	}
	return &Store{root: root}, nil
}

// Name builds the stored file name for key, e.g. Name("omr", "R1", ".jpg")
// gives "omr_R1.jpg".
func Name(prefix, key, ext string) string {
	return prefix + "_" + key + ext
}

// Put writes r to cat/name. The data goes to a temp file in the same
// directory first and is renamed into place, so readers never see a
// partial file.
func (s *Store) Put(cat Category, name string, r io.Reader) (string, error) {
	if name == "" || name != path.Base(name) || name != filepath.Base(name) || name == ".." {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	rel := path.Join(string(cat), name)
	dst, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		cleanup()
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return "", fmt.Errorf("sync %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("close %s: %w", rel, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return "", fmt.Errorf("chmod %s: %w", rel, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		cleanup()
		return "", fmt.Errorf("rename %s: %w", rel, err)
	}
	return rel, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s *Store) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	p, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", rel, err)
	}
	return nil
}

// Stash is a stored file moved aside while its replacement is recorded.
// A nil Stash means there was nothing to move.
type Stash struct {
	dst string
	tmp string
}

// Stash moves the file at rel to a temp name in the same directory so a
// replacement written to rel can be rolled back. A missing file yields a
// nil Stash.
func (s *Store) Stash(rel string) (*Stash, error) {
	if rel == "" {
		return nil, nil
	}
	dst, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	tmp := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".stash")
	if err := os.Rename(dst, tmp); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stash %s: %w", rel, err)
	}
	return &Stash{dst: dst, tmp: tmp}, nil
}

// Restore puts the stashed file back, replacing whatever is at its path.
func (st *Stash) Restore() error {
	if st == nil {
		return nil
	}
	if err := os.Rename(st.tmp, st.dst); err != nil {
		return fmt.Errorf("restore %s: %w", st.dst, err)
	}
	return nil
}

// Drop deletes the stashed file.
func (st *Stash) Drop() error {
	if st == nil {
		return nil
	}
	if err := os.Remove(st.tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("drop stash of %s: %w", st.dst, err)
	}
	return nil
}

// Open opens a stored file for reading.
func (s *Store) Open(rel string) (*os.File, error) {
	p, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (s *Store) resolve(rel string) (string, error) {
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("path %q escapes storage root", rel)
	}
	return filepath.Join(s.root, local), nil
}
