// Package archive lists and extracts the files inside an uploaded ZIP.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/pavelanni/resultportal/internal/model"
)

// Archive is an opened ZIP file.
type Archive struct {
	zr     *zip.Reader
	closer io.Closer
}

// Entry is one regular file in the archive. Its content is read lazily so
// a corrupt entry does not affect the others.
type Entry struct {
	Name string
	Size uint64
	file *zip.File
}

// Open opens the ZIP file at name.
func Open(name string) (*Archive, error) {
	rc, err := zip.OpenReader(name)
	if err != nil {
		return nil, model.Invalid("file", "not a valid ZIP archive: %v", err)
	}
	return &Archive{zr: &rc.Reader, closer: rc}, nil
}

// NewReader reads a ZIP from r, which has the given size.
func NewReader(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, model.Invalid("file", "not a valid ZIP archive: %v", err)
	}
	return &Archive{zr: zr}, nil
}

// Close releases the underlying file, if any.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// Entries returns the regular files in archive order, skipping
// directories and macOS metadata.
func (a *Archive) Entries() []Entry {
	var out []Entry
	for _, f := range a.zr.File {
		if f.FileInfo().IsDir() || skip(f.Name) {
			continue
		}
		out = append(out, Entry{Name: f.Name, Size: f.UncompressedSize64, file: f})
	}
	return out
}

func skip(name string) bool {
	name = strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(name, "__MACOSX/") {
		return true
	}
	return strings.HasPrefix(path.Base(name), "._") || path.Base(name) == ".DS_Store"
}

// Read extracts the entry. Entries larger than limit bytes are rejected.
func (e Entry) Read(limit int64) ([]byte, error) {
	if limit > 0 && e.Size > uint64(limit) {
		return nil, fmt.Errorf("%s is larger than %d bytes", e.Name, limit)
	}
	rc, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", e.Name, err)
	}
	defer rc.Close()

	r := io.Reader(rc)
	if limit > 0 {
		// The header size can lie; never read more than limit+1.
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", e.Name, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%s is larger than %d bytes", e.Name, limit)
	}
	return data, nil
}
