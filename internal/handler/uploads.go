package handler

import (
	"net/http"

	"github.com/pavelanni/resultportal/internal/archive"
	"github.com/pavelanni/resultportal/internal/sheet"
)

func (h *Handler) readSheet(r *http.Request) ([]sheet.Row, error) {
	file, name, _, err := uploadedFile(r)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return sheet.Read(name, file)
}

// readArchive opens the uploaded ZIP. The returned func closes the upload.
func (h *Handler) readArchive(r *http.Request) ([]archive.Entry, func(), error) {
	file, _, size, err := uploadedFile(r)
	if err != nil {
		return nil, nil, err
	}
	a, err := archive.NewReader(file, size)
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	return a.Entries(), func() { file.Close() }, nil
}
