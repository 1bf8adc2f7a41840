package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/resultportal/internal/i18n"
)

func (h *Handler) handleUploadAnswerKey(w http.ResponseWriter, r *http.Request) {
	file, name, _, err := uploadedFile(r)
	if err != nil {
		h.respond(w, r, err, "", nil)
		return
	}
	defer file.Close()

	publish := false
	if raw := r.FormValue("publish"); raw != "" {
		publish = raw == "on" || raw == "true" || raw == "1"
	}

	k, err := h.roster.UploadAnswerKey(r.Context(), r.FormValue("postCode"), name, file, publish)
	if err != nil {
		h.respond(w, r, err, "", nil)
		return
	}
	h.respond(w, r, nil, appI18n.T(r.Context(), "Saved"), map[string]any{"answerKey": k})
}

func (h *Handler) handlePublishAnswerKey(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	published, err := parseBool(fields, "isPublished")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.roster.SetAnswerKeyPublished(r.Context(), chi.URLParam(r, "post"), published); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "answer key updated", map[string]any{"isPublished": published})
}

func (h *Handler) handlePublishAllAnswerKeys(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	published, err := parseBool(fields, "isPublished")
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.roster.PublishAllAnswerKeys(r.Context(), published)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "answer keys updated", map[string]any{"isPublished": published, "updated": n})
}

func (h *Handler) handleDeleteAnswerKey(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.DeleteAnswerKey(r.Context(), chi.URLParam(r, "post")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "answer key deleted", nil)
}
