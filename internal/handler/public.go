package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/resultportal/internal/gate"
	"github.com/pavelanni/resultportal/internal/handler/views"
	appI18n "github.com/pavelanni/resultportal/internal/i18n"
	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/validation"
)

const studentCookieName = "student_session"

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderStudentLogin(w, r, http.StatusOK, nil)
}

func (h *Handler) renderStudentLogin(w http.ResponseWriter, r *http.Request, status int, errs []string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := views.StudentLoginPage(errs).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) renderResult(w http.ResponseWriter, r *http.Request, v gate.View) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := views.StudentResultPage(v).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

// handleView authenticates the student and shows whatever is visible.
func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	claim := gate.Claim{
		RollNo: r.FormValue("rollNo"),
		DOB:    r.FormValue("dob"),
		Mobile: r.FormValue("mobile"),
	}
	v, err := h.gate.Login(r.Context(), claim)
	if err != nil {
		h.studentError(w, r, err)
		return
	}

	token, exp, err := h.tokens.Issue(v.Student.RollNo)
	if err != nil {
		slog.Error("failed to issue student token", "error", err)
		h.renderStudentLogin(w, r, http.StatusInternalServerError, []string{appI18n.T(r.Context(), "GenericError")})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     studentCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	h.renderResult(w, r, v)
}

// handleResultPage re-renders the result for a student holding a session,
// with the flags as they are now.
func (h *Handler) handleResultPage(w http.ResponseWriter, r *http.Request) {
	rollNo, ok := h.studentFromCookie(r)
	if !ok {
		h.renderStudentLogin(w, r, http.StatusUnauthorized, []string{appI18n.T(r.Context(), "SessionExpired")})
		return
	}
	v, err := h.gate.Refresh(r.Context(), rollNo)
	if err != nil {
		h.studentError(w, r, err)
		return
	}
	h.renderResult(w, r, v)
}

func (h *Handler) studentError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		h.renderStudentLogin(w, r, http.StatusBadRequest, []string{ve.Error()})
	case errors.Is(err, gate.ErrAuthFailed):
		h.renderStudentLogin(w, r, http.StatusUnauthorized, []string{appI18n.T(r.Context(), "AuthFailed")})
	case errors.Is(err, gate.ErrNoData):
		h.renderStudentLogin(w, r, http.StatusForbidden, []string{appI18n.T(r.Context(), "NoData")})
	default:
		slog.Error("student request failed", "error", err)
		h.renderStudentLogin(w, r, http.StatusInternalServerError, []string{appI18n.T(r.Context(), "GenericError")})
	}
}

func (h *Handler) studentFromCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(studentCookieName)
	if err != nil {
		return "", false
	}
	rollNo, err := h.tokens.Verify(c.Value)
	if err != nil {
		slog.Debug("rejected student token", "error", err)
		return "", false
	}
	return rollNo, true
}

// handleOMR serves the OMR sheet of the student bound to the session. The
// visibility flag is checked on every request.
func (h *Handler) handleOMR(w http.ResponseWriter, r *http.Request) {
	rollNo, ok := h.studentFromCookie(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	rel, err := h.gate.OMRFile(r.Context(), rollNo)
	if errors.Is(err, gate.ErrNoData) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("failed to resolve OMR file", "roll_no", rollNo, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.serveFile(w, r, rel, "inline", path.Base(rel))
}

func (h *Handler) handleStudentLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     studentCookieName,
		Value:    "",
		Path:     h.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) handleAnswerKeys(w http.ResponseWriter, r *http.Request) {
	var keys []model.AnswerKey
	var selected model.Post
	if raw := r.URL.Query().Get("post"); raw != "" {
		post, err := validation.AnswerKeyPost(raw)
		if err == nil {
			selected = post
		}
	}

	if selected != "" {
		k, err := h.store.GetAnswerKey(r.Context(), selected)
		if err != nil {
			slog.Error("failed to get answer key", "post", selected, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if k != nil && k.Published {
			keys = append(keys, *k)
		}
	} else {
		var err error
		keys, err = h.store.ListAnswerKeys(r.Context(), true)
		if err != nil {
			slog.Error("failed to list answer keys", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.AnswerKeysPage(keys, selected).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleAnswerKeyFile(w http.ResponseWriter, r *http.Request) {
	post, err := validation.AnswerKeyPost(chi.URLParam(r, "post"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	k, err := h.store.GetAnswerKey(r.Context(), post)
	if err != nil {
		slog.Error("failed to get answer key", "post", post, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if k == nil || !k.Published {
		http.NotFound(w, r)
		return
	}
	h.serveFile(w, r, k.FilePath, "attachment", k.FileName)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, rel, disposition, name string) {
	f, err := h.files.Open(rel)
	if err != nil {
		slog.Error("failed to open stored file", "path", rel, "error", err)
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	modTime := time.Time{}
	if fi, err := f.Stat(); err == nil {
		modTime = fi.ModTime()
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": name}))
	http.ServeContent(w, r, rel, modTime, f)
}
