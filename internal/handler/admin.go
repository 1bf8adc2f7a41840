package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/resultportal/internal/handler/views"
	appI18n "github.com/pavelanni/resultportal/internal/i18n"
	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/roster"
	"github.com/pavelanni/resultportal/internal/validation"
)

func (h *Handler) dashboardData(r *http.Request) (views.DashboardData, error) {
	ctx := r.Context()
	var d views.DashboardData
	var err error

	if d.Flags, err = h.flags.Snapshot(ctx); err != nil {
		return d, err
	}
	if d.Totals, err = h.postStats(r, ""); err != nil {
		return d, err
	}
	for _, p := range model.StudentPosts {
		ps, err := h.postStats(r, p)
		if err != nil {
			return d, err
		}
		d.Posts = append(d.Posts, ps)
	}

	keys, err := h.store.ListAnswerKeys(ctx, false)
	if err != nil {
		return d, model.Storage("list answer keys", err)
	}
	d.AnswerKeys = make(map[model.Post]*model.AnswerKey, len(keys))
	for i := range keys {
		d.AnswerKeys[keys[i].Post] = &keys[i]
	}

	if d.Students, err = h.store.ListStudents(ctx); err != nil {
		return d, model.Storage("list students", err)
	}
	return d, nil
}

func (h *Handler) postStats(r *http.Request, post model.Post) (views.PostStats, error) {
	ps := views.PostStats{Post: post}
	counts := []struct {
		dst *int
		f   model.StudentFilter
	}{
		{&ps.Total, model.StudentFilter{Post: post}},
		{&ps.WithOMR, model.StudentFilter{Post: post, WithOMR: true}},
		{&ps.WithResults, model.StudentFilter{Post: post, WithResults: true}},
	}
	for _, c := range counts {
		n, err := h.store.CountStudents(r.Context(), c.f)
		if err != nil {
			return ps, model.Storage("count students", err)
		}
		*c.dst = n
	}
	return ps, nil
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, http.StatusOK, nil, nil)
}

func (h *Handler) renderDashboard(w http.ResponseWriter, r *http.Request, status int, notices, errs []string) {
	d, err := h.dashboardData(r)
	if err != nil {
		slog.Error("failed to load dashboard", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	d.Notices = notices
	d.Errors = errs
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := views.AdminDashboardPage(d).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

// respond answers a dashboard form or a script request with the same
// outcome: JSON for the latter, the re-rendered dashboard for the former.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, err error, msg string, extra map[string]any) {
	if wantsJSON(r) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeOK(w, msg, extra)
		return
	}
	if err != nil {
		status := errStatus(err)
		if status == http.StatusInternalServerError {
			slog.Error("admin request failed", "path", r.URL.Path, "error", err)
		}
		h.renderDashboard(w, r, status, nil, []string{errMessage(err)})
		return
	}
	h.renderDashboard(w, r, http.StatusOK, []string{msg}, nil)
}

func (h *Handler) respondReport(w http.ResponseWriter, r *http.Request, rep model.Report) {
	msg := appI18n.Td(r.Context(), "ImportSummary", map[string]any{
		"Success": rep.SuccessCount,
		"Errors":  rep.ErrorCount,
	})
	if rep.Errors == nil {
		rep.Errors = []string{}
	}
	if wantsJSON(r) {
		writeOK(w, msg, map[string]any{
			"successCount": rep.SuccessCount,
			"errorCount":   rep.ErrorCount,
			"errors":       rep.Errors,
		})
		return
	}
	h.renderDashboard(w, r, http.StatusOK, []string{msg}, rep.Errors)
}

func studentInput(fields map[string]string) validation.StudentInput {
	return validation.StudentInput{
		RollNo: fields["rollNo"],
		Name:   fields["name"],
		DOB:    fields["dob"],
		Mobile: fields["mobile"],
		Post:   fields["postApplied"],
	}
}

func (h *Handler) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		h.respond(w, r, err, "", nil)
		return
	}
	st, err := h.roster.AddStudent(r.Context(), studentInput(fields))
	if err != nil {
		h.respond(w, r, err, "", nil)
		return
	}
	h.respond(w, r, nil, appI18n.T(r.Context(), "Saved"), map[string]any{"student": st})
}

func (h *Handler) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	st, err := h.roster.Student(r.Context(), chi.URLParam(r, "rollNo"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "", map[string]any{"student": st})
}

func (h *Handler) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.roster.UpdateStudent(r.Context(), chi.URLParam(r, "rollNo"), studentInput(fields))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "student updated", map[string]any{"student": st})
}

func (h *Handler) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.DeleteStudent(r.Context(), chi.URLParam(r, "rollNo")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "student deleted", nil)
}

func (h *Handler) handleGetResults(w http.ResponseWriter, r *http.Request) {
	st, err := h.roster.Student(r.Context(), chi.URLParam(r, "rollNo"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	extra := map[string]any{"rollNo": st.RollNo, "results": st.Result}
	if st.HasResults() {
		extra["breakdown"] = h.roster.Scheme().Breakdown(*st.Result)
	}
	writeOK(w, "", extra)
}

func (h *Handler) handleSetResults(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.roster.SetResult(r.Context(), chi.URLParam(r, "rollNo"), roster.ResultInput{
		Correct:     fields["correctAnswers"],
		Wrong:       fields["wrongAnswers"],
		Unattempted: fields["unattempted"],
		FinalScore:  fields["finalScore"],
		Percentage:  fields["percentage"],
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "results updated", map[string]any{"results": res})
}

func (h *Handler) handleClearResults(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.ClearResult(r.Context(), chi.URLParam(r, "rollNo")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "results deleted", nil)
}

// uploadedFile returns the "file" part of a multipart request.
func uploadedFile(r *http.Request) (multipart.File, string, int64, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, "", 0, err
		}
		return nil, "", 0, model.Invalid("file", "upload must be multipart/form-data")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", 0, model.Invalid("file", "is required")
	}
	return file, header.Filename, header.Size, nil
}

func (h *Handler) handleBulkStudents(w http.ResponseWriter, r *http.Request) {
	rows, err := h.readSheet(r)
	if err != nil {
		h.respond(w, r, err, "", nil)
		return
	}
	h.respondReport(w, r, h.roster.ImportStudents(detached(r), rows))
}

func (h *Handler) handleBulkResults(w http.ResponseWriter, r *http.Request) {
	rows, err := h.readSheet(r)
	if err != nil {
		h.respond(w, r, err, "", nil)
		return
	}
	h.respondReport(w, r, h.roster.ImportResults(detached(r), rows))
}

func (h *Handler) handleUploadOMR(w http.ResponseWriter, r *http.Request) {
	file, name, _, err := uploadedFile(r)
	if err != nil {
		h.respond(w, r, err, "", nil)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		h.respond(w, r, err, "", nil)
		return
	}
	rel, err := h.roster.AttachOMR(r.Context(), r.FormValue("rollNo"), name, data)
	if err != nil {
		h.respond(w, r, err, "", nil)
		return
	}
	h.respond(w, r, nil, appI18n.T(r.Context(), "Saved"), map[string]any{"path": rel})
}

func (h *Handler) handleBulkOMR(w http.ResponseWriter, r *http.Request) {
	entries, closeArchive, err := h.readArchive(r)
	if err != nil {
		h.respond(w, r, err, "", nil)
		return
	}
	defer closeArchive()
	h.respondReport(w, r, h.roster.ImportOMR(detached(r), entries))
}

func (h *Handler) handleDeleteOMR(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.RemoveOMR(r.Context(), chi.URLParam(r, "rollNo")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "OMR sheet deleted", nil)
}

func (h *Handler) handleSetFlag(key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := readFields(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		v, err := parseBool(fields, "isPublic")
		if err != nil {
			writeError(w, r, err)
			return
		}
		switch key {
		case model.FlagOMRPublic:
			err = h.flags.SetOMRPublic(r.Context(), v)
		default:
			err = h.flags.SetResultsPublic(r.Context(), v)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeOK(w, key+" updated", map[string]any{key: v})
	}
}

func (h *Handler) handleAdminUsersPage(w http.ResponseWriter, r *http.Request) {
	h.renderUsers(w, r, http.StatusOK, "")
}

func (h *Handler) renderUsers(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		slog.Error("failed to list users", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := views.AdminUsersPage(users, errMsg).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	displayName := strings.TrimSpace(r.FormValue("display_name"))
	password := r.FormValue("password")

	if username == "" || password == "" {
		h.renderUsers(w, r, http.StatusBadRequest, "username and password required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if displayName == "" {
		displayName = username
	}

	err = h.store.CreateUser(r.Context(), model.User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Active:       true,
	})
	if err != nil {
		h.renderUsers(w, r, errStatus(err), errMessage(err))
		return
	}

	http.Redirect(w, r, h.path("/admin/users"), http.StatusSeeOther)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	h.changeOtherUser(w, r, "deactivate", h.store.ToggleUserActive)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	h.changeOtherUser(w, r, "delete", h.store.DeleteUser)
}

// changeOtherUser applies fn to the user named in the URL. Administrators
// cannot lock themselves out.
func (h *Handler) changeOtherUser(w http.ResponseWriter, r *http.Request, verb string, fn func(context.Context, string) error) {
	username := chi.URLParam(r, "username")
	if u := model.UserFromContext(r.Context()); u != nil && u.Username == username {
		h.renderUsers(w, r, http.StatusBadRequest, "you cannot "+verb+" your own account")
		return
	}

	if err := fn(r.Context(), username); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			h.renderUsers(w, r, http.StatusNotFound, errMessage(err))
			return
		}
		slog.Error("failed to update user", "username", username, "action", verb, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.path("/admin/users"), http.StatusSeeOther)
}
