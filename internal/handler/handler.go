package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/resultportal/internal/filestore"
	"github.com/pavelanni/resultportal/internal/flags"
	"github.com/pavelanni/resultportal/internal/gate"
	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/roster"
	"github.com/pavelanni/resultportal/internal/store"
)

// Deps are the services the handlers call into.
type Deps struct {
	Store  store.Backend
	Roster *roster.Service
	Gate   *gate.Gate
	Tokens *gate.Tokens
	Flags  *flags.Service
	Files  *filestore.Store
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  store.Backend
	roster *roster.Service
	gate   *gate.Gate
	tokens *gate.Tokens
	flags  *flags.Service
	files  *filestore.Store
	config model.PortalConfig
}

// New creates a new Handler.
func New(d Deps, cfg model.PortalConfig) (*Handler, error) {
	if d.Store == nil || d.Roster == nil || d.Gate == nil || d.Tokens == nil || d.Flags == nil || d.Files == nil {
		return nil, errors.New("handler: missing dependency")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	return &Handler{
		store:  d.Store,
		roster: d.Roster,
		gate:   d.Gate,
		tokens: d.Tokens,
		flags:  d.Flags,
		files:  d.Files,
		config: cfg,
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(h.limitBody)
		r.Use(h.csrfMiddleware)

		r.Get("/", h.handleIndex)
		r.Get("/view", h.handleResultPage)
		r.Post("/view", h.handleView)
		r.Get("/omr", h.handleOMR)
		r.Post("/logout", h.handleStudentLogout)
		r.Get("/answer-key", h.handleAnswerKeys)
		r.Get("/answer-key/{post}/file", h.handleAnswerKeyFile)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/login", h.handleLoginPage)
			r.Post("/login", h.handleLogin)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAuth)
				r.Post("/logout", h.handleLogout)
				r.Get("/", h.handleDashboard)

				r.Post("/students", h.handleCreateStudent)
				r.Post("/students/bulk", h.handleBulkStudents)
				r.Get("/students/{rollNo}", h.handleGetStudent)
				r.Put("/students/{rollNo}", h.handleUpdateStudent)
				r.Delete("/students/{rollNo}", h.handleDeleteStudent)
				r.Get("/students/{rollNo}/results", h.handleGetResults)
				r.Put("/students/{rollNo}/results", h.handleSetResults)
				r.Delete("/students/{rollNo}/results", h.handleClearResults)
				r.Post("/results/bulk", h.handleBulkResults)

				r.Post("/omr/single", h.handleUploadOMR)
				r.Post("/omr/bulk", h.handleBulkOMR)
				r.Delete("/omr/{rollNo}", h.handleDeleteOMR)

				r.Put("/settings/omr-public", h.handleSetFlag(model.FlagOMRPublic))
				r.Put("/settings/results-public", h.handleSetFlag(model.FlagResultsPublic))

				r.Post("/answer-keys", h.handleUploadAnswerKey)
				r.Put("/answer-keys/publish-all", h.handlePublishAllAnswerKeys)
				r.Put("/answer-keys/{post}/publish", h.handlePublishAnswerKey)
				r.Delete("/answer-keys/{post}", h.handleDeleteAnswerKey)

				r.Get("/users", h.handleAdminUsersPage)
				r.Post("/users", h.handleCreateUser)
				r.Post("/users/{username}/toggle", h.handleToggleUserActive)
				r.Post("/users/{username}/delete", h.handleDeleteUser)
			})
		})
	})
}

// BasePathMiddleware makes the configured URL prefix available to views.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// path prefixes p with the base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

// limitBody caps request bodies at the configured upload size.
func (h *Handler) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.flags.Snapshot(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// detached keeps a bulk run going after the client disconnects.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
