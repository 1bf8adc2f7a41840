package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/roster"
	"github.com/pavelanni/resultportal/internal/sheet"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// writeOK sends {success: true, message, ...extra}.
func writeOK(w http.ResponseWriter, msg string, extra map[string]any) {
	body := map[string]any{"success": true, "message": msg}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

// writeError sends {success: false, message} with the status for err.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]any{"success": false, "message": errMessage(err)})
}

func errStatus(err error) int {
	var ve *model.ValidationError
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &ve), errors.Is(err, sheet.ErrEmpty):
		return http.StatusBadRequest
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errMessage(err error) string {
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		return fmt.Sprintf("upload is larger than %d bytes", mbe.Limit)
	case errors.Is(err, sheet.ErrEmpty):
		return err.Error()
	case errStatus(err) == http.StatusInternalServerError:
		return "internal error"
	default:
		return roster.Describe(err)
	}
}

// readFields returns the request payload as strings, from a JSON object
// or from form values.
func readFields(r *http.Request) (map[string]string, error) {
	out := map[string]string{}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var raw map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return nil, err
			}
			return nil, model.Invalid("", "invalid JSON body")
		}
		for k, v := range raw {
			if v != nil {
				out[k] = fmt.Sprint(v)
			}
		}
		return out, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, model.Invalid("", "invalid form body")
	}
	for k, vs := range r.Form {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out, nil
}

func parseBool(fields map[string]string, key string) (bool, error) {
	raw, ok := fields[key]
	if !ok || raw == "" {
		return false, model.Invalid(key, "is required")
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, model.Invalid(key, "must be true or false")
	}
	return v, nil
}
