package i18n

import (
	"net/http"
	"slices"
)

const langCookie = "lang"

// Middleware picks the language for each request: a supported ?lang=
// parameter (remembered in a cookie), then the cookie, then
// Accept-Language, then the default.
func Middleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var langs []string
			if q := r.URL.Query().Get("lang"); q != "" && slices.Contains(Languages(), q) {
				http.SetCookie(w, &http.Cookie{
					Name:     langCookie,
					Value:    q,
					Path:     "/",
					MaxAge:   365 * 24 * 60 * 60,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
				langs = append(langs, q)
			}
			if c, err := r.Cookie(langCookie); err == nil {
				langs = append(langs, c.Value)
			}
			langs = append(langs, r.Header.Get("Accept-Language"))
			ctx := WithLocalizer(r.Context(), NewLocalizer(langs...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
