package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "Exam Result Portal" {
		t.Errorf("T(AppTitle) = %q, want 'Exam Result Portal'", got)
	}

	got = T(ctx, "AuthFailed")
	if got != "Please check your details and try again." {
		t.Errorf("T(AuthFailed) = %q", got)
	}
}

func TestTranslateHindi(t *testing.T) {
	ctx := initLang(t, "hi")

	got := T(ctx, "AppTitle")
	if got != "परीक्षा परिणाम पोर्टल" {
		t.Errorf("T(AppTitle) = %q, want 'परीक्षा परिणाम पोर्टल'", got)
	}

	got = T(ctx, "RollNo")
	if got != "रोल नंबर" {
		t.Errorf("T(RollNo) = %q, want 'रोल नंबर'", got)
	}
}

func TestUnsupportedFallsBack(t *testing.T) {
	ctx := initLang(t, "fr")

	if got := T(ctx, "Login"); got != "Sign in" {
		t.Errorf("T(Login) = %q, want English fallback", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "StudentCount", 1)
	if got1 != "1 student" {
		t.Errorf("Tp(StudentCount, 1) = %q, want '1 student'", got1)
	}

	got5 := Tp(ctx, "StudentCount", 5)
	if got5 != "5 students" {
		t.Errorf("Tp(StudentCount, 5) = %q, want '5 students'", got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ImportSummary", map[string]any{"Success": 3, "Errors": 1})
	if got != "3 succeeded, 1 failed." {
		t.Errorf("Td(ImportSummary) = %q, want '3 succeeded, 1 failed.'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var title string
	h := Middleware(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title = T(r.Context(), "AppTitle")
	}))

	tests := []struct {
		name   string
		url    string
		accept string
		cookie string
		want   string
	}{
		{"default", "/", "", "", "Exam Result Portal"},
		{"accept header", "/", "hi-IN,hi;q=0.9,en;q=0.8", "", "परीक्षा परिणाम पोर्टल"},
		{"cookie", "/", "", "hi", "परीक्षा परिणाम पोर्टल"},
		{"query beats cookie", "/?lang=en", "", "hi", "Exam Result Portal"},
		{"unsupported query", "/?lang=xx", "hi", "", "परीक्षा परिणाम पोर्टल"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: langCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if title != tt.want {
				t.Errorf("title = %q, want %q", title, tt.want)
			}
		})
	}
}
