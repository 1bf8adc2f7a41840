package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/resultportal/internal/filestore"
	"github.com/pavelanni/resultportal/internal/flags"
	"github.com/pavelanni/resultportal/internal/gate"
	appI18n "github.com/pavelanni/resultportal/internal/i18n"
	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/roster"
	"github.com/pavelanni/resultportal/internal/scan"
	"github.com/pavelanni/resultportal/internal/score"
	"github.com/pavelanni/resultportal/internal/store"
	"github.com/pavelanni/resultportal/internal/validation"
)

const testCSRF = "csrf-test-token"

func TestMain(m *testing.M) {
	if err := appI18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testEnv struct {
	router http.Handler
	store  *store.Store
	roster *roster.Service
	flags  *flags.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	files, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	fl := flags.New(st)
	ros := roster.New(st, files, roster.Config{Scheme: score.DefaultScheme, Scan: scan.DefaultOptions, MaxFileBytes: 1 << 20})
	tokens, err := gate.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	h, err := New(Deps{
		Store:  st,
		Roster: ros,
		Gate:   gate.New(st, fl),
		Tokens: tokens,
		Flags:  fl,
		Files:  files,
	}, model.PortalConfig{MaxUploadBytes: 2 << 20})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r := chi.NewRouter()
	r.Use(h.BasePathMiddleware)
	r.Use(appI18n.Middleware(false))
	h.Routes(r)
	return &testEnv{router: r, store: st, roster: ros, flags: fl}
}

func (e *testEnv) addStudent(t *testing.T, roll string) {
	t.Helper()
	_, err := e.roster.AddStudent(context.Background(), validation.StudentInput{
		RollNo: roll,
		Name:   "Asha Rao",
		DOB:    "15/01/2000",
		Mobile: "98765 43210",
		Post:   "DCO",
	})
	if err != nil {
		t.Fatalf("AddStudent: %v", err)
	}
}

func (e *testEnv) adminSession(t *testing.T) *http.Cookie {
	t.Helper()
	ctx := context.Background()
	if err := e.store.CreateUser(ctx, model.User{Username: "admin", DisplayName: "Admin", PasswordHash: "x", Active: true}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	token, err := e.store.CreateAuthSession(ctx, "admin")
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	return &http.Cookie{Name: sessionCookieName, Value: token}
}

// do sends a request carrying a valid CSRF cookie and header.
func (e *testEnv) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: testCSRF})
	if req.Method != http.MethodGet {
		req.Header.Set(csrfHeaderName, testCSRF)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func formRequest(method, target string, vals url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req
}

func uploadRequest(t *testing.T, target, fileName string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(8, 8, color.White), imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestStudentView(t *testing.T) {
	e := newTestEnv(t)
	e.addStudent(t, "R1")
	ctx := context.Background()
	if _, err := e.roster.SetResult(ctx, "R1", roster.ResultInput{Correct: "80", Wrong: "10", Unattempted: "10", FinalScore: "155"}); err != nil {
		t.Fatalf("SetResult: %v", err)
	}

	tests := []struct {
		name          string
		resultsPublic bool
		form          url.Values
		wantStatus    int
		wantBody      string
	}{
		{
			name:          "dob match",
			resultsPublic: true,
			form:          url.Values{"rollNo": {"r1"}, "dob": {"15/01/2000"}},
			wantStatus:    http.StatusOK,
			wantBody:      "155 out of 200",
		},
		{
			name:          "mobile match",
			resultsPublic: true,
			form:          url.Values{"rollNo": {"R1"}, "mobile": {"9876543210"}},
			wantStatus:    http.StatusOK,
			wantBody:      "77.5%",
		},
		{
			name:          "wrong dob",
			resultsPublic: true,
			form:          url.Values{"rollNo": {"R1"}, "dob": {"16/01/2000"}},
			wantStatus:    http.StatusUnauthorized,
			wantBody:      "Please check your details and try again.",
		},
		{
			name:          "unknown roll",
			resultsPublic: true,
			form:          url.Values{"rollNo": {"NOPE"}, "dob": {"15/01/2000"}},
			wantStatus:    http.StatusUnauthorized,
			wantBody:      "Please check your details and try again.",
		},
		{
			name:          "no secret",
			resultsPublic: true,
			form:          url.Values{"rollNo": {"R1"}},
			wantStatus:    http.StatusBadRequest,
		},
		{
			name:       "nothing visible",
			form:       url.Values{"rollNo": {"R1"}, "dob": {"15/01/2000"}},
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.flags.SetResultsPublic(ctx, tt.resultsPublic); err != nil {
				t.Fatal(err)
			}
			rec := e.do(formRequest(http.MethodPost, "/view", tt.form))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body does not contain %q", tt.wantBody)
			}
			gotCookie := cookieNamed(rec, studentCookieName) != nil
			if gotCookie != (tt.wantStatus == http.StatusOK) {
				t.Errorf("student cookie set = %v", gotCookie)
			}
		})
	}
}

func TestCSRFRequired(t *testing.T) {
	e := newTestEnv(t)
	req := formRequest(http.MethodPost, "/view", url.Values{"rollNo": {"R1"}, "dob": {"15/01/2000"}})
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestOMRFollowsFlag(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addStudent(t, "R1")
	if _, err := e.roster.AttachOMR(ctx, "R1", "scan.png", pngBytes(t)); err != nil {
		t.Fatalf("AttachOMR: %v", err)
	}
	if err := e.flags.SetOMRPublic(ctx, true); err != nil {
		t.Fatal(err)
	}

	rec := e.do(formRequest(http.MethodPost, "/view", url.Values{"rollNo": {"R1"}, "dob": {"15/01/2000"}}))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	session := cookieNamed(rec, studentCookieName)
	if session == nil {
		t.Fatal("no student session cookie")
	}

	rec = e.do(httptest.NewRequest(http.MethodGet, "/omr", nil), session)
	if rec.Code != http.StatusOK {
		t.Fatalf("omr status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}

	if err := e.flags.SetOMRPublic(ctx, false); err != nil {
		t.Fatal(err)
	}
	rec = e.do(httptest.NewRequest(http.MethodGet, "/omr", nil), session)
	if rec.Code != http.StatusNotFound {
		t.Errorf("omr after hiding: status = %d, want 404", rec.Code)
	}

	rec = e.do(httptest.NewRequest(http.MethodGet, "/view", nil), session)
	if rec.Code != http.StatusForbidden {
		t.Errorf("refresh after hiding: status = %d, want 403", rec.Code)
	}

	rec = e.do(httptest.NewRequest(http.MethodGet, "/omr", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("omr without session: status = %d, want 401", rec.Code)
	}
}

func TestAdminRequiresSession(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(httptest.NewRequest(http.MethodGet, "/admin/", nil))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/admin/login" {
		t.Errorf("Location = %q", loc)
	}

	rec = e.do(jsonRequest(http.MethodPut, "/admin/settings/omr-public", `{"isPublic":true}`))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("PUT without session: status = %d, want 401", rec.Code)
	}
}

func TestAdminDashboard(t *testing.T) {
	e := newTestEnv(t)
	session := e.adminSession(t)
	e.addStudent(t, "R1")

	rec := e.do(httptest.NewRequest(http.MethodGet, "/admin/", nil), session)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Asha Rao") {
		t.Error("dashboard does not list the student")
	}
}

func TestSetFlag(t *testing.T) {
	e := newTestEnv(t)
	session := e.adminSession(t)

	rec := e.do(jsonRequest(http.MethodPut, "/admin/settings/results-public", `{"isPublic":true}`), session)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", rec.Code, rec.Body.String())
	}
	on, err := e.flags.ResultsPublic(context.Background())
	if err != nil || !on {
		t.Errorf("ResultsPublic = %v, %v", on, err)
	}

	rec = e.do(jsonRequest(http.MethodPut, "/admin/settings/results-public", `{"isPublic":"maybe"}`), session)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid value: status = %d, want 400", rec.Code)
	}
}

func TestAdminStatusMapping(t *testing.T) {
	e := newTestEnv(t)
	session := e.adminSession(t)
	e.addStudent(t, "R1")

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{
			name: "get missing student",
			req:  jsonRequest(http.MethodGet, "/admin/students/NOPE", ""),
			want: http.StatusNotFound,
		},
		{
			name: "duplicate student",
			req:  jsonRequest(http.MethodPost, "/admin/students", `{"rollNo":"R1","name":"X","dob":"01/01/2000","mobile":"9876543210","postApplied":"DCO"}`),
			want: http.StatusConflict,
		},
		{
			name: "invalid post",
			req:  jsonRequest(http.MethodPost, "/admin/students", `{"rollNo":"R2","name":"X","dob":"01/01/2000","mobile":"9876543210","postApplied":"XYZ"}`),
			want: http.StatusBadRequest,
		},
		{
			name: "results do not add up",
			req:  jsonRequest(http.MethodPut, "/admin/students/R1/results", `{"correctAnswers":50,"wrongAnswers":10,"unattempted":10,"finalScore":90}`),
			want: http.StatusBadRequest,
		},
		{
			name: "results for missing student",
			req:  jsonRequest(http.MethodPut, "/admin/students/NOPE/results", `{"correctAnswers":80,"wrongAnswers":10,"unattempted":10,"finalScore":150}`),
			want: http.StatusNotFound,
		},
		{
			name: "set results",
			req:  jsonRequest(http.MethodPut, "/admin/students/R1/results", `{"correctAnswers":80,"wrongAnswers":10,"unattempted":10,"finalScore":150}`),
			want: http.StatusOK,
		},
		{
			name: "answer key for DCP",
			req:  jsonRequest(http.MethodPut, "/admin/answer-keys/DCP/publish", `{"isPublished":true}`),
			want: http.StatusBadRequest,
		},
		{
			name: "delete missing student",
			req:  jsonRequest(http.MethodDelete, "/admin/students/NOPE", ""),
			want: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(tt.req, session)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d; body: %s", rec.Code, tt.want, rec.Body.String())
			}
			body := decode(t, rec)
			if ok, _ := body["success"].(bool); ok != (tt.want == http.StatusOK) {
				t.Errorf("success = %v", body["success"])
			}
		})
	}
}

func TestBulkStudentsReport(t *testing.T) {
	e := newTestEnv(t)
	session := e.adminSession(t)

	csv := "Roll No,Name,DOB,Mobile,Post Applied\n" +
		"A1,Asha,15-01-2000,9876543210,DCO\n" +
		"A2,Ravi,15/02/2001,9876543211,FCD\n" +
		"A3,Bad,not-a-date,9876543212,DCO\n"
	rec := e.do(uploadRequest(t, "/admin/students/bulk", "students.csv", []byte(csv), nil), session)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if got := body["successCount"]; got != float64(2) {
		t.Errorf("successCount = %v, want 2", got)
	}
	if got := body["errorCount"]; got != float64(1) {
		t.Errorf("errorCount = %v, want 1", got)
	}
	errs, _ := body["errors"].([]any)
	if len(errs) != 1 || !strings.HasPrefix(errs[0].(string), "A3: ") {
		t.Errorf("errors = %v", errs)
	}
}

func TestBulkReportWithoutErrors(t *testing.T) {
	e := newTestEnv(t)
	session := e.adminSession(t)

	csv := "rollNo,name,dob,mobile,postApplied\nB1,Asha,15/01/2000,9876543210,DCO\n"
	rec := e.do(uploadRequest(t, "/admin/students/bulk", "students.csv", []byte(csv), nil), session)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"errors":[]`) {
		t.Errorf("errors is not an empty list: %s", rec.Body.String())
	}
}

func TestBulkRejectsEmptySheet(t *testing.T) {
	e := newTestEnv(t)
	session := e.adminSession(t)

	rec := e.do(uploadRequest(t, "/admin/results/bulk", "results.csv", nil, nil), session)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	e := newTestEnv(t)
	session := e.adminSession(t)

	big := bytes.Repeat([]byte("x"), 3<<20)
	rec := e.do(uploadRequest(t, "/admin/omr/single", "R1.png", big, map[string]string{"rollNo": "R1"}), session)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestAnswerKeyVisibility(t *testing.T) {
	e := newTestEnv(t)
	session := e.adminSession(t)
	pdf := []byte("%PDF-1.4\n%%EOF\n")

	rec := e.do(uploadRequest(t, "/admin/answer-keys", "key.pdf", pdf, map[string]string{"postCode": "dco"}), session)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d; body: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(httptest.NewRequest(http.MethodGet, "/answer-key/DCO/file", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unpublished key: status = %d, want 404", rec.Code)
	}

	rec = e.do(jsonRequest(http.MethodPut, "/admin/answer-keys/DCO/publish", `{"isPublished":true}`), session)
	if rec.Code != http.StatusOK {
		t.Fatalf("publish status = %d", rec.Code)
	}

	rec = e.do(httptest.NewRequest(http.MethodGet, "/answer-key/DCO/file", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("published key: status = %d, want 200", rec.Code)
	}
	got, _ := io.ReadAll(rec.Body)
	if !bytes.Equal(got, pdf) {
		t.Error("served file differs from upload")
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "key.pdf") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestToggleOwnAccount(t *testing.T) {
	e := newTestEnv(t)
	session := e.adminSession(t)

	rec := e.do(formRequest(http.MethodPost, "/admin/users/admin/toggle", url.Values{}), session)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	u, err := e.store.GetUser(context.Background(), "admin")
	if err != nil || u == nil || !u.Active {
		t.Errorf("admin account changed: %+v, %v", u, err)
	}
}
