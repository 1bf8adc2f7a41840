package views

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/pavelanni/resultportal/internal/gate"
	appI18n "github.com/pavelanni/resultportal/internal/i18n"
	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/score"
)

func TestMain(m *testing.M) {
	if err := appI18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	ctx := model.ContextWithBasePath(context.Background(), "/portal")
	ctx = model.ContextWithCSRFToken(ctx, "tok123")
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestStudentLoginPage(t *testing.T) {
	out := render(t, StudentLoginPage([]string{"<b>bad</b>"}))
	for _, want := range []string{
		`action="/portal/view"`,
		`name="csrf_token" value="tok123"`,
		`name="rollNo"`,
		`name="dob"`,
		`name="mobile"`,
		"&lt;b&gt;bad&lt;/b&gt;",
		"<title>Exam Result Portal</title>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "<b>bad</b>") {
		t.Error("error message was not escaped")
	}
}

func TestStudentResultPage(t *testing.T) {
	st := &model.Student{
		RollNo:  "R1",
		Name:    "Asha",
		Post:    model.PostDCO,
		OMRPath: "omr/omr_R1.pdf",
		Result:  &model.ResultSummary{Correct: 80, Wrong: 10, Unattempted: 10, FinalScore: 155, Percentage: 77.5},
	}
	b := score.DefaultScheme.Breakdown(*st.Result)

	out := render(t, StudentResultPage(gate.View{Student: st, ShowOMR: true, ShowResults: true, Breakdown: &b}))
	for _, want := range []string{"Asha", "155 out of 200", "77.5%", `href="/portal/omr"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "<img") {
		t.Error("PDF scan must be linked, not embedded")
	}

	out = render(t, StudentResultPage(gate.View{Student: st, ShowOMR: true}))
	if strings.Contains(out, "155") {
		t.Error("hidden results were rendered")
	}
	if !strings.Contains(out, "Results have not been published yet.") {
		t.Error("missing hidden-results note")
	}
}

func TestAnswerKeysPage(t *testing.T) {
	keys := []model.AnswerKey{{Post: model.PostSFO, FileName: "sfo.pdf", Published: true, UploadedAt: time.Now()}}
	out := render(t, AnswerKeysPage(keys, model.PostSFO))
	if !strings.Contains(out, `href="/portal/answer-key/SFO/file"`) {
		t.Error("missing download link")
	}
	if !strings.Contains(out, "<strong>SFO</strong>") {
		t.Error("selected post not highlighted")
	}

	out = render(t, AnswerKeysPage(nil, ""))
	if !strings.Contains(out, "No answer keys have been published yet.") {
		t.Error("missing empty message")
	}
}

func TestAdminDashboardPage(t *testing.T) {
	d := DashboardData{
		Flags:  model.Flags{OMRPublic: true},
		Totals: PostStats{Total: 2, WithOMR: 1},
		Posts:  []PostStats{{Post: model.PostDCO, Total: 2, WithOMR: 1}},
		AnswerKeys: map[model.Post]*model.AnswerKey{
			model.PostDCO: {Post: model.PostDCO, FileName: "dco.pdf"},
		},
		Students: []model.Student{{RollNo: "R 1", Name: "A", Post: model.PostDCO, OMRPath: "omr/omr_R1.jpg", Active: true}},
		Notices:  []string{"3 succeeded, 0 failed."},
	}
	out := render(t, AdminDashboardPage(d))
	for _, want := range []string{
		`data-url="/portal/admin/settings/omr-public"`,
		`data-body="{&#34;isPublic&#34;:false}"`,
		`data-url="/portal/admin/answer-keys/DCO/publish"`,
		`data-url="/portal/admin/students/R%201"`,
		"1 student",
		"3 succeeded, 0 failed.",
		`enctype="multipart/form-data"`,
		`data-method="DELETE" data-url="/portal/admin/omr/R%201" data-body="{}"`,
		`X-CSRF-Token`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestAdminUsersPage(t *testing.T) {
	out := render(t, AdminUsersPage([]model.User{{Username: "admin", DisplayName: "Admin", Active: true}}, ""))
	if !strings.Contains(out, `action="/portal/admin/users/admin/toggle"`) {
		t.Error("missing toggle form")
	}
}
