// Package storetest holds a behavioral suite that every store.Backend
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/store"
)

// Opener returns an empty backend. It must register its own cleanup.
type Opener func(t *testing.T) store.Backend

// Run exercises b against the Backend contract.
func Run(t *testing.T, open Opener) {
	t.Run("StudentCRUD", func(t *testing.T) { testStudentCRUD(t, open(t)) })
	t.Run("DuplicateStudent", func(t *testing.T) { testDuplicateStudent(t, open(t)) })
	t.Run("PostConstraint", func(t *testing.T) { testPostConstraint(t, open(t)) })
	t.Run("OMRAndResults", func(t *testing.T) { testOMRAndResults(t, open(t)) })
	t.Run("CountStudents", func(t *testing.T) { testCountStudents(t, open(t)) })
	t.Run("ActivateCohort", func(t *testing.T) { testActivateCohort(t, open(t)) })
	t.Run("AnswerKeys", func(t *testing.T) { testAnswerKeys(t, open(t)) })
	t.Run("Flags", func(t *testing.T) { testFlags(t, open(t)) })
	t.Run("UsersAndSessions", func(t *testing.T) { testUsersAndSessions(t, open(t)) })
}

// Student returns a valid student with the given roll number.
func Student(rollNo string, post model.Post) model.Student {
	return model.Student{
		RollNo:    rollNo,
		Name:      "Student " + rollNo,
		DOB:       time.Date(1998, 8, 15, 0, 0, 0, 0, time.UTC),
		Mobile:    "9876543210",
		Post:      post,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
}

func mustCreate(t *testing.T, b store.Backend, st model.Student) {
	t.Helper()
	if err := b.CreateStudent(context.Background(), st); err != nil {
		t.Fatalf("CreateStudent(%s): %v", st.RollNo, err)
	}
}

func testStudentCRUD(t *testing.T, b store.Backend) {
	ctx := context.Background()

	got, err := b.GetStudent(ctx, "R1")
	if err != nil {
		t.Fatalf("GetStudent on empty store: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil student, got %+v", got)
	}

	mustCreate(t, b, Student("R1", model.PostDCO))
	got, err = b.GetStudent(ctx, "R1")
	if err != nil || got == nil {
		t.Fatalf("GetStudent: %v, %v", got, err)
	}
	if got.Name != "Student R1" || got.Post != model.PostDCO || got.Mobile != "9876543210" {
		t.Errorf("unexpected student: %+v", got)
	}
	if got.DOB.Year() != 1998 || got.DOB.Month() != time.August || got.DOB.Day() != 15 {
		t.Errorf("unexpected dob: %v", got.DOB)
	}
	if got.HasOMR() || got.HasResults() {
		t.Error("new student must have no OMR and no results")
	}

	err = b.UpdateStudent(ctx, "R1", model.StudentUpdate{
		Name:   "Renamed",
		DOB:    time.Date(2000, 1, 2, 0, 0, 0, 0, time.UTC),
		Mobile: "9123456780",
		Post:   model.PostSFO,
	})
	if err != nil {
		t.Fatalf("UpdateStudent: %v", err)
	}
	got, _ = b.GetStudent(ctx, "R1")
	if got.Name != "Renamed" || got.Post != model.PostSFO || got.Mobile != "9123456780" || got.DOB.Day() != 2 {
		t.Errorf("update not applied: %+v", got)
	}

	err = b.UpdateStudent(ctx, "NOPE", model.StudentUpdate{Name: "x", Post: model.PostDCO, Mobile: "9123456780"})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("UpdateStudent missing: expected ErrNotFound, got %v", err)
	}

	mustCreate(t, b, Student("R2", model.PostDCP))
	list, err := b.ListStudents(ctx)
	if err != nil {
		t.Fatalf("ListStudents: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 students, got %d", len(list))
	}

	if err := b.DeleteStudent(ctx, "R1"); err != nil {
		t.Fatalf("DeleteStudent: %v", err)
	}
	if err := b.DeleteStudent(ctx, "R1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second DeleteStudent: expected ErrNotFound, got %v", err)
	}
	if got, _ := b.GetStudent(ctx, "R1"); got != nil {
		t.Error("student still present after delete")
	}
}

func testDuplicateStudent(t *testing.T, b store.Backend) {
	mustCreate(t, b, Student("DUP", model.PostDCO))
	err := b.CreateStudent(context.Background(), Student("DUP", model.PostFCD))
	if !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	got, _ := b.GetStudent(context.Background(), "DUP")
	if got.Post != model.PostDCO {
		t.Errorf("duplicate insert modified the record: %+v", got)
	}
}

func testPostConstraint(t *testing.T, b store.Backend) {
	ctx := context.Background()
	if err := b.CreateStudent(ctx, Student("BADPOST", model.Post("XYZ"))); err == nil {
		t.Error("student with unknown post was stored")
	}
	if got, _ := b.GetStudent(ctx, "BADPOST"); got != nil {
		t.Errorf("rejected student is readable: %+v", got)
	}
	err := b.UpsertAnswerKey(ctx, model.AnswerKey{Post: model.PostDCP, FilePath: "answer-keys/answer_key_DCP.pdf"})
	if err == nil {
		t.Error("answer key for DCP was stored")
	}
}

func testOMRAndResults(t *testing.T, b store.Backend) {
	ctx := context.Background()
	mustCreate(t, b, Student("R1", model.PostDCO))

	if err := b.SetStudentOMR(ctx, "R1", "omr/omr_R1.jpg"); err != nil {
		t.Fatalf("SetStudentOMR: %v", err)
	}
	r := &model.ResultSummary{Correct: 80, Wrong: 10, Unattempted: 10, FinalScore: 155, TotalQuestions: 100, Percentage: 77.5}
	if err := b.SetStudentResult(ctx, "R1", r); err != nil {
		t.Fatalf("SetStudentResult: %v", err)
	}
	got, _ := b.GetStudent(ctx, "R1")
	if got.OMRPath != "omr/omr_R1.jpg" {
		t.Errorf("OMRPath = %q", got.OMRPath)
	}
	if got.Result == nil || *got.Result != *r {
		t.Errorf("Result = %+v, want %+v", got.Result, r)
	}

	if err := b.SetStudentResult(ctx, "R1", nil); err != nil {
		t.Fatalf("unset result: %v", err)
	}
	if err := b.SetStudentResult(ctx, "R1", nil); err != nil {
		t.Fatalf("unset result twice: %v", err)
	}
	if err := b.SetStudentOMR(ctx, "R1", ""); err != nil {
		t.Fatalf("unset OMR: %v", err)
	}
	got, _ = b.GetStudent(ctx, "R1")
	if got.HasResults() || got.HasOMR() {
		t.Errorf("expected unset fields, got %+v", got)
	}

	if err := b.SetStudentOMR(ctx, "NOPE", "x"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("SetStudentOMR missing: expected ErrNotFound, got %v", err)
	}
	if err := b.SetStudentResult(ctx, "NOPE", r); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("SetStudentResult missing: expected ErrNotFound, got %v", err)
	}
}

func testCountStudents(t *testing.T, b store.Backend) {
	ctx := context.Background()
	mustCreate(t, b, Student("A1", model.PostDCO))
	mustCreate(t, b, Student("A2", model.PostDCO))
	mustCreate(t, b, Student("B1", model.PostWLO))
	_ = b.SetStudentOMR(ctx, "A1", "omr/omr_A1.png")
	_ = b.SetStudentResult(ctx, "B1", &model.ResultSummary{Correct: 100, FinalScore: 200, TotalQuestions: 100, Percentage: 100})

	tests := []struct {
		name   string
		filter model.StudentFilter
		want   int
	}{
		{"all", model.StudentFilter{}, 3},
		{"by post", model.StudentFilter{Post: model.PostDCO}, 2},
		{"with omr", model.StudentFilter{WithOMR: true}, 1},
		{"with results", model.StudentFilter{WithResults: true}, 1},
		{"post and results", model.StudentFilter{Post: model.PostDCO, WithResults: true}, 0},
		{"active", model.StudentFilter{ActiveOnly: true}, 3},
	}
	for _, tt := range tests {
		got, err := b.CountStudents(ctx, tt.filter)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

func testActivateCohort(t *testing.T, b store.Backend) {
	ctx := context.Background()
	dayStart := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	old := Student("OLD", model.PostDCO)
	old.CreatedAt = dayStart.Add(-2 * time.Hour)
	today := Student("NEW", model.PostDCO)
	today.CreatedAt = dayStart.Add(9 * time.Hour)
	today.Active = false
	mustCreate(t, b, old)
	mustCreate(t, b, today)

	deactivated, activated, err := b.ActivateCohort(ctx, dayStart, dayEnd)
	if err != nil {
		t.Fatalf("ActivateCohort: %v", err)
	}
	if deactivated != 1 || activated != 1 {
		t.Errorf("deactivated=%d activated=%d, want 1 and 1", deactivated, activated)
	}
	if got, _ := b.GetStudent(ctx, "OLD"); got.Active {
		t.Error("OLD should be inactive")
	}
	if got, _ := b.GetStudent(ctx, "NEW"); !got.Active {
		t.Error("NEW should be active")
	}
}

func testAnswerKeys(t *testing.T, b store.Backend) {
	ctx := context.Background()
	if k, err := b.GetAnswerKey(ctx, model.PostDCO); err != nil || k != nil {
		t.Fatalf("GetAnswerKey on empty store: %v, %v", k, err)
	}

	for _, p := range []model.Post{model.PostDCO, model.PostSFO} {
		err := b.UpsertAnswerKey(ctx, model.AnswerKey{Post: p, FilePath: "answer-keys/answer_key_" + string(p) + ".pdf", FileName: "key.pdf"})
		if err != nil {
			t.Fatalf("UpsertAnswerKey(%s): %v", p, err)
		}
	}
	err := b.UpsertAnswerKey(ctx, model.AnswerKey{Post: model.PostDCO, FilePath: "answer-keys/answer_key_DCO.png", FileName: "new.png", Published: true})
	if err != nil {
		t.Fatalf("replace answer key: %v", err)
	}
	k, _ := b.GetAnswerKey(ctx, model.PostDCO)
	if k == nil || k.FileName != "new.png" || !k.Published {
		t.Errorf("replacement not applied: %+v", k)
	}

	published, _ := b.ListAnswerKeys(ctx, true)
	if len(published) != 1 {
		t.Errorf("expected 1 published key, got %d", len(published))
	}
	n, err := b.SetAllAnswerKeysPublished(ctx, true)
	if err != nil || n != 2 {
		t.Errorf("SetAllAnswerKeysPublished = %d, %v", n, err)
	}
	if err := b.SetAnswerKeyPublished(ctx, model.PostSFO, false); err != nil {
		t.Errorf("SetAnswerKeyPublished: %v", err)
	}
	if err := b.SetAnswerKeyPublished(ctx, model.PostWLO, true); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("publish missing key: expected ErrNotFound, got %v", err)
	}
	all, _ := b.ListAnswerKeys(ctx, false)
	if len(all) != 2 || all[0].Post != model.PostDCO {
		t.Errorf("unexpected keys: %+v", all)
	}

	if err := b.DeleteAnswerKey(ctx, model.PostSFO); err != nil {
		t.Fatalf("DeleteAnswerKey: %v", err)
	}
	if err := b.DeleteAnswerKey(ctx, model.PostSFO); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second DeleteAnswerKey: expected ErrNotFound, got %v", err)
	}
}

func testFlags(t *testing.T, b store.Backend) {
	ctx := context.Background()
	v, err := b.GetFlag(ctx, model.FlagOMRPublic)
	if err != nil || v {
		t.Fatalf("missing flag must read false: %v, %v", v, err)
	}
	if err := b.SetFlag(ctx, model.FlagOMRPublic, true); err != nil {
		t.Fatalf("SetFlag: %v", err)
	}
	if v, _ := b.GetFlag(ctx, model.FlagOMRPublic); !v {
		t.Error("expected flag true")
	}
	if err := b.SetFlag(ctx, model.FlagOMRPublic, false); err != nil {
		t.Fatalf("SetFlag false: %v", err)
	}
	if v, _ := b.GetFlag(ctx, model.FlagOMRPublic); v {
		t.Error("expected flag false")
	}
	if v, _ := b.GetFlag(ctx, model.FlagResultsPublic); v {
		t.Error("unrelated flag changed")
	}
}

func testUsersAndSessions(t *testing.T, b store.Backend) {
	ctx := context.Background()
	if n, _ := b.UserCount(ctx); n != 0 {
		t.Fatalf("expected no users, got %d", n)
	}
	u := model.User{Username: "admin", DisplayName: "Administrator", PasswordHash: "hash", Active: true}
	if err := b.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := b.CreateUser(ctx, u); !errors.Is(err, model.ErrDuplicate) {
		t.Errorf("duplicate CreateUser: expected ErrDuplicate, got %v", err)
	}
	got, err := b.GetUser(ctx, "admin")
	if err != nil || got == nil || got.PasswordHash != "hash" || !got.Active {
		t.Fatalf("GetUser: %+v, %v", got, err)
	}
	if err := b.ToggleUserActive(ctx, "admin"); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	if got, _ := b.GetUser(ctx, "admin"); got.Active {
		t.Error("expected inactive user")
	}

	token, err := b.CreateAuthSession(ctx, "admin")
	if err != nil || len(token) != 64 {
		t.Fatalf("CreateAuthSession: %q, %v", token, err)
	}
	sess, err := b.GetAuthSession(ctx, token)
	if err != nil || sess == nil || sess.Username != "admin" {
		t.Fatalf("GetAuthSession: %+v, %v", sess, err)
	}
	if err := b.DeleteAuthSession(ctx, token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	if sess, _ := b.GetAuthSession(ctx, token); sess != nil {
		t.Error("session still present after delete")
	}
	if err := b.CleanupExpiredSessions(ctx); err != nil {
		t.Errorf("CleanupExpiredSessions: %v", err)
	}

	users, _ := b.ListUsers(ctx)
	if len(users) != 1 {
		t.Errorf("expected 1 user, got %d", len(users))
	}
	if err := b.DeleteUser(ctx, "admin"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if n, _ := b.UserCount(ctx); n != 0 {
		t.Errorf("expected no users after delete, got %d", n)
	}
}
