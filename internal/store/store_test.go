package store_test

import (
	"context"
	"testing"

	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/store"
	"github.com/pavelanni/resultportal/internal/store/storetest"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBackendContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend { return newTestStore(t) })
}

func TestPostCheckConstraint(t *testing.T) {
	s := newTestStore(t)
	st := storetest.Student("R1", model.Post("XYZ"))
	if err := s.CreateStudent(context.Background(), st); err == nil {
		t.Fatal("expected CHECK constraint failure for unknown post")
	}
	err := s.UpsertAnswerKey(context.Background(), model.AnswerKey{Post: model.PostDCP, FilePath: "x"})
	if err == nil {
		t.Fatal("DCP must not be accepted as an answer key post")
	}
}

func TestExportResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.CreateStudent(ctx, storetest.Student("E1", model.PostDCO)); err != nil {
		t.Fatal(err)
	}
	r := &model.ResultSummary{Correct: 80, Wrong: 10, Unattempted: 10, FinalScore: 155, TotalQuestions: 100, Percentage: 77.5}
	if err := s.SetStudentResult(ctx, "E1", r); err != nil {
		t.Fatal(err)
	}
	out, err := store.ExportResults(ctx, s)
	if err != nil {
		t.Fatalf("ExportResults: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out))
	}
	if out[0].DOB != "1998-08-15" || out[0].Result == nil || out[0].Result.Percentage != 77.5 {
		t.Errorf("unexpected export: %+v", out[0])
	}
}
