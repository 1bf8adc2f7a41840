package cohort

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/store"
)

type recorder struct {
	start, end time.Time
	err        error
}

func (r *recorder) ActivateCohort(_ context.Context, start, end time.Time) (int64, int64, error) {
	r.start, r.end = start, end
	return 2, 1, r.err
}

func TestDayBounds(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	// 20:00 UTC on the 1st is 01:30 IST on the 2nd.
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	start, end := DayBounds(now, ist)
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, ist)
	if !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if !end.Equal(want.AddDate(0, 0, 1)) {
		t.Errorf("end = %v", end)
	}

	start, _ = DayBounds(now, time.UTC)
	if !start.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("UTC start = %v", start)
	}
}

func TestRun(t *testing.T) {
	r := &recorder{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res, err := Run(context.Background(), r, now, time.UTC)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Deactivated != 2 || res.Activated != 1 {
		t.Errorf("result = %+v", res)
	}
	if !r.start.Equal(res.DayStart) || !r.end.Equal(res.DayEnd) {
		t.Errorf("window passed %v..%v, reported %v..%v", r.start, r.end, res.DayStart, res.DayEnd)
	}

	r.err = errors.New("boom")
	if _, err := Run(context.Background(), r, now, time.UTC); err == nil {
		t.Error("expected error")
	}
}

func TestRunAgainstStore(t *testing.T) {
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	students := []model.Student{
		{RollNo: "OLD", CreatedAt: now.AddDate(0, 0, -1), Active: true},
		{RollNo: "TODAY", CreatedAt: now.Add(-time.Hour), Active: false},
	}
	for _, st := range students {
		st.Name = st.RollNo
		st.DOB = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
		st.Mobile = "9876543210"
		st.Post = model.PostDCO
		if err := s.CreateStudent(ctx, st); err != nil {
			t.Fatalf("CreateStudent: %v", err)
		}
	}

	res, err := Run(ctx, s, now, time.UTC)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Deactivated != 1 || res.Activated != 1 {
		t.Errorf("result = %+v", res)
	}
	old, _ := s.GetStudent(ctx, "OLD")
	today, _ := s.GetStudent(ctx, "TODAY")
	if old.Active || !today.Active {
		t.Errorf("OLD active=%v TODAY active=%v", old.Active, today.Active)
	}
}

func TestSchedulerSpec(t *testing.T) {
	if _, err := NewScheduler(&recorder{}, "not a spec", time.UTC); err == nil {
		t.Error("invalid spec accepted")
	}
	s, err := NewScheduler(&recorder{}, "5 0 * * *", time.UTC)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.Start()
	next := s.Next()
	s.Stop(context.Background())
	if next.IsZero() || next.Hour() != 0 || next.Minute() != 5 {
		t.Errorf("next run = %v", next)
	}
}
