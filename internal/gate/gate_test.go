package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/resultportal/internal/flags"
	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/store"
)

type fixture struct {
	gate  *Gate
	store *store.Store
	flags *flags.Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	fl := flags.New(s)
	return &fixture{gate: New(s, fl, opts...), store: s, flags: fl}
}

func (f *fixture) add(t *testing.T, rollNo string, omr bool, result bool, active bool) {
	t.Helper()
	ctx := context.Background()
	err := f.store.CreateStudent(ctx, model.Student{
		RollNo:    rollNo,
		Name:      "Student " + rollNo,
		DOB:       time.Date(1998, 8, 15, 0, 0, 0, 0, time.UTC),
		Mobile:    "9876543210",
		Post:      model.PostDCO,
		Active:    active,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	if omr {
		if err := f.store.SetStudentOMR(ctx, rollNo, "omr/omr_"+rollNo+".jpg"); err != nil {
			t.Fatal(err)
		}
	}
	if result {
		r := &model.ResultSummary{Correct: 80, Wrong: 10, Unattempted: 10, FinalScore: 155, TotalQuestions: 100, Percentage: 77.5}
		if err := f.store.SetStudentResult(ctx, rollNo, r); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	f.add(t, "R1", true, true, true)

	tests := []struct {
		name    string
		claim   Claim
		wantErr error
	}{
		{"dob slash", Claim{RollNo: "r1", DOB: "15/08/1998"}, nil},
		{"dob dash", Claim{RollNo: " R1 ", DOB: "15-08-1998"}, nil},
		{"mobile formatted", Claim{RollNo: "R1", Mobile: "98765-43210"}, nil},
		{"dob wins over mobile", Claim{RollNo: "R1", DOB: "15/08/1998", Mobile: "0000000000"}, nil},
		{"wrong dob", Claim{RollNo: "R1", DOB: "16/08/1998"}, ErrAuthFailed},
		{"wrong dob right mobile", Claim{RollNo: "R1", DOB: "16/08/1998", Mobile: "9876543210"}, ErrAuthFailed},
		{"wrong mobile", Claim{RollNo: "R1", Mobile: "9876543211"}, ErrAuthFailed},
		{"unknown roll", Claim{RollNo: "NOPE", DOB: "15/08/1998"}, ErrAuthFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := f.gate.Authenticate(context.Background(), tt.claim)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate: %v", err)
			}
			if st.RollNo != "R1" {
				t.Errorf("RollNo = %q", st.RollNo)
			}
		})
	}
}

func TestAuthFailureIsIdentical(t *testing.T) {
	f := newFixture(t)
	f.add(t, "R1", true, true, true)
	ctx := context.Background()

	_, wrongDOB := f.gate.Authenticate(ctx, Claim{RollNo: "R1", DOB: "01/01/2000"})
	_, unknown := f.gate.Authenticate(ctx, Claim{RollNo: "R999", DOB: "01/01/2000"})
	if wrongDOB == nil || unknown == nil {
		t.Fatal("expected both attempts to fail")
	}
	if wrongDOB.Error() != unknown.Error() {
		t.Errorf("messages differ: %q vs %q", wrongDOB, unknown)
	}
}

func TestAuthenticateMalformed(t *testing.T) {
	f := newFixture(t)
	claims := []Claim{
		{RollNo: "", DOB: "15/08/1998"},
		{RollNo: "R1"},
		{RollNo: "R1", DOB: "30/02/1998"},
		{RollNo: "R1", Mobile: "abc"},
	}
	for _, c := range claims {
		_, err := f.gate.Authenticate(context.Background(), c)
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Authenticate(%+v) = %v, want ValidationError", c, err)
		}
	}
}

func TestVisibility(t *testing.T) {
	tests := []struct {
		name          string
		omr, result   bool
		omrPublic     bool
		resultsPublic bool
		wantOMR       bool
		wantResults   bool
		wantErr       error
	}{
		{"nothing stored", false, false, true, true, false, false, ErrNoData},
		{"omr hidden, no results", true, false, false, true, false, false, ErrNoData},
		{"both hidden", true, true, false, false, false, false, ErrNoData},
		{"omr only", true, true, true, false, true, false, nil},
		{"results only", true, true, false, true, false, true, nil},
		{"everything", true, true, true, true, true, true, nil},
		{"results public without results", true, false, false, true, false, false, ErrNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.add(t, "R1", tt.omr, tt.result, true)
			if err := f.flags.SetOMRPublic(ctx, tt.omrPublic); err != nil {
				t.Fatal(err)
			}
			if err := f.flags.SetResultsPublic(ctx, tt.resultsPublic); err != nil {
				t.Fatal(err)
			}

			v, err := f.gate.Login(ctx, Claim{RollNo: "R1", DOB: "15/08/1998"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if v.ShowOMR != tt.wantOMR || v.ShowResults != tt.wantResults {
				t.Errorf("view = omr:%v results:%v, want omr:%v results:%v", v.ShowOMR, v.ShowResults, tt.wantOMR, tt.wantResults)
			}
			if tt.wantResults && (v.Breakdown == nil || v.Breakdown.OutOf != 200 || v.Breakdown.Percentage != 77.5) {
				t.Errorf("breakdown = %+v", v.Breakdown)
			}
		})
	}
}

func TestRequireActive(t *testing.T) {
	f := newFixture(t, RequireActive(true))
	ctx := context.Background()
	f.add(t, "R1", true, true, false)
	f.flags.SetOMRPublic(ctx, true)
	f.flags.SetResultsPublic(ctx, true)

	for _, c := range []Claim{
		{RollNo: "R1", DOB: "15/08/1998"},
		{RollNo: "R1", Mobile: "9876543210"},
	} {
		if _, err := f.gate.Login(ctx, c); !errors.Is(err, ErrNoData) {
			t.Errorf("Login(%+v) = %v, want ErrNoData", c, err)
		}
	}
	if _, err := f.gate.OMRFile(ctx, "R1"); !errors.Is(err, ErrNoData) {
		t.Errorf("OMRFile = %v, want ErrNoData", err)
	}
}

func TestOMRFileRechecksFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "R1", true, false, true)
	f.flags.SetOMRPublic(ctx, true)

	path, err := f.gate.OMRFile(ctx, "r1")
	if err != nil {
		t.Fatalf("OMRFile: %v", err)
	}
	if path != "omr/omr_R1.jpg" {
		t.Errorf("path = %q", path)
	}

	f.flags.SetOMRPublic(ctx, false)
	if _, err := f.gate.OMRFile(ctx, "R1"); !errors.Is(err, ErrNoData) {
		t.Errorf("after hiding: err = %v, want ErrNoData", err)
	}
	if _, err := f.gate.Refresh(ctx, "R1"); !errors.Is(err, ErrNoData) {
		t.Errorf("Refresh after hiding: err = %v, want ErrNoData", err)
	}
	if _, err := f.gate.OMRFile(ctx, "GHOST"); !errors.Is(err, ErrNoData) {
		t.Errorf("unknown roll: err = %v, want ErrNoData", err)
	}
}
