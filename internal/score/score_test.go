package score

import (
	"errors"
	"math"
	"testing"

	"github.com/pavelanni/resultportal/internal/model"
)

func f(v float64) *float64 { return &v }

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		wantPct float64
		wantFin float64
		wantErr bool
	}{
		{"derived percentage", Input{Correct: 80, Wrong: 10, Unattempted: 10, FinalScore: f(155)}, 77.5, 155, false},
		{"supplied percentage", Input{Correct: 80, Wrong: 10, Unattempted: 10, FinalScore: f(155), Percentage: f(70.456)}, 70.46, 155, false},
		{"negative score clamps", Input{Correct: 0, Wrong: 40, Unattempted: 60, FinalScore: f(-20)}, 0, -20, false},
		{"rounds final score", Input{Correct: 50, Wrong: 50, Unattempted: 0, FinalScore: f(75.126)}, 37.56, 75.13, false},
		{"sum mismatch", Input{Correct: 80, Wrong: 10, Unattempted: 5, FinalScore: f(155)}, 0, 0, true},
		{"negative count", Input{Correct: 110, Wrong: -10, Unattempted: 0, FinalScore: f(155)}, 0, 0, true},
		{"counts wrap to total", Input{Correct: math.MaxInt, Wrong: math.MaxInt, Unattempted: 102, FinalScore: f(150)}, 0, 0, true},
		{"missing final score", Input{Correct: 80, Wrong: 10, Unattempted: 10}, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DefaultScheme.Normalize(tt.in)
			if tt.wantErr {
				var ve *model.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if got.Percentage != tt.wantPct {
				t.Errorf("percentage = %v, want %v", got.Percentage, tt.wantPct)
			}
			if got.FinalScore != tt.wantFin {
				t.Errorf("finalScore = %v, want %v", got.FinalScore, tt.wantFin)
			}
			if got.TotalQuestions != 100 {
				t.Errorf("totalQuestions = %d, want 100", got.TotalQuestions)
			}
		})
	}
}

func TestCustomScheme(t *testing.T) {
	s := Scheme{TotalQuestions: 50, MaxScore: 100}
	got, err := s.Normalize(Input{Correct: 40, Wrong: 5, Unattempted: 5, FinalScore: f(78)})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Percentage != 78 || got.TotalQuestions != 50 {
		t.Errorf("unexpected summary: %+v", got)
	}
	if err := s.Validate(Input{Correct: 80, Wrong: 10, Unattempted: 10, FinalScore: f(1)}); err == nil {
		t.Error("100 answers must not fit a 50 question paper")
	}
}

func TestBreakdown(t *testing.T) {
	r := model.ResultSummary{Correct: 80, Wrong: 10, Unattempted: 10, FinalScore: 155, TotalQuestions: 100, Percentage: 77.5}
	b := DefaultScheme.Breakdown(r)
	if b.OutOf != 200 || b.Score != 155 || b.Percentage != 77.5 || b.Correct != 80 {
		t.Errorf("unexpected breakdown: %+v", b)
	}
}
