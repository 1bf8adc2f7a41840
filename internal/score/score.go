// Package score validates and normalizes uploaded result data.
package score

import (
	"math"

	"github.com/pavelanni/resultportal/internal/model"
)

// Scheme describes the paper: how many questions it has and the top score.
type Scheme struct {
	TotalQuestions int
	MaxScore       float64
}

// DefaultScheme is a 100 question paper scored out of 200.
var DefaultScheme = Scheme{TotalQuestions: 100, MaxScore: 200}

// Input is a raw result as parsed from a form or spreadsheet row.
type Input struct {
	Correct     int
	Wrong       int
	Unattempted int
	FinalScore  *float64
	Percentage  *float64
}

// Validate checks the counts and the presence of a final score.
func (s Scheme) Validate(in Input) error {
	if in.Correct < 0 || in.Wrong < 0 || in.Unattempted < 0 {
		return model.Invalid("answers", "counts cannot be negative")
	}
	if in.Correct > s.TotalQuestions || in.Wrong > s.TotalQuestions || in.Unattempted > s.TotalQuestions {
		return model.Invalid("answers", "no count can exceed %d", s.TotalQuestions)
	}
	if total := in.Correct + in.Wrong + in.Unattempted; total != s.TotalQuestions {
		return model.Invalid("answers", "total answers (%d) must equal %d", total, s.TotalQuestions)
	}
	if in.FinalScore == nil {
		return model.Invalid("finalScore", "is required")
	}
	return nil
}

// Normalize validates in and builds the summary to persist. A missing
// percentage is derived from the final score and clamped at zero.
func (s Scheme) Normalize(in Input) (model.ResultSummary, error) {
	if err := s.Validate(in); err != nil {
		return model.ResultSummary{}, err
	}
	var pct float64
	if in.Percentage != nil {
		pct = *in.Percentage
	} else if s.MaxScore > 0 {
		pct = math.Max(0, *in.FinalScore/s.MaxScore*100)
	}
	return model.ResultSummary{
		Correct:        in.Correct,
		Wrong:          in.Wrong,
		Unattempted:    in.Unattempted,
		FinalScore:     round2(*in.FinalScore),
		TotalQuestions: s.TotalQuestions,
		Percentage:     round2(pct),
	}, nil
}

// Breakdown is the display form of a summary.
type Breakdown struct {
	Correct     int
	Wrong       int
	Unattempted int
	Score       float64
	Percentage  float64
	OutOf       float64
}

// Breakdown formats r for display. No marks are recomputed.
func (s Scheme) Breakdown(r model.ResultSummary) Breakdown {
	return Breakdown{
		Correct:     r.Correct,
		Wrong:       r.Wrong,
		Unattempted: r.Unattempted,
		Score:       r.FinalScore,
		Percentage:  r.Percentage,
		OutOf:       s.MaxScore,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
