package model

import "time"

// ResultsExport is the top-level JSON structure for result export.
type ResultsExport struct {
	GeneratedAt    time.Time       `json:"generated_at"`
	TotalQuestions int             `json:"total_questions"`
	MaxScore       float64         `json:"max_score"`
	Flags          Flags           `json:"flags"`
	Results        []StudentResult `json:"results"`
}

// StudentResult holds one student's published data for export.
type StudentResult struct {
	RollNo    string         `json:"roll_no"`
	Name      string         `json:"name"`
	Post      Post           `json:"post"`
	DOB       string         `json:"dob"`
	Active    bool           `json:"active"`
	HasOMR    bool           `json:"has_omr"`
	Result    *ResultSummary `json:"result,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
