package model

// MaxReportErrors caps the messages kept in a Report.
const MaxReportErrors = 10

// Report summarizes a bulk run. Counts are exact; Errors keeps the first
// MaxReportErrors messages.
type Report struct {
	SuccessCount int      `json:"successCount"`
	ErrorCount   int      `json:"errorCount"`
	Errors       []string `json:"errors"`
}

// NewReport returns an empty report whose Errors encodes as [] in JSON.
func NewReport() Report {
	return Report{Errors: []string{}}
}

// Succeed records one processed item.
func (r *Report) Succeed() {
	r.SuccessCount++
}

// Fail records one failed item.
func (r *Report) Fail(msg string) {
	r.ErrorCount++
	if len(r.Errors) < MaxReportErrors {
		r.Errors = append(r.Errors, msg)
	}
}

// Total returns the number of items seen.
func (r *Report) Total() int {
	return r.SuccessCount + r.ErrorCount
}
