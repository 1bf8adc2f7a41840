// Package sheet turns uploaded spreadsheets into rows keyed by
// canonical column names.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/resultportal/internal/model"
)

// Canonical column keys.
const (
	KeyRollNo      = "rollno"
	KeyName        = "name"
	KeyDOB         = "dob"
	KeyMobile      = "mobile"
	KeyPost        = "postapplied"
	KeyCorrect     = "correctanswers"
	KeyWrong       = "wronganswers"
	KeyUnattempted = "unattempted"
	KeyFinalScore  = "finalscore"
	KeyPercentage  = "percentage"
)

var aliases = map[string]string{
	"rollnumber":   KeyRollNo,
	"roll":         KeyRollNo,
	"dateofbirth":  KeyDOB,
	"birthdate":    KeyDOB,
	"mobileno":     KeyMobile,
	"mobilenumber": KeyMobile,
	"phone":        KeyMobile,
	"post":         KeyPost,
	"postcode":     KeyPost,
	"correct":      KeyCorrect,
	"wrong":        KeyWrong,
	"score":        KeyFinalScore,
}

// Row is one data row. Line is the 1-based line in the source sheet.
type Row struct {
	Line   int
	Fields map[string]string
}

// Get returns the trimmed cell for a canonical key.
func (r Row) Get(key string) string {
	return strings.TrimSpace(r.Fields[key])
}

// ErrEmpty is returned when a sheet has no header row.
var ErrEmpty = errors.New("spreadsheet is empty")

// Read parses r according to the extension of name.
func Read(name string, r io.Reader) ([]Row, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx", ".xlsm", ".xltx":
		return ReadXLSX(r)
	case ".csv":
		return ReadCSV(r)
	default:
		return nil, model.Invalid("file", "only .xlsx and .csv spreadsheets are supported")
	}
}

// ReadXLSX parses the first worksheet. Cells are read raw so date cells
// arrive as serial numbers.
func ReadXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, model.Invalid("file", "cannot read spreadsheet: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}
	records, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return toRows(records)
}

// ReadCSV parses a comma separated file with a header line.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, model.Invalid("file", "cannot read CSV: %v", err)
	}
	return toRows(records)
}

func toRows(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = Canonical(h)
	}

	var rows []Row
	for i, rec := range records[1:] {
		fields := make(map[string]string, len(header))
		blank := true
		for j, cell := range rec {
			if j >= len(header) || header[j] == "" {
				continue
			}
			if strings.TrimSpace(cell) != "" {
				blank = false
			}
			fields[header[j]] = cell
		}
		if blank {
			continue
		}
		rows = append(rows, Row{Line: i + 2, Fields: fields})
	}
	return rows, nil
}

// Canonical normalizes a header cell: lower case with spaces, dashes,
// underscores and dots removed, then resolved through known aliases.
func Canonical(h string) string {
	h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		switch r {
		case ' ', '_', '-', '.':
			continue
		}
		b.WriteRune(r)
	}
	key := b.String()
	if a, ok := aliases[key]; ok {
		return a
	}
	return key
}
