package validation

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/resultportal/internal/model"
)

// DateLayout is how dates are shown back to users.
const DateLayout = "02/01/2006"

// ParseDate parses a date of birth given as DD/MM/YYYY, DD-MM-YYYY or a
// spreadsheet serial number. The result is midnight UTC.
func ParseDate(field, raw string) (time.Time, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return time.Time{}, model.Invalid(field, "is required")
	}

	var sep string
	switch {
	case strings.Contains(v, "/"):
		sep = "/"
	case strings.Contains(v, "-"):
		sep = "-"
	default:
		serial, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return time.Time{}, model.Invalid(field, "must be in DD/MM/YYYY format")
		}
		return fromSerial(field, serial)
	}

	parts := strings.Split(v, sep)
	if len(parts) != 3 {
		return time.Time{}, model.Invalid(field, "must be in DD/MM/YYYY format")
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return time.Time{}, model.Invalid(field, "must be in DD/MM/YYYY format")
		}
		nums[i] = n
	}
	return buildDate(field, nums[2], nums[1], nums[0])
}

func fromSerial(field string, serial float64) (time.Time, error) {
	if serial < 1 {
		return time.Time{}, model.Invalid(field, "is not a valid date")
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, model.Invalid(field, "is not a valid date")
	}
	return buildDate(field, t.Year(), int(t.Month()), t.Day())
}

func buildDate(field string, year, month, day int) (time.Time, error) {
	if day < 1 || day > 31 || month < 1 || month > 12 || year < 1900 {
		return time.Time{}, model.Invalid(field, "is not a valid date")
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 30/02 into March.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, model.Invalid(field, "is not a valid date")
	}
	return t, nil
}

// SameDay reports whether a and b fall on the same calendar date in UTC.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// FormatDate renders a stored date as DD/MM/YYYY.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateLayout)
}
