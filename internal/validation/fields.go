package validation

import (
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/pavelanni/resultportal/internal/model"
)

// RollNo trims and upper-cases a roll number.
func RollNo(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// DigitsOnly strips every non-digit rune.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Mobile coerces a spreadsheet or form value into a 10-digit string.
// Numeric cells such as "9876543210.0" or "9.87654321E9" are accepted.
func Mobile(field, raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", model.Invalid(field, "is required")
	}
	if strings.ContainsAny(v, ".eE") {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f == math.Trunc(f) && f > 0 {
			v = strconv.FormatFloat(f, 'f', 0, 64)
		}
	}
	digits := DigitsOnly(v)
	if len(digits) != 10 {
		return "", model.Invalid(field, "must be exactly 10 digits")
	}
	return digits, nil
}

// AllowedScanExts are the extensions accepted for OMR sheets and answer keys.
var AllowedScanExts = []string{".jpg", ".jpeg", ".png", ".pdf"}

// ScanExt returns the lower-cased extension of name if it is allowed.
func ScanExt(name string) (string, error) {
	ext := strings.ToLower(path.Ext(name))
	for _, a := range AllowedScanExts {
		if ext == a {
			return ext, nil
		}
	}
	return "", model.Invalid("file", "only JPG, PNG and PDF files are allowed")
}

// EntryKey derives the roll number from an archive entry name: the file
// stem, or the part after its last underscore ("7_ROLL123.jpg" gives
// "ROLL123").
func EntryKey(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))
	if i := strings.LastIndex(stem, "_"); i >= 0 {
		stem = stem[i+1:]
	}
	return RollNo(stem)
}

// Count parses an answer count. Empty means zero.
func Count(field, raw string) (int, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || f != math.Trunc(f) {
			return 0, model.Invalid(field, "must be a whole number")
		}
		if math.Abs(f) > 1<<53 {
			return 0, model.Invalid(field, "is out of range")
		}
		n = int(f)
	}
	return n, nil
}

// OptionalFloat parses a score field. Empty yields nil.
func OptionalFloat(field, raw string) (*float64, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, model.Invalid(field, "must be a number")
	}
	return &f, nil
}
