package sheet

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/resultportal/internal/model"
)

func buildXLSX(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf
}

func TestReadXLSX(t *testing.T) {
	buf := buildXLSX(t, [][]any{
		{"Roll No", "Name", "DOB", "Mobile", "postApplied"},
		{"r1", "Asha", "15/08/1998", 9876543210, "DCO"},
		{"r2", "Ravi", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), "9123456780", "SFO"},
	})
	rows, err := Read("students.xlsx", buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Get(KeyRollNo) != "r1" || rows[0].Get(KeyPost) != "DCO" {
		t.Errorf("row 1 = %+v", rows[0].Fields)
	}
	if rows[0].Get(KeyMobile) != "9876543210" {
		t.Errorf("mobile = %q", rows[0].Get(KeyMobile))
	}
	if rows[1].Line != 3 {
		t.Errorf("line = %d, want 3", rows[1].Line)
	}
	if got := rows[1].Get(KeyDOB); got != "36526" {
		t.Errorf("date cell = %q, want serial 36526", got)
	}
}

func TestReadCSV(t *testing.T) {
	in := "rollNumber,correct_answers,Wrong Answers,unattempted,finalScore\n" +
		"R1,80,10,10,155\n" +
		",,,,\n" +
		"R2,70,20,10\n"
	rows, err := Read("results.CSV", strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Get(KeyCorrect) != "80" || rows[0].Get(KeyWrong) != "10" || rows[0].Get(KeyFinalScore) != "155" {
		t.Errorf("row 1 = %+v", rows[0].Fields)
	}
	if rows[1].Get(KeyFinalScore) != "" {
		t.Errorf("short row should have no final score, got %q", rows[1].Get(KeyFinalScore))
	}
}

func TestReadErrors(t *testing.T) {
	var ve *model.ValidationError
	if _, err := Read("data.txt", strings.NewReader("x")); !errors.As(err, &ve) {
		t.Errorf("unsupported extension: expected ValidationError, got %v", err)
	}
	if _, err := Read("data.xlsx", strings.NewReader("not a zip")); !errors.As(err, &ve) {
		t.Errorf("corrupt xlsx: expected ValidationError, got %v", err)
	}
	if _, err := Read("data.csv", strings.NewReader("")); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty csv: expected ErrEmpty, got %v", err)
	}
}

func TestCanonical(t *testing.T) {
	tests := map[string]string{
		"Roll No":         KeyRollNo,
		"roll_number":     KeyRollNo,
		"Date of Birth":   KeyDOB,
		"Mobile Number":   KeyMobile,
		"Post Applied":    KeyPost,
		"Final Score":     KeyFinalScore,
		"\ufeffrollNo":    KeyRollNo,
		"Percentage":      KeyPercentage,
		"unknown column!": "unknowncolumn!",
	}
	for in, want := range tests {
		if got := Canonical(in); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}
