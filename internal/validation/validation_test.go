package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/resultportal/internal/model"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{"slashes", "15/08/1998", time.Date(1998, 8, 15, 0, 0, 0, 0, time.UTC), false},
		{"dashes", "01-01-2000", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"single digits", "5/3/2001", time.Date(2001, 3, 5, 0, 0, 0, 0, time.UTC), false},
		{"leap day", "29/02/2020", time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC), false},
		{"serial", "36526", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"serial with time", "36526.75", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"not a leap year", "29/02/2021", time.Time{}, true},
		{"thirtieth of february", "30/02/2000", time.Time{}, true},
		{"month out of range", "01/13/2000", time.Time{}, true},
		{"day zero", "00/01/2000", time.Time{}, true},
		{"too old", "01/01/1899", time.Time{}, true},
		{"two parts", "01/2000", time.Time{}, true},
		{"four parts", "01/01/20/00", time.Time{}, true},
		{"letters", "aa/bb/cccc", time.Time{}, true},
		{"empty", "  ", time.Time{}, true},
		{"text", "yesterday", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate("dob", tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDate(%q) = %v, want error", tt.in, got)
				}
				var ve *model.ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("expected ValidationError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q): %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2000, 1, 1, 18, 30, 0, 0, time.UTC)
	if !SameDay(a, b) {
		t.Error("expected same day")
	}
	if SameDay(a, a.AddDate(0, 0, 1)) {
		t.Error("expected different days")
	}
	if got := FormatDate(a); got != "01/01/2000" {
		t.Errorf("FormatDate = %q", got)
	}
}

func TestMobile(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"9876543210", "9876543210", false},
		{" 98765 43210 ", "9876543210", false},
		{"98765-43210", "9876543210", false},
		{"9876543210.0", "9876543210", false},
		{"9.87654321E9", "9876543210", false},
		{"987654321", "", true},
		{"+91 9876543210", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := Mobile("mobile", tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Mobile(%q) = %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Mobile(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Mobile(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEntryKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"7_ROLL123.jpg", "ROLL123"},
		{"roll123.PNG", "ROLL123"},
		{"scans/batch_2/12_ab45.pdf", "AB45"},
		{`scans\a_b_c9.jpeg`, "C9"},
		{" r1 .jpg", "R1"},
	}
	for _, tt := range tests {
		if got := EntryKey(tt.in); got != tt.want {
			t.Errorf("EntryKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScanExt(t *testing.T) {
	for _, name := range []string{"a.jpg", "a.JPEG", "a.png", "a.pdf"} {
		if _, err := ScanExt(name); err != nil {
			t.Errorf("ScanExt(%q): %v", name, err)
		}
	}
	for _, name := range []string{"a.gif", "a", "a.jpg.exe"} {
		if _, err := ScanExt(name); err == nil {
			t.Errorf("ScanExt(%q) should fail", name)
		}
	}
}

func TestCountAndFloat(t *testing.T) {
	if n, err := Count("correct", ""); err != nil || n != 0 {
		t.Errorf("Count(empty) = %d, %v", n, err)
	}
	if n, err := Count("correct", "80.0"); err != nil || n != 80 {
		t.Errorf("Count(80.0) = %d, %v", n, err)
	}
	if _, err := Count("correct", "8.5"); err == nil {
		t.Error("Count(8.5) should fail")
	}
	f, err := OptionalFloat("finalScore", "")
	if err != nil || f != nil {
		t.Errorf("OptionalFloat(empty) = %v, %v", f, err)
	}
	f, err = OptionalFloat("finalScore", "-12.5")
	if err != nil || f == nil || *f != -12.5 {
		t.Errorf("OptionalFloat(-12.5) = %v, %v", f, err)
	}
	if _, err := OptionalFloat("finalScore", "abc"); err == nil {
		t.Error("OptionalFloat(abc) should fail")
	}
}

func TestStudent(t *testing.T) {
	s, err := Student(StudentInput{
		RollNo: " ab12 ",
		Name:   " Asha ",
		DOB:    "15/08/1998",
		Mobile: "9876543210",
		Post:   "dco",
	})
	if err != nil {
		t.Fatalf("Student: %v", err)
	}
	if s.RollNo != "AB12" || s.Name != "Asha" || s.Post != model.PostDCO || !s.Active {
		t.Errorf("unexpected student: %+v", s)
	}

	tests := []struct {
		name  string
		in    StudentInput
		field string
	}{
		{"missing name", StudentInput{RollNo: "A1", DOB: "01/01/2000", Mobile: "9876543210", Post: "DCO"}, "name"},
		{"bad post", StudentInput{RollNo: "A1", Name: "x", DOB: "01/01/2000", Mobile: "9876543210", Post: "XYZ"}, "postApplied"},
		{"bad dob", StudentInput{RollNo: "A1", Name: "x", DOB: "29/02/2021", Mobile: "9876543210", Post: "DCO"}, "dob"},
		{"slash in roll", StudentInput{RollNo: "A/1", Name: "x", DOB: "01/01/2000", Mobile: "9876543210", Post: "DCO"}, "rollNo"},
		{"underscore in roll", StudentInput{RollNo: "A_1", Name: "x", DOB: "01/01/2000", Mobile: "9876543210", Post: "DCO"}, "rollNo"},
		{"leading dash", StudentInput{RollNo: "-A1", Name: "x", DOB: "01/01/2000", Mobile: "9876543210", Post: "DCO"}, "rollNo"},
		{"bad mobile", StudentInput{RollNo: "A1", Name: "x", DOB: "01/01/2000", Mobile: "12345", Post: "DCO"}, "mobile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Student(tt.in)
			var ve *model.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestAnswerKeyPost(t *testing.T) {
	if p, err := AnswerKeyPost(" sfo "); err != nil || p != model.PostSFO {
		t.Errorf("AnswerKeyPost(sfo) = %q, %v", p, err)
	}
	if _, err := AnswerKeyPost("DCP"); err == nil {
		t.Error("DCP must not carry an answer key")
	}
}
