package roster

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/pavelanni/resultportal/internal/archive"
	"github.com/pavelanni/resultportal/internal/filestore"
	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/scan"
	"github.com/pavelanni/resultportal/internal/score"
	"github.com/pavelanni/resultportal/internal/sheet"
	"github.com/pavelanni/resultportal/internal/store"
	"github.com/pavelanni/resultportal/internal/validation"
)

type fixture struct {
	svc   *Service
	store *store.Store
	root  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	root := t.TempDir()
	files, err := filestore.New(root)
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	svc := New(st, files, Config{Scheme: score.DefaultScheme, Scan: scan.DefaultOptions, MaxFileBytes: 1 << 20})
	return &fixture{svc: svc, store: st, root: root}
}

func (f *fixture) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(f.root, filepath.FromSlash(rel)))
	return err == nil
}

func studentRow(line int, roll, name, dob, mobile, post string) sheet.Row {
	return sheet.Row{Line: line, Fields: map[string]string{
		sheet.KeyRollNo: roll,
		sheet.KeyName:   name,
		sheet.KeyDOB:    dob,
		sheet.KeyMobile: mobile,
		sheet.KeyPost:   post,
	}}
}

func resultRow(roll, c, w, u, final string) sheet.Row {
	return sheet.Row{Line: 2, Fields: map[string]string{
		sheet.KeyRollNo:      roll,
		sheet.KeyCorrect:     c,
		sheet.KeyWrong:       w,
		sheet.KeyUnattempted: u,
		sheet.KeyFinalScore:  final,
	}}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(8, 8, color.White), imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func addStudent(t *testing.T, f *fixture, roll string) {
	t.Helper()
	_, err := f.svc.AddStudent(context.Background(), validation.StudentInput{
		RollNo: roll, Name: "Name " + roll, DOB: "15/08/1998", Mobile: "9876543210", Post: "DCO",
	})
	if err != nil {
		t.Fatalf("AddStudent(%s): %v", roll, err)
	}
}

func TestImportStudents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rows := []sheet.Row{
		studentRow(2, "r1", "Asha", "15/08/1998", "9876543210", "DCO"),
		studentRow(3, "R2", "Ravi", "01-01-2000", "9123456780.0", "sfo"),
		studentRow(4, "R3", "Meena", "36526", "9000000001", "DCP"),
		studentRow(5, "R4", "Nobody", "", "9000000002", "DCO"),
	}
	rep := f.svc.ImportStudents(ctx, rows)
	if rep.SuccessCount != 3 || rep.ErrorCount != 1 {
		t.Fatalf("report = %+v, want 3 success 1 error", rep)
	}
	if len(rep.Errors) != 1 || !strings.HasPrefix(rep.Errors[0], "R4: ") {
		t.Errorf("errors = %v", rep.Errors)
	}

	st, _ := f.store.GetStudent(ctx, "R1")
	if st == nil || st.Name != "Asha" || !st.Active {
		t.Fatalf("R1 = %+v", st)
	}
	st, _ = f.store.GetStudent(ctx, "R3")
	if st == nil || !st.DOB.Equal(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("serial date not converted: %+v", st)
	}
	st, _ = f.store.GetStudent(ctx, "R2")
	if st == nil || st.Mobile != "9123456780" || st.Post != model.PostSFO {
		t.Errorf("R2 = %+v", st)
	}
}

func TestImportStudentsSkipsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addStudent(t, f, "R1")

	rep := f.svc.ImportStudents(ctx, []sheet.Row{
		studentRow(2, "r1", "Changed", "01/01/2001", "9111111111", "WLO"),
		studentRow(3, "R5", "New", "01/01/2001", "9111111111", "WLO"),
	})
	if rep.SuccessCount != 1 || rep.ErrorCount != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if !strings.Contains(rep.Errors[0], "already exists") {
		t.Errorf("error = %q", rep.Errors[0])
	}
	st, _ := f.store.GetStudent(ctx, "R1")
	if st.Name != "Name R1" || st.Post != model.PostDCO {
		t.Errorf("duplicate row modified existing record: %+v", st)
	}
}

func TestImportStudentsRejectsUnsafeRollNo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rep := f.svc.ImportStudents(ctx, []sheet.Row{
		studentRow(2, "A/1", "Asha", "15/08/1998", "9876543210", "DCO"),
		studentRow(3, "2024-DCO-7", "Ravi", "15/08/1998", "9876543211", "DCO"),
	})
	if rep.SuccessCount != 1 || rep.ErrorCount != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if !strings.HasPrefix(rep.Errors[0], "A/1: rollNo: ") {
		t.Errorf("error = %q", rep.Errors[0])
	}
	if _, err := f.svc.AttachOMR(ctx, "2024-dco-7", "scan.png", pngBytes(t)); err != nil {
		t.Errorf("AttachOMR for dashed roll: %v", err)
	}
}

func TestReportKeepsFirstTenErrors(t *testing.T) {
	f := newFixture(t)
	var rows []sheet.Row
	for i := 0; i < 15; i++ {
		rows = append(rows, studentRow(i+2, fmt.Sprintf("B%d", i), "", "", "", ""))
	}
	rep := f.svc.ImportStudents(context.Background(), rows)
	if rep.ErrorCount != 15 || rep.SuccessCount != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if len(rep.Errors) != model.MaxReportErrors {
		t.Errorf("kept %d errors, want %d", len(rep.Errors), model.MaxReportErrors)
	}
	if !strings.HasPrefix(rep.Errors[0], "B0: ") {
		t.Errorf("first error = %q", rep.Errors[0])
	}
}

func TestImportResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addStudent(t, f, "R1")
	addStudent(t, f, "R2")

	rep := f.svc.ImportResults(ctx, []sheet.Row{
		resultRow("r1", "80", "10", "10", "155"),
		resultRow("R2", "80", "10", "5", "155"),
		resultRow("GHOST", "80", "10", "10", "155"),
		resultRow("", "80", "10", "10", "155"),
		resultRow("R2", "80", "10", "10", ""),
	})
	if rep.SuccessCount != 1 || rep.ErrorCount != 4 {
		t.Fatalf("report = %+v", rep)
	}
	if !strings.Contains(rep.Errors[1], "student GHOST not found") {
		t.Errorf("unknown roll error = %q", rep.Errors[1])
	}
	if !strings.HasPrefix(rep.Errors[2], "Row 2: ") {
		t.Errorf("missing roll error = %q", rep.Errors[2])
	}

	st, _ := f.store.GetStudent(ctx, "R1")
	if st.Result == nil || st.Result.Percentage != 77.5 || st.Result.FinalScore != 155 {
		t.Errorf("R1 result = %+v", st.Result)
	}
	st, _ = f.store.GetStudent(ctx, "R2")
	if st.HasResults() {
		t.Errorf("R2 must not have results: %+v", st.Result)
	}
}

func TestSetAndClearResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addStudent(t, f, "R1")

	r, err := f.svc.SetResult(ctx, "r1", ResultInput{Correct: "80", Wrong: "10", Unattempted: "10", FinalScore: "155", Percentage: "76"})
	if err != nil {
		t.Fatalf("SetResult: %v", err)
	}
	if r.Percentage != 76 {
		t.Errorf("supplied percentage not kept: %v", r.Percentage)
	}

	_, err = f.svc.SetResult(ctx, "R1", ResultInput{Correct: "x"})
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}

	huge := "9223372036854775807"
	_, err = f.svc.SetResult(ctx, "R1", ResultInput{Correct: huge, Wrong: huge, Unattempted: "102", FinalScore: "150"})
	if !errors.As(err, &ve) {
		t.Errorf("overflowing counts: expected ValidationError, got %v", err)
	}
	if st, _ := f.store.GetStudent(ctx, "R1"); st.Result == nil || st.Result.Correct != 80 {
		t.Errorf("stored result changed: %+v", st.Result)
	}

	if err := f.svc.ClearResult(ctx, "R1"); err != nil {
		t.Fatalf("ClearResult: %v", err)
	}
	if err := f.svc.ClearResult(ctx, "R1"); err != nil {
		t.Fatalf("second ClearResult: %v", err)
	}
	st, _ := f.store.GetStudent(ctx, "R1")
	if st.HasResults() {
		t.Error("result still present")
	}
	if err := f.svc.ClearResult(ctx, "NOPE"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("ClearResult missing: expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAndDeleteStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addStudent(t, f, "R1")

	st, err := f.svc.UpdateStudent(ctx, "r1", validation.StudentInput{Name: "New Name", DOB: "02/02/2002", Mobile: "9000000000", Post: "LFM"})
	if err != nil {
		t.Fatalf("UpdateStudent: %v", err)
	}
	if st.Name != "New Name" || st.Post != model.PostLFM {
		t.Errorf("update = %+v", st)
	}
	_, err = f.svc.UpdateStudent(ctx, "NOPE", validation.StudentInput{Name: "x", DOB: "02/02/2002", Mobile: "9000000000", Post: "LFM"})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("update missing: expected ErrNotFound, got %v", err)
	}

	rel, err := f.svc.AttachOMR(ctx, "R1", "scan.png", pngBytes(t))
	if err != nil {
		t.Fatalf("AttachOMR: %v", err)
	}
	if err := f.svc.DeleteStudent(ctx, "R1"); err != nil {
		t.Fatalf("DeleteStudent: %v", err)
	}
	if f.exists(rel) {
		t.Error("OMR file survived student deletion")
	}
	if err := f.svc.DeleteStudent(ctx, "R1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestAttachAndRemoveOMR(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addStudent(t, f, "R1")

	rel, err := f.svc.AttachOMR(ctx, "r1", "whatever.PNG", pngBytes(t))
	if err != nil {
		t.Fatalf("AttachOMR: %v", err)
	}
	if rel != "omr/omr_R1.png" || !f.exists(rel) {
		t.Fatalf("rel = %q, exists = %v", rel, f.exists(rel))
	}

	pdf, err := f.svc.AttachOMR(ctx, "R1", "sheet.pdf", []byte("%PDF-1.4 test"))
	if err != nil {
		t.Fatalf("AttachOMR pdf: %v", err)
	}
	if f.exists(rel) {
		t.Error("previous OMR file was not removed")
	}
	st, _ := f.store.GetStudent(ctx, "R1")
	if st.OMRPath != pdf {
		t.Errorf("OMRPath = %q, want %q", st.OMRPath, pdf)
	}

	if _, err := f.svc.AttachOMR(ctx, "R1", "sheet.gif", []byte("GIF89a")); err == nil {
		t.Error("gif must be rejected")
	}
	if _, err := f.svc.AttachOMR(ctx, "GHOST", "a.pdf", []byte("%PDF-")); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown student: expected ErrNotFound, got %v", err)
	}

	if err := f.svc.RemoveOMR(ctx, "R1"); err != nil {
		t.Fatalf("RemoveOMR: %v", err)
	}
	if f.exists(pdf) {
		t.Error("OMR file not removed")
	}
	if err := f.svc.RemoveOMR(ctx, "R1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("RemoveOMR without OMR: expected ErrNotFound, got %v", err)
	}
}

func TestImportOMR(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addStudent(t, f, "ROLL123")
	addStudent(t, f, "R2")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := []struct {
		name string
		data []byte
	}{
		{"batch/7_ROLL123.png", pngBytes(t)},
		{"r2.pdf", []byte("%PDF-1.7 scan")},
		{"UNKNOWN.png", pngBytes(t)},
		{"notes.txt", []byte("hello")},
		{"R2_broken.jpg", []byte("not a jpeg")},
	}
	for _, fl := range files {
		w, err := zw.Create(fl.name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(fl.data)
	}
	zw.Close()

	a, err := archive.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("archive.NewReader: %v", err)
	}
	rep := f.svc.ImportOMR(ctx, a.Entries())
	if rep.SuccessCount != 2 || rep.ErrorCount != 3 {
		t.Fatalf("report = %+v", rep)
	}

	st, _ := f.store.GetStudent(ctx, "ROLL123")
	if st.OMRPath != "omr/omr_ROLL123.png" || !f.exists(st.OMRPath) {
		t.Errorf("ROLL123 OMR = %q", st.OMRPath)
	}
	st, _ = f.store.GetStudent(ctx, "R2")
	if st.OMRPath != "omr/omr_R2.pdf" {
		t.Errorf("R2 OMR = %q", st.OMRPath)
	}
	for _, e := range rep.Errors {
		if strings.HasPrefix(e, "UNKNOWN.png: ") && !strings.Contains(e, "not found") {
			t.Errorf("unexpected message %q", e)
		}
	}
}

// failingWrites lets reads through and fails the file-path updates.
type failingWrites struct {
	*store.Store
}

var errWrite = errors.New("database is locked")

func (failingWrites) SetStudentOMR(context.Context, string, string) error { return errWrite }

func (failingWrites) UpsertAnswerKey(context.Context, model.AnswerKey) error { return errWrite }

func TestFailedRecordKeepsPreviousFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addStudent(t, f, "R1")

	rel, err := f.svc.AttachOMR(ctx, "R1", "a.pdf", []byte("%PDF-1.4 first"))
	if err != nil {
		t.Fatalf("AttachOMR: %v", err)
	}
	key, err := f.svc.UploadAnswerKey(ctx, "DCO", "k.pdf", strings.NewReader("%PDF-1.4 first key"), true)
	if err != nil {
		t.Fatalf("UploadAnswerKey: %v", err)
	}

	files, err := filestore.New(f.root)
	if err != nil {
		t.Fatal(err)
	}
	broken := New(failingWrites{f.store}, files, Config{Scheme: score.DefaultScheme, Scan: scan.DefaultOptions, MaxFileBytes: 1 << 20})

	read := func(rel string) string {
		t.Helper()
		data, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		return string(data)
	}

	_, err = broken.AttachOMR(ctx, "R1", "b.pdf", []byte("%PDF-1.4 second"))
	var se *model.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("AttachOMR: expected StorageError, got %v", err)
	}
	if got := read(rel); got != "%PDF-1.4 first" {
		t.Errorf("OMR file = %q, want the previous content", got)
	}
	if st, _ := f.store.GetStudent(ctx, "R1"); st.OMRPath != rel {
		t.Errorf("OMRPath = %q, want %q", st.OMRPath, rel)
	}

	_, err = broken.UploadAnswerKey(ctx, "DCO", "k2.pdf", strings.NewReader("%PDF-1.4 second key"), true)
	if !errors.As(err, &se) {
		t.Fatalf("UploadAnswerKey: expected StorageError, got %v", err)
	}
	if got := read(key.FilePath); got != "%PDF-1.4 first key" {
		t.Errorf("answer key file = %q, want the previous content", got)
	}

	entries, _ := os.ReadDir(filepath.Join(f.root, "omr"))
	if len(entries) != 1 {
		t.Errorf("omr dir has %d entries, want 1", len(entries))
	}
}

func TestAnswerKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	k, err := f.svc.UploadAnswerKey(ctx, "dco", "DCO key.pdf", strings.NewReader("%PDF-1.4 key"), false)
	if err != nil {
		t.Fatalf("UploadAnswerKey: %v", err)
	}
	if k.FilePath != "answer-keys/answer_key_DCO.pdf" || k.FileName != "DCO key.pdf" || k.Published {
		t.Errorf("key = %+v", k)
	}

	k2, err := f.svc.UploadAnswerKey(ctx, "DCO", "key.png", bytes.NewReader(pngBytes(t)), true)
	if err != nil {
		t.Fatalf("replace answer key: %v", err)
	}
	if f.exists(k.FilePath) {
		t.Error("old answer key file not removed")
	}
	if !k2.Published || !f.exists(k2.FilePath) {
		t.Errorf("replacement = %+v", k2)
	}

	if _, err := f.svc.UploadAnswerKey(ctx, "DCP", "k.pdf", strings.NewReader("%PDF-"), true); err == nil {
		t.Error("DCP answer key must be rejected")
	}

	if err := f.svc.SetAnswerKeyPublished(ctx, "DCO", false); err != nil {
		t.Fatalf("SetAnswerKeyPublished: %v", err)
	}
	if err := f.svc.SetAnswerKeyPublished(ctx, "SFO", true); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("publish missing: expected ErrNotFound, got %v", err)
	}
	if n, err := f.svc.PublishAllAnswerKeys(ctx, true); err != nil || n != 1 {
		t.Errorf("PublishAllAnswerKeys = %d, %v", n, err)
	}

	if err := f.svc.DeleteAnswerKey(ctx, "DCO"); err != nil {
		t.Fatalf("DeleteAnswerKey: %v", err)
	}
	if f.exists(k2.FilePath) {
		t.Error("answer key file not removed")
	}
	if err := f.svc.DeleteAnswerKey(ctx, "DCO"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{model.Invalid("dob", "is not a valid date"), "dob: is not a valid date"},
		{model.Duplicate("student", "R1"), "student already exists"},
		{model.NotFound("student", "R1"), "student R1 not found"},
		{model.Storage("save", errors.New("disk full")), "could not be saved, see server log"},
	}
	for _, tt := range tests {
		if got := Describe(tt.err); got != tt.want {
			t.Errorf("Describe(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
