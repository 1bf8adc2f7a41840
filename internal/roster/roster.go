// Package roster owns every mutation of student records: single-item
// admin edits and the bulk spreadsheet and archive imports, which call the
// same single-item paths once per row or entry.
package roster

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/pavelanni/resultportal/internal/filestore"
	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/scan"
	"github.com/pavelanni/resultportal/internal/score"
	"github.com/pavelanni/resultportal/internal/validation"
)

// Store is the part of the record store the roster writes to.
type Store interface {
	GetStudent(ctx context.Context, rollNo string) (*model.Student, error)
	CreateStudent(ctx context.Context, s model.Student) error
	UpdateStudent(ctx context.Context, rollNo string, u model.StudentUpdate) error
	SetStudentOMR(ctx context.Context, rollNo, path string) error
	SetStudentResult(ctx context.Context, rollNo string, r *model.ResultSummary) error
	DeleteStudent(ctx context.Context, rollNo string) error

	GetAnswerKey(ctx context.Context, post model.Post) (*model.AnswerKey, error)
	UpsertAnswerKey(ctx context.Context, k model.AnswerKey) error
	SetAnswerKeyPublished(ctx context.Context, post model.Post, published bool) error
	SetAllAnswerKeysPublished(ctx context.Context, published bool) (int64, error)
	DeleteAnswerKey(ctx context.Context, post model.Post) error
}

// Files stores uploaded documents.
type Files interface {
	Put(cat filestore.Category, name string, r io.Reader) (string, error)
	Remove(rel string) error
	Stash(rel string) (*filestore.Stash, error)
}

// Config tunes the roster.
type Config struct {
	Scheme score.Scheme
	Scan   scan.Options
	// MaxFileBytes caps a single archive entry or answer key.
	MaxFileBytes int64
}

// Service applies validated mutations to the store and file storage.
type Service struct {
	store  Store
	files  Files
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Service.
func New(st Store, files Files, cfg Config) *Service {
	if cfg.Scheme.TotalQuestions == 0 {
		cfg.Scheme = score.DefaultScheme
	}
	return &Service{
		store:  st,
		files:  files,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "roster"),
	}
}

// Scheme returns the scoring scheme in use.
func (s *Service) Scheme() score.Scheme {
	return s.cfg.Scheme
}

// Student returns the student with the given roll number.
func (s *Service) Student(ctx context.Context, rollNo string) (*model.Student, error) {
	rollNo = validation.RollNo(rollNo)
	st, err := s.store.GetStudent(ctx, rollNo)
	if err != nil {
		return nil, model.Storage("find student", err)
	}
	if st == nil {
		return nil, model.NotFound("student", rollNo)
	}
	return st, nil
}

// AddStudent validates in and creates the student. An existing roll
// number is a conflict and leaves the stored record untouched.
func (s *Service) AddStudent(ctx context.Context, in validation.StudentInput) (*model.Student, error) {
	st, err := validation.Student(in)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.GetStudent(ctx, st.RollNo)
	if err != nil {
		return nil, model.Storage("find student", err)
	}
	if existing != nil {
		return nil, model.Duplicate("student", st.RollNo)
	}
	st.CreatedAt = s.now().UTC()
	if err := s.store.CreateStudent(ctx, st); err != nil {
		return nil, model.Storage("create student", err)
	}
	s.logger.Debug("student created", "roll_no", st.RollNo, "post", st.Post)
	return &st, nil
}

// UpdateStudent replaces the identity fields of an existing student.
func (s *Service) UpdateStudent(ctx context.Context, rollNo string, in validation.StudentInput) (*model.Student, error) {
	in.RollNo = rollNo
	st, err := validation.Student(in)
	if err != nil {
		return nil, err
	}
	err = s.store.UpdateStudent(ctx, st.RollNo, model.StudentUpdate{
		Name:   st.Name,
		DOB:    st.DOB,
		Mobile: st.Mobile,
		Post:   st.Post,
	})
	if err != nil {
		return nil, model.Storage("update student", err)
	}
	s.logger.Info("student updated", "roll_no", st.RollNo)
	return s.Student(ctx, st.RollNo)
}

// DeleteStudent removes a student and its OMR file.
func (s *Service) DeleteStudent(ctx context.Context, rollNo string) error {
	st, err := s.Student(ctx, rollNo)
	if err != nil {
		return err
	}
	if err := s.store.DeleteStudent(ctx, st.RollNo); err != nil {
		return model.Storage("delete student", err)
	}
	if st.HasOMR() {
		if err := s.files.Remove(st.OMRPath); err != nil {
			s.logger.Warn("failed to remove OMR file", "roll_no", st.RollNo, "path", st.OMRPath, "error", err)
		}
	}
	s.logger.Info("student deleted", "roll_no", st.RollNo)
	return nil
}

// ResultInput is a raw result as submitted in a form or spreadsheet row.
type ResultInput struct {
	Correct     string
	Wrong       string
	Unattempted string
	FinalScore  string
	Percentage  string
}

func (in ResultInput) parse() (score.Input, error) {
	var out score.Input
	var err error
	if out.Correct, err = validation.Count("correctAnswers", in.Correct); err != nil {
		return out, err
	}
	if out.Wrong, err = validation.Count("wrongAnswers", in.Wrong); err != nil {
		return out, err
	}
	if out.Unattempted, err = validation.Count("unattempted", in.Unattempted); err != nil {
		return out, err
	}
	if out.FinalScore, err = validation.OptionalFloat("finalScore", in.FinalScore); err != nil {
		return out, err
	}
	if out.Percentage, err = validation.OptionalFloat("percentage", in.Percentage); err != nil {
		return out, err
	}
	return out, nil
}

// SetResult normalizes in and attaches it to the student, replacing any
// previous summary.
func (s *Service) SetResult(ctx context.Context, rollNo string, in ResultInput) (*model.ResultSummary, error) {
	rollNo = validation.RollNo(rollNo)
	if rollNo == "" {
		return nil, model.Invalid("rollNo", "is required")
	}
	raw, err := in.parse()
	if err != nil {
		return nil, err
	}
	summary, err := s.cfg.Scheme.Normalize(raw)
	if err != nil {
		return nil, err
	}
	if _, err := s.Student(ctx, rollNo); err != nil {
		return nil, err
	}
	if err := s.store.SetStudentResult(ctx, rollNo, &summary); err != nil {
		return nil, model.Storage("save result", err)
	}
	return &summary, nil
}

// ClearResult removes the result summary. Clearing a student without
// results succeeds.
func (s *Service) ClearResult(ctx context.Context, rollNo string) error {
	st, err := s.Student(ctx, rollNo)
	if err != nil {
		return err
	}
	if err := s.store.SetStudentResult(ctx, st.RollNo, nil); err != nil {
		return model.Storage("clear result", err)
	}
	s.logger.Info("result cleared", "roll_no", st.RollNo)
	return nil
}
