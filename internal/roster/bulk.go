package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pavelanni/resultportal/internal/archive"
	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/sheet"
	"github.com/pavelanni/resultportal/internal/validation"
)

// ImportStudents creates one student per row. Rows whose roll number
// already exists are reported and skipped.
func (s *Service) ImportStudents(ctx context.Context, rows []sheet.Row) model.Report {
	log := s.batchLogger("students", len(rows))
	rep := model.NewReport()
	for _, row := range rows {
		key := validation.RollNo(row.Get(sheet.KeyRollNo))
		_, err := s.AddStudent(ctx, validation.StudentInput{
			RollNo: key,
			Name:   row.Get(sheet.KeyName),
			DOB:    row.Get(sheet.KeyDOB),
			Mobile: row.Get(sheet.KeyMobile),
			Post:   row.Get(sheet.KeyPost),
		})
		s.record(log, &rep, rowLabel(row, key), err)
	}
	log.Info("bulk import finished", "success", rep.SuccessCount, "errors", rep.ErrorCount)
	return rep
}

// ImportResults attaches a result to the student named by each row.
// Rows for unknown roll numbers are reported and skipped.
func (s *Service) ImportResults(ctx context.Context, rows []sheet.Row) model.Report {
	log := s.batchLogger("results", len(rows))
	rep := model.NewReport()
	for _, row := range rows {
		key := validation.RollNo(row.Get(sheet.KeyRollNo))
		_, err := s.SetResult(ctx, key, ResultInput{
			Correct:     row.Get(sheet.KeyCorrect),
			Wrong:       row.Get(sheet.KeyWrong),
			Unattempted: row.Get(sheet.KeyUnattempted),
			FinalScore:  row.Get(sheet.KeyFinalScore),
			Percentage:  row.Get(sheet.KeyPercentage),
		})
		s.record(log, &rep, rowLabel(row, key), err)
	}
	log.Info("bulk import finished", "success", rep.SuccessCount, "errors", rep.ErrorCount)
	return rep
}

// ImportOMR matches archive entries to students by file name and stores
// each as that student's OMR sheet.
func (s *Service) ImportOMR(ctx context.Context, entries []archive.Entry) model.Report {
	log := s.batchLogger("omr", len(entries))
	rep := model.NewReport()
	for _, e := range entries {
		s.record(log, &rep, e.Name, s.importEntry(ctx, e))
	}
	log.Info("bulk import finished", "success", rep.SuccessCount, "errors", rep.ErrorCount)
	return rep
}

func (s *Service) importEntry(ctx context.Context, e archive.Entry) error {
	key := validation.EntryKey(e.Name)
	if key == "" {
		return model.Invalid("file", "name does not contain a roll number")
	}
	if _, err := validation.ScanExt(e.Name); err != nil {
		return err
	}
	data, err := e.Read(s.cfg.MaxFileBytes)
	if err != nil {
		return model.Invalid("file", "could not be extracted: %v", err)
	}
	_, err = s.AttachOMR(ctx, key, e.Name, data)
	return err
}

func (s *Service) batchLogger(kind string, items int) *slog.Logger {
	log := s.logger.With("batch_id", uuid.NewString(), "kind", kind)
	log.Info("bulk import started", "items", items)
	return log
}

func (s *Service) record(log *slog.Logger, rep *model.Report, label string, err error) {
	if err == nil {
		rep.Succeed()
		return
	}
	rep.Fail(label + ": " + Describe(err))
	var se *model.StorageError
	if errors.As(err, &se) {
		log.Error("bulk item failed", "item", label, "error", err)
		return
	}
	log.Debug("bulk item rejected", "item", label, "error", err)
}

func rowLabel(row sheet.Row, key string) string {
	if key == "" {
		return fmt.Sprintf("Row %d", row.Line)
	}
	return key
}

// Describe renders err for an admin-facing message without leaking
// storage internals.
func Describe(err error) string {
	var ve *model.ValidationError
	var ce *model.ConflictError
	var se *model.StorageError
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &ce) && errors.Is(err, model.ErrDuplicate):
		return ce.Kind + " already exists"
	case errors.As(err, &ce) && errors.Is(err, model.ErrNotFound):
		return ce.Kind + " " + ce.Key + " not found"
	case errors.As(err, &se):
		return "could not be saved, see server log"
	default:
		return err.Error()
	}
}
