package roster

import (
	"context"

	"github.com/pavelanni/resultportal/internal/filestore"
	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/scan"
	"github.com/pavelanni/resultportal/internal/validation"
)

// AttachOMR stores data as the OMR sheet of an existing student and
// returns the stored path. fileName only supplies the extension.
func (s *Service) AttachOMR(ctx context.Context, rollNo, fileName string, data []byte) (string, error) {
	rollNo = validation.RollNo(rollNo)
	if rollNo == "" {
		return "", model.Invalid("rollNo", "is required")
	}
	ext, err := validation.ScanExt(fileName)
	if err != nil {
		return "", err
	}
	st, err := s.Student(ctx, rollNo)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", model.Invalid("file", "is empty")
	}
	data, err = scan.Prepare(data, ext, s.cfg.Scan)
	if err != nil {
		return "", err
	}

	rel, err := s.replaceFile(filestore.OMR, filestore.Name("omr", rollNo, ext), st.OMRPath, data, func(rel string) error {
		return s.store.SetStudentOMR(ctx, rollNo, rel)
	})
	if err != nil {
		return "", err
	}
	s.logger.Debug("OMR attached", "roll_no", rollNo, "path", rel)
	return rel, nil
}

// RemoveOMR detaches and deletes the student's OMR sheet.
func (s *Service) RemoveOMR(ctx context.Context, rollNo string) error {
	st, err := s.Student(ctx, rollNo)
	if err != nil {
		return err
	}
	if !st.HasOMR() {
		return model.NotFound("OMR sheet", st.RollNo)
	}
	if err := s.store.SetStudentOMR(ctx, st.RollNo, ""); err != nil {
		return model.Storage("clear OMR path", err)
	}
	if err := s.files.Remove(st.OMRPath); err != nil {
		s.logger.Warn("failed to remove OMR file", "roll_no", st.RollNo, "path", st.OMRPath, "error", err)
	}
	s.logger.Info("OMR removed", "roll_no", st.RollNo)
	return nil
}
