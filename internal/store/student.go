package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/resultportal/internal/model"
)

const dobLayout = "2006-01-02"

const studentColumns = `roll_no, name, dob, mobile, post, omr_path, result, active, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(sc rowScanner) (*model.Student, error) {
	var (
		st     model.Student
		dob    string
		result sql.NullString
	)
	if err := sc.Scan(&st.RollNo, &st.Name, &dob, &st.Mobile, &st.Post, &st.OMRPath, &result, &st.Active, &st.CreatedAt); err != nil {
		return nil, err
	}
	d, err := time.Parse(dobLayout, dob)
	if err != nil {
		return nil, fmt.Errorf("parse dob of %s: %w", st.RollNo, err)
	}
	st.DOB = d
	if result.Valid && result.String != "" {
		var r model.ResultSummary
		if err := json.Unmarshal([]byte(result.String), &r); err != nil {
			return nil, fmt.Errorf("decode result of %s: %w", st.RollNo, err)
		}
		st.Result = &r
	}
	return &st, nil
}

// GetStudent returns the student with the given roll number, or nil.
func (s *Store) GetStudent(ctx context.Context, rollNo string) (*model.Student, error) {
	st, err := scanStudent(s.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE roll_no = ?`, rollNo))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

// ListStudents returns all students, newest first.
func (s *Store) ListStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+studentColumns+` FROM students ORDER BY created_at DESC, roll_no`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var students []model.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, *st)
	}
	return students, rows.Err()
}

// CreateStudent inserts a new student. An existing roll number yields a
// conflict wrapping model.ErrDuplicate.
func (s *Store) CreateStudent(ctx context.Context, st model.Student) error {
	result, err := encodeResult(st.Result)
	if err != nil {
		return err
	}
	createdAt := st.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO students (`+studentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.RollNo, st.Name, st.DOB.UTC().Format(dobLayout), st.Mobile, st.Post, st.OMRPath,
		result, st.Active, createdAt.UTC(),
	)
	if isUniqueViolation(err) {
		return model.Duplicate("student", st.RollNo)
	}
	return err
}

// UpdateStudent replaces the identity fields of a student.
func (s *Store) UpdateStudent(ctx context.Context, rollNo string, u model.StudentUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE students SET name = ?, dob = ?, mobile = ?, post = ? WHERE roll_no = ?`,
		u.Name, u.DOB.UTC().Format(dobLayout), u.Mobile, u.Post, rollNo,
	)
	if err != nil {
		return err
	}
	return affected(res, "student", rollNo)
}

// SetStudentOMR records the OMR file path. An empty path unsets it.
func (s *Store) SetStudentOMR(ctx context.Context, rollNo, path string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE students SET omr_path = ? WHERE roll_no = ?`, path, rollNo)
	if err != nil {
		return err
	}
	return affected(res, "student", rollNo)
}

// SetStudentResult attaches a result summary. A nil summary unsets it.
func (s *Store) SetStudentResult(ctx context.Context, rollNo string, r *model.ResultSummary) error {
	result, err := encodeResult(r)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE students SET result = ? WHERE roll_no = ?`, result, rollNo)
	if err != nil {
		return err
	}
	return affected(res, "student", rollNo)
}

// DeleteStudent removes a student record.
func (s *Store) DeleteStudent(ctx context.Context, rollNo string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM students WHERE roll_no = ?`, rollNo)
	if err != nil {
		return err
	}
	return affected(res, "student", rollNo)
}

// CountStudents counts students matching f.
func (s *Store) CountStudents(ctx context.Context, f model.StudentFilter) (int, error) {
	query := `SELECT COUNT(*) FROM students WHERE 1=1`
	var args []any
	if f.Post != "" {
		query += ` AND post = ?`
		args = append(args, f.Post)
	}
	if f.WithOMR {
		query += ` AND omr_path != ''`
	}
	if f.WithResults {
		query += ` AND result IS NOT NULL`
	}
	if f.ActiveOnly {
		query += ` AND active = 1`
	}
	var count int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// ActivateCohort deactivates students created before dayStart and
// activates those created in [dayStart, dayEnd).
func (s *Store) ActivateCohort(ctx context.Context, dayStart, dayEnd time.Time) (int64, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE students SET active = 0 WHERE created_at < ? AND active = 1`, dayStart.UTC())
	if err != nil {
		return 0, 0, fmt.Errorf("deactivate: %w", err)
	}
	deactivated, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx,
		`UPDATE students SET active = 1 WHERE created_at >= ? AND created_at < ? AND active = 0`,
		dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		return 0, 0, fmt.Errorf("activate: %w", err)
	}
	activated, _ := res.RowsAffected()

	return deactivated, activated, tx.Commit()
}

func encodeResult(r *model.ResultSummary) (any, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return string(b), nil
}
