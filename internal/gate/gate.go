// Package gate decides whether a student may see their record and what
// parts of it are visible right now.
package gate

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/score"
	"github.com/pavelanni/resultportal/internal/validation"
)

var (
	// ErrAuthFailed is returned for an unknown roll number and for a wrong
	// secret alike.
	ErrAuthFailed = errors.New("please check your details and try again")
	// ErrNoData is returned when an authenticated student has nothing
	// visible, whether the data is missing or hidden.
	ErrNoData = errors.New("no data available for your roll number")
)

// Students looks up student records.
type Students interface {
	GetStudent(ctx context.Context, rollNo string) (*model.Student, error)
}

// Flags reports the current visibility switches.
type Flags interface {
	OMRPublic(ctx context.Context) (bool, error)
	ResultsPublic(ctx context.Context) (bool, error)
}

// Claim is what a student submits on the login form. Only one of DOB and
// Mobile is needed; DOB wins when both are given.
type Claim struct {
	RollNo string
	DOB    string
	Mobile string
}

// View is what an authenticated student is allowed to see.
type View struct {
	Student     *model.Student
	ShowOMR     bool
	ShowResults bool
	Breakdown   *score.Breakdown
}

// Gate verifies student identity and applies the visibility flags.
type Gate struct {
	students      Students
	flags         Flags
	scheme        score.Scheme
	requireActive bool
	logger        *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithScheme sets the scheme used for score breakdowns.
func WithScheme(s score.Scheme) Option {
	return func(g *Gate) { g.scheme = s }
}

// RequireActive hides students outside the current cohort.
func RequireActive(on bool) Option {
	return func(g *Gate) { g.requireActive = on }
}

// New creates a Gate.
func New(students Students, flags Flags, opts ...Option) *Gate {
	g := &Gate{
		students: students,
		flags:    flags,
		scheme:   score.DefaultScheme,
		logger:   slog.Default().With("component", "gate"),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Authenticate checks c against the stored record and returns the student.
// Malformed claims yield a *model.ValidationError; every mismatch yields
// ErrAuthFailed.
func (g *Gate) Authenticate(ctx context.Context, c Claim) (*model.Student, error) {
	rollNo := validation.RollNo(c.RollNo)
	if rollNo == "" {
		return nil, model.Invalid("rollNo", "is required")
	}

	var match func(*model.Student) bool
	method := "dob"
	switch {
	case c.DOB != "":
		dob, err := validation.ParseDate("dob", c.DOB)
		if err != nil {
			return nil, err
		}
		match = func(st *model.Student) bool { return validation.SameDay(dob, st.DOB) }
	case c.Mobile != "":
		method = "mobile"
		mobile := validation.DigitsOnly(c.Mobile)
		if mobile == "" {
			return nil, model.Invalid("mobile", "must contain digits")
		}
		match = func(st *model.Student) bool {
			stored := validation.DigitsOnly(st.Mobile)
			return subtle.ConstantTimeCompare([]byte(mobile), []byte(stored)) == 1
		}
	default:
		return nil, model.Invalid("", "date of birth or mobile number is required")
	}

	st, err := g.students.GetStudent(ctx, rollNo)
	if err != nil {
		return nil, model.Storage("find student", err)
	}
	if st == nil || !match(st) {
		g.logger.Info("student login failed", "roll_no", rollNo, "method", method)
		return nil, ErrAuthFailed
	}
	g.logger.Info("student authenticated", "roll_no", rollNo, "method", method)
	return st, nil
}

// Visibility reads the flags and decides what st may see. It returns
// ErrNoData when nothing is visible.
func (g *Gate) Visibility(ctx context.Context, st *model.Student) (View, error) {
	if g.requireActive && !st.Active {
		return View{}, ErrNoData
	}
	omrPublic, err := g.flags.OMRPublic(ctx)
	if err != nil {
		return View{}, err
	}
	resultsPublic, err := g.flags.ResultsPublic(ctx)
	if err != nil {
		return View{}, err
	}

	v := View{
		Student:     st,
		ShowOMR:     st.HasOMR() && omrPublic,
		ShowResults: st.HasResults() && resultsPublic,
	}
	if !v.ShowOMR && !v.ShowResults {
		return View{}, ErrNoData
	}
	if v.ShowResults {
		b := g.scheme.Breakdown(*st.Result)
		v.Breakdown = &b
	}
	return v, nil
}

// Login authenticates c and applies Visibility in one step.
func (g *Gate) Login(ctx context.Context, c Claim) (View, error) {
	st, err := g.Authenticate(ctx, c)
	if err != nil {
		return View{}, err
	}
	return g.Visibility(ctx, st)
}

// Refresh rebuilds the view for a student bound to an existing session.
func (g *Gate) Refresh(ctx context.Context, rollNo string) (View, error) {
	st, err := g.students.GetStudent(ctx, validation.RollNo(rollNo))
	if err != nil {
		return View{}, model.Storage("find student", err)
	}
	if st == nil {
		return View{}, ErrNoData
	}
	return g.Visibility(ctx, st)
}

// OMRFile returns the stored OMR path for rollNo if it may be served now.
// The flag and the record are read at call time.
func (g *Gate) OMRFile(ctx context.Context, rollNo string) (string, error) {
	st, err := g.students.GetStudent(ctx, validation.RollNo(rollNo))
	if err != nil {
		return "", model.Storage("find student", err)
	}
	if st == nil || !st.HasOMR() || (g.requireActive && !st.Active) {
		return "", ErrNoData
	}
	public, err := g.flags.OMRPublic(ctx)
	if err != nil {
		return "", err
	}
	if !public {
		return "", ErrNoData
	}
	return st.OMRPath, nil
}
