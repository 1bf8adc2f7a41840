package store

import (
	"context"
	"time"

	"github.com/pavelanni/resultportal/internal/model"
)

// Backend is the record store contract shared by the SQLite and MongoDB
// implementations. Optional lookups return nil, nil when the record is
// missing; mutations of a missing key return a *model.ConflictError
// wrapping model.ErrNotFound.
type Backend interface {
	GetStudent(ctx context.Context, rollNo string) (*model.Student, error)
	ListStudents(ctx context.Context) ([]model.Student, error)
	CreateStudent(ctx context.Context, s model.Student) error
	UpdateStudent(ctx context.Context, rollNo string, u model.StudentUpdate) error
	SetStudentOMR(ctx context.Context, rollNo, path string) error
	SetStudentResult(ctx context.Context, rollNo string, r *model.ResultSummary) error
	DeleteStudent(ctx context.Context, rollNo string) error
	CountStudents(ctx context.Context, f model.StudentFilter) (int, error)
	ActivateCohort(ctx context.Context, dayStart, dayEnd time.Time) (deactivated, activated int64, err error)

	GetAnswerKey(ctx context.Context, post model.Post) (*model.AnswerKey, error)
	ListAnswerKeys(ctx context.Context, publishedOnly bool) ([]model.AnswerKey, error)
	UpsertAnswerKey(ctx context.Context, k model.AnswerKey) error
	SetAnswerKeyPublished(ctx context.Context, post model.Post, published bool) error
	SetAllAnswerKeysPublished(ctx context.Context, published bool) (int64, error)
	DeleteAnswerKey(ctx context.Context, post model.Post) error

	GetFlag(ctx context.Context, key string) (bool, error)
	SetFlag(ctx context.Context, key string, value bool) error

	CreateUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	ToggleUserActive(ctx context.Context, username string) error
	DeleteUser(ctx context.Context, username string) error
	UserCount(ctx context.Context) (int, error)

	CreateAuthSession(ctx context.Context, username string) (string, error)
	GetAuthSession(ctx context.Context, token string) (*model.AuthSession, error)
	DeleteAuthSession(ctx context.Context, token string) error
	CleanupExpiredSessions(ctx context.Context) error

	Close() error
}

var _ Backend = (*Store)(nil)
