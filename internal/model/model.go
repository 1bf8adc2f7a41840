package model

import (
	"context"
	"time"
)

// Post is a post code a candidate applied for.
type Post string

const (
	PostDCP Post = "DCP"
	PostDCO Post = "DCO"
	PostFCD Post = "FCD"
	PostLFM Post = "LFM"
	PostDFO Post = "DFO"
	PostSFO Post = "SFO"
	PostWLO Post = "WLO"
)

// StudentPosts lists every post a student record may carry.
var StudentPosts = []Post{PostDCP, PostDCO, PostFCD, PostLFM, PostDFO, PostSFO, PostWLO}

// AnswerKeyPosts lists the posts that have a published answer key.
// DCP shares its paper with DCO, so it has no key of its own.
var AnswerKeyPosts = []Post{PostDCO, PostFCD, PostLFM, PostDFO, PostSFO, PostWLO}

// Valid reports whether p is one of the student post codes.
func (p Post) Valid() bool {
	for _, v := range StudentPosts {
		if p == v {
			return true
		}
	}
	return false
}

// HasAnswerKey reports whether p is allowed to carry an answer key.
func (p Post) HasAnswerKey() bool {
	for _, v := range AnswerKeyPosts {
		if p == v {
			return true
		}
	}
	return false
}

// ResultSummary is the normalized score record attached to a student.
type ResultSummary struct {
	Correct        int     `json:"correctAnswers"`
	Wrong          int     `json:"wrongAnswers"`
	Unattempted    int     `json:"unattempted"`
	FinalScore     float64 `json:"finalScore"`
	TotalQuestions int     `json:"totalQuestions"`
	Percentage     float64 `json:"percentage"`
}

// Student is a candidate record keyed by roll number.
type Student struct {
	RollNo    string         `json:"rollNo"`
	Name      string         `json:"name"`
	DOB       time.Time      `json:"dob"`
	Mobile    string         `json:"mobile"`
	Post      Post           `json:"postApplied"`
	OMRPath   string         `json:"omrPath,omitempty"`
	Result    *ResultSummary `json:"results,omitempty"`
	Active    bool           `json:"active"`
	CreatedAt time.Time      `json:"createdAt"`
}

// HasOMR reports whether a scanned answer sheet is attached.
func (s *Student) HasOMR() bool { return s.OMRPath != "" }

// HasResults reports whether a result summary is attached.
func (s *Student) HasResults() bool { return s.Result != nil }

// StudentUpdate carries the editable identity fields of a student.
type StudentUpdate struct {
	Name   string
	DOB    time.Time
	Mobile string
	Post   Post
}

// StudentFilter narrows CountStudents. Zero values mean no filtering.
type StudentFilter struct {
	Post        Post
	WithOMR     bool
	WithResults bool
	ActiveOnly  bool
}

// AnswerKey is the uploaded answer key for one post.
type AnswerKey struct {
	Post       Post      `json:"postCode"`
	FilePath   string    `json:"filePath"`
	FileName   string    `json:"fileName"`
	Published  bool      `json:"isPublished"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Flag names stored in the key/value config table.
const (
	FlagOMRPublic     = "omrPublic"
	FlagResultsPublic = "resultsPublic"
)

// Flags is a point-in-time snapshot of the visibility flags.
type Flags struct {
	OMRPublic     bool `json:"omrPublic"`
	ResultsPublic bool `json:"resultsPublic"`
}

// User is an administrator account.
type User struct {
	Username     string
	DisplayName  string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an administrator login session.
type AuthSession struct {
	ID        string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// PortalConfig holds HTTP-facing settings.
type PortalConfig struct {
	BasePath       string
	SecureCookies  bool
	MaxUploadBytes int64
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}
