package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate marks a key that already exists.
	ErrDuplicate = errors.New("already exists")
)

// ValidationError reports a malformed field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports a key that is missing or already taken.
// Err is ErrNotFound or ErrDuplicate.
type ConflictError struct {
	Kind string
	Key  string
	Err  error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s %v", e.Kind, e.Key, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// NotFound builds a ConflictError wrapping ErrNotFound.
func NotFound(kind, key string) error {
	return &ConflictError{Kind: kind, Key: key, Err: ErrNotFound}
}

// Duplicate builds a ConflictError wrapping ErrDuplicate.
func Duplicate(kind, key string) error {
	return &ConflictError{Kind: kind, Key: key, Err: ErrDuplicate}
}

// StorageError wraps a failure of the record store or file storage.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError unless it is nil or already typed.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ConflictError
	var ve *ValidationError
	if errors.As(err, &ce) || errors.As(err, &ve) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
