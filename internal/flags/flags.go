// Package flags exposes the portal's visibility switches. Values are read
// from the store on every call so a toggle takes effect on the next request.
package flags

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/resultportal/internal/model"
)

// Store is the key/value part of the record store.
type Store interface {
	GetFlag(ctx context.Context, key string) (bool, error)
	SetFlag(ctx context.Context, key string, value bool) error
}

// Service reads and writes the visibility flags.
type Service struct {
	store Store
}

// New creates a Service over s.
func New(s Store) *Service {
	return &Service{store: s}
}

// OMRPublic reports whether students may see their OMR sheet.
func (s *Service) OMRPublic(ctx context.Context) (bool, error) {
	return s.get(ctx, model.FlagOMRPublic)
}

// ResultsPublic reports whether students may see their result summary.
func (s *Service) ResultsPublic(ctx context.Context) (bool, error) {
	return s.get(ctx, model.FlagResultsPublic)
}

// SetOMRPublic changes OMR visibility.
func (s *Service) SetOMRPublic(ctx context.Context, v bool) error {
	return s.set(ctx, model.FlagOMRPublic, v)
}

// SetResultsPublic changes result visibility.
func (s *Service) SetResultsPublic(ctx context.Context, v bool) error {
	return s.set(ctx, model.FlagResultsPublic, v)
}

// Snapshot returns both flags.
func (s *Service) Snapshot(ctx context.Context) (model.Flags, error) {
	var f model.Flags
	var err error
	if f.OMRPublic, err = s.OMRPublic(ctx); err != nil {
		return f, err
	}
	if f.ResultsPublic, err = s.ResultsPublic(ctx); err != nil {
		return f, err
	}
	return f, nil
}

func (s *Service) get(ctx context.Context, key string) (bool, error) {
	v, err := s.store.GetFlag(ctx, key)
	if err != nil {
		return false, model.Storage("read flag "+key, err)
	}
	return v, nil
}

func (s *Service) set(ctx context.Context, key string, v bool) error {
	if err := s.store.SetFlag(ctx, key, v); err != nil {
		return model.Storage("write flag "+key, fmt.Errorf("set %v: %w", v, err))
	}
	slog.Info("visibility flag changed", "flag", key, "value", v)
	return nil
}
