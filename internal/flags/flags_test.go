package flags

import (
	"context"
	"errors"
	"testing"

	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s)
}

func TestDefaultsAndToggle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.OMRPublic || snap.ResultsPublic {
		t.Fatalf("flags must default to false, got %+v", snap)
	}

	if err := svc.SetResultsPublic(ctx, true); err != nil {
		t.Fatalf("SetResultsPublic: %v", err)
	}
	if v, _ := svc.ResultsPublic(ctx); !v {
		t.Error("expected results public")
	}
	if v, _ := svc.OMRPublic(ctx); v {
		t.Error("OMR flag must be independent")
	}

	if err := svc.SetOMRPublic(ctx, true); err != nil {
		t.Fatalf("SetOMRPublic: %v", err)
	}
	if err := svc.SetOMRPublic(ctx, false); err != nil {
		t.Fatalf("SetOMRPublic: %v", err)
	}
	if v, _ := svc.OMRPublic(ctx); v {
		t.Error("expected OMR hidden after toggling back")
	}
}

type failingStore struct{}

func (failingStore) GetFlag(context.Context, string) (bool, error) { return false, errors.New("boom") }
func (failingStore) SetFlag(context.Context, string, bool) error   { return errors.New("boom") }

func TestStorageErrors(t *testing.T) {
	svc := New(failingStore{})
	var se *model.StorageError
	if _, err := svc.OMRPublic(context.Background()); !errors.As(err, &se) {
		t.Errorf("expected StorageError, got %v", err)
	}
	if err := svc.SetResultsPublic(context.Background(), true); !errors.As(err, &se) {
		t.Errorf("expected StorageError, got %v", err)
	}
}
