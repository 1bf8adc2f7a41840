package mongostore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/pavelanni/resultportal/internal/store"
	"github.com/pavelanni/resultportal/internal/store/storetest"
)

// Set RESULTPORTAL_MONGO_URI (e.g. mongodb://localhost:27017) to run
// against a live server.
func TestBackendContract(t *testing.T) {
	uri := os.Getenv("RESULTPORTAL_MONGO_URI")
	if uri == "" {
		t.Skip("RESULTPORTAL_MONGO_URI not set")
	}
	storetest.Run(t, func(t *testing.T) store.Backend {
		t.Helper()
		s, err := Open(context.Background(), uri, "resultportal_test_"+uuid.NewString()[:8])
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() {
			_ = s.Drop(context.Background())
			s.Close()
		})
		return s
	})
}
