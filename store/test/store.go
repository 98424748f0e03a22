// Package teststore provides a migrated sqlite-backed store for tests.
package teststore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tsudoi-io/tsudoi/internal/profile"
	"github.com/tsudoi-io/tsudoi/store"
	"github.com/tsudoi-io/tsudoi/store/db"
)

// NewTestingStore opens a fresh sqlite store under t.TempDir and runs
// migrations. The store is closed when the test finishes.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	testProfile := &profile.Profile{
		Mode:   "demo",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "tsudoi_test.db"),
	}

	driver, err := db.NewDBDriver(testProfile)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	testStore := store.New(driver, testProfile)
	if err := testStore.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}

	t.Cleanup(func() {
		_ = testStore.Close()
	})

	return testStore
}
