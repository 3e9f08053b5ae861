package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/aqlengine/internal/record"
	"github.com/roach88/aqlengine/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// loadFixtureStore creates a store holding the shared minimal fixture.
func loadFixtureStore(t *testing.T) (*Store, *record.Dataset) {
	t.Helper()
	s := createTestStore(t)
	ds := testutil.LoadFixture(t, "minimal.yaml")
	if _, err := s.Import(context.Background(), ds); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	return s, ds
}
