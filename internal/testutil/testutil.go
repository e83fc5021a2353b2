// Package testutil provides shared test helpers for setting up archive
// areas and databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/casevault/internal/storage"
	"github.com/starford/casevault/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "casevault-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestArea creates a temporary archive directory with a storage.Provider.
func TestArea(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	area, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, area
}
