package testutil

import (
	"testing"

	"wake-go/internal/database"
)

// NewTestRepository creates an in-memory SQLite repository with migrations
// applied. It is closed when the test completes.
func NewTestRepository(t *testing.T) *database.SQLiteRepository {
	t.Helper()

	db, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	repo := database.NewSQLiteRepositoryFromDB(db)
	if err := repo.MigrateUp(); err != nil {
		repo.Close()
		t.Fatalf("failed to migrate database: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}
