package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	for _, table := range []string{"alarms", "alarm_completions", "operations", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s was not created: %v", table, err)
		}
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("first MigrateUp() error = %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Fatalf("second MigrateUp() error = %v", err)
	}
}

func TestCheckDBMigrationStatus(t *testing.T) {
	t.Run("fresh database needs migration", func(t *testing.T) {
		db := openTestDB(t)

		err := CheckDBMigrationStatus(db)
		if !errors.Is(err, ErrNeedsMigration) {
			t.Errorf("CheckDBMigrationStatus() error = %v, want ErrNeedsMigration", err)
		}
	})

	t.Run("migrated database is current", func(t *testing.T) {
		db := openTestDB(t)
		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}

		if err := CheckDBMigrationStatus(db); err != nil {
			t.Errorf("CheckDBMigrationStatus() error = %v", err)
		}
	})

	t.Run("version matches latest", func(t *testing.T) {
		db := openTestDB(t)
		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}

		latest, err := Latest()
		if err != nil {
			t.Fatalf("Latest() error = %v", err)
		}
		v, dirty, err := Version(db)
		if err != nil {
			t.Fatalf("Version() error = %v", err)
		}
		if dirty || v != latest {
			t.Errorf("Version() = %d (dirty=%v), want %d", v, dirty, latest)
		}
	})
}

func TestSchema_PeriodConstraint(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	_, err := db.Exec(`INSERT INTO alarms (id, time, period, schedule, created_at, updated_at)
		VALUES ('a1', '7:00', 'XM', 'Daily', datetime('now'), datetime('now'))`)
	if err == nil {
		t.Error("expected CHECK violation for period, insert succeeded")
	}

	_, err = db.Exec(`INSERT INTO alarms (id, time, period, schedule, created_at, updated_at)
		VALUES ('a2', '7:00', 'AM', 'Daily', datetime('now'), datetime('now'))`)
	if err != nil {
		t.Errorf("valid insert failed: %v", err)
	}
}

func TestSchema_CompletionScoreRange(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	_, err := db.Exec(`INSERT INTO alarm_completions
		(id, alarm_id, target_time, actual_time, cognitive_score, reaction_time_ms, challenge_type, date)
		VALUES ('c1', 'a1', datetime('now'), datetime('now'), 101, 0, 'alarm', '2024-01-15')`)
	if err == nil {
		t.Error("expected CHECK violation for score 101, insert succeeded")
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// Every pooled connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
