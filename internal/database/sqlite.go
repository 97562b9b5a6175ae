package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"wake-go/internal/database/migrations"
	"wake-go/internal/wake"
)

// SQLiteRepository stores alarms, completions and the CLI operation log in
// a single SQLite file.
type SQLiteRepository struct {
	db   *sqlx.DB
	path string
}

// NewSQLiteRepository opens the database at path. The schema is not
// touched; call MigrateUp or CheckMigrations.
// path can be a file path or ":memory:".
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteRepository{db: db, path: path}, nil
}

// NewSQLiteRepositoryFromDB wraps an already configured connection.
func NewSQLiteRepositoryFromDB(db *sqlx.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// OpenConnection opens a SQLite connection with foreign keys enabled.
func OpenConnection(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

type alarmRow struct {
	ID            string    `db:"id"`
	Label         string    `db:"label"`
	Time          string    `db:"time"`
	Period        string    `db:"period"`
	Schedule      string    `db:"schedule"`
	Enabled       bool      `db:"enabled"`
	Challenge     string    `db:"challenge"`
	ChallengeType string    `db:"challenge_type"`
	ChallengeIcon string    `db:"challenge_icon"`
	Difficulty    string    `db:"difficulty"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r *alarmRow) toAlarm() *wake.Alarm {
	return &wake.Alarm{
		ID:            r.ID,
		Label:         r.Label,
		Time:          r.Time,
		Period:        wake.Period(r.Period),
		Schedule:      r.Schedule,
		Enabled:       r.Enabled,
		Challenge:     r.Challenge,
		ChallengeType: r.ChallengeType,
		ChallengeIcon: r.ChallengeIcon,
		Difficulty:    wake.Difficulty(r.Difficulty),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func newAlarmRow(a *wake.Alarm) alarmRow {
	difficulty := a.Difficulty
	if difficulty == "" {
		difficulty = wake.DifficultyMedium
	}
	return alarmRow{
		ID:            a.ID,
		Label:         a.Label,
		Time:          a.Time,
		Period:        string(a.Period),
		Schedule:      a.Schedule,
		Enabled:       a.Enabled,
		Challenge:     a.Challenge,
		ChallengeType: a.ChallengeType,
		ChallengeIcon: a.ChallengeIcon,
		Difficulty:    string(difficulty),
		CreatedAt:     a.CreatedAt.UTC(),
		UpdatedAt:     a.UpdatedAt.UTC(),
	}
}

type completionRow struct {
	ID             string    `db:"id"`
	AlarmID        string    `db:"alarm_id"`
	TargetTime     time.Time `db:"target_time"`
	ActualTime     time.Time `db:"actual_time"`
	CognitiveScore int       `db:"cognitive_score"`
	ReactionTimeMS int64     `db:"reaction_time_ms"`
	ChallengeType  string    `db:"challenge_type"`
	Date           string    `db:"date"`
}

func (r *completionRow) toCompletion() *wake.AlarmCompletion {
	return &wake.AlarmCompletion{
		ID:             r.ID,
		AlarmID:        r.AlarmID,
		TargetTime:     r.TargetTime,
		ActualTime:     r.ActualTime,
		CognitiveScore: r.CognitiveScore,
		ReactionTime:   time.Duration(r.ReactionTimeMS) * time.Millisecond,
		ChallengeType:  r.ChallengeType,
		Date:           r.Date,
	}
}

// Alarm operations

const alarmColumns = `id, label, time, period, schedule, enabled, challenge,
	challenge_type, challenge_icon, difficulty, created_at, updated_at`

func (s *SQLiteRepository) ListAlarms(ctx context.Context) ([]*wake.Alarm, error) {
	var rows []alarmRow
	err := s.db.SelectContext(ctx, &rows, "SELECT "+alarmColumns+" FROM alarms ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("listing alarms: %w", err)
	}
	alarms := make([]*wake.Alarm, len(rows))
	for i := range rows {
		alarms[i] = rows[i].toAlarm()
	}
	return alarms, nil
}

func (s *SQLiteRepository) GetAlarm(ctx context.Context, id string) (*wake.Alarm, error) {
	var row alarmRow
	err := s.db.GetContext(ctx, &row, "SELECT "+alarmColumns+" FROM alarms WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting alarm %s: %w", id, err)
	}
	return row.toAlarm(), nil
}

func (s *SQLiteRepository) InsertAlarm(ctx context.Context, a *wake.Alarm) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO alarms (`+alarmColumns+`)
		VALUES (:id, :label, :time, :period, :schedule, :enabled, :challenge,
			:challenge_type, :challenge_icon, :difficulty, :created_at, :updated_at)`,
		newAlarmRow(a))
	if err != nil {
		return fmt.Errorf("inserting alarm: %w", err)
	}
	return nil
}

func (s *SQLiteRepository) UpdateAlarm(ctx context.Context, a *wake.Alarm) error {
	result, err := s.db.NamedExecContext(ctx, `
		UPDATE alarms SET
			label = :label, time = :time, period = :period, schedule = :schedule,
			enabled = :enabled, challenge = :challenge, challenge_type = :challenge_type,
			challenge_icon = :challenge_icon, difficulty = :difficulty, updated_at = :updated_at
		WHERE id = :id`,
		newAlarmRow(a))
	if err != nil {
		return fmt.Errorf("updating alarm %s: %w", a.ID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("alarm %s not found", a.ID)
	}
	return nil
}

func (s *SQLiteRepository) DeleteAlarm(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM alarms WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting alarm %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("alarm %s not found", id)
	}
	return nil
}

// Completion operations

func (s *SQLiteRepository) InsertCompletion(ctx context.Context, c *wake.AlarmCompletion) error {
	row := completionRow{
		ID:             c.ID,
		AlarmID:        c.AlarmID,
		TargetTime:     c.TargetTime.UTC(),
		ActualTime:     c.ActualTime.UTC(),
		CognitiveScore: c.CognitiveScore,
		ReactionTimeMS: c.ReactionTime.Milliseconds(),
		ChallengeType:  c.ChallengeType,
		Date:           c.Date,
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO alarm_completions
			(id, alarm_id, target_time, actual_time, cognitive_score, reaction_time_ms, challenge_type, date)
		VALUES
			(:id, :alarm_id, :target_time, :actual_time, :cognitive_score, :reaction_time_ms, :challenge_type, :date)`,
		row)
	if err != nil {
		return fmt.Errorf("inserting completion: %w", err)
	}
	return nil
}

func (s *SQLiteRepository) ListCompletions(ctx context.Context, limit int) ([]*wake.AlarmCompletion, error) {
	if limit <= 0 {
		limit = -1
	}
	var rows []completionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, alarm_id, target_time, actual_time, cognitive_score, reaction_time_ms, challenge_type, date
		FROM alarm_completions
		ORDER BY actual_time DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing completions: %w", err)
	}
	out := make([]*wake.AlarmCompletion, len(rows))
	for i := range rows {
		out[i] = rows[i].toCompletion()
	}
	return out, nil
}

// Path returns the database file path, or "" when wrapping a connection.
func (s *SQLiteRepository) Path() string {
	return s.path
}

// MigrateUp applies pending schema migrations.
func (s *SQLiteRepository) MigrateUp() error {
	return migrations.MigrateUp(s.db.DB)
}

// CheckMigrations verifies the schema is current.
func (s *SQLiteRepository) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db.DB)
}

// BackupTo writes a complete copy of the database to destPath using
// VACUUM INTO. destPath must not exist or be empty.
func (s *SQLiteRepository) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

func (s *SQLiteRepository) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ wake.AlarmRepository = (*SQLiteRepository)(nil)
