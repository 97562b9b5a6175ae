package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Operation is one row of the CLI operation log.
type Operation struct {
	ID         int64        `db:"id"`
	Operation  string       `db:"operation"`
	Parameters string       `db:"parameters"`
	Status     string       `db:"status"`
	StartedAt  time.Time    `db:"started_at"`
	FinishedAt sql.NullTime `db:"finished_at"`
}

// CreateOperation records the start of a mutating command and returns its ID.
func (s *SQLiteRepository) CreateOperation(ctx context.Context, operation, parameters string, startedAt time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO operations (operation, parameters, status, started_at) VALUES (?, ?, 'running', ?)",
		operation, parameters, startedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("creating operation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading operation id: %w", err)
	}
	return id, nil
}

// FinishOperation stamps the final status of an operation.
func (s *SQLiteRepository) FinishOperation(ctx context.Context, id int64, status string, finishedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE operations SET status = ?, finished_at = ? WHERE id = ?",
		status, finishedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("finishing operation %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("operation %d not found", id)
	}
	return nil
}

// ListOperations returns up to limit operations, newest first.
func (s *SQLiteRepository) ListOperations(ctx context.Context, limit int) ([]*Operation, error) {
	if limit <= 0 {
		limit = -1
	}
	var ops []*Operation
	err := s.db.SelectContext(ctx, &ops,
		"SELECT id, operation, parameters, status, started_at, finished_at FROM operations ORDER BY id DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}
