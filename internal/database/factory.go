package database

import (
	"fmt"
	"os"
	"path/filepath"

	"wake-go/internal/config"
)

// NewRepositoryFromConfig opens the alarm store selected by cfg.Type.
// A memory store is migrated immediately since it starts empty every time.
func NewRepositoryFromConfig(cfg config.DatabaseConfig, deviceID string) (*SQLiteRepository, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteRepository(filepath.Join(cfg.DataDir, deviceID+".db"))
	case "memory":
		repo, err := NewSQLiteRepository(":memory:")
		if err != nil {
			return nil, err
		}
		if err := repo.MigrateUp(); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
