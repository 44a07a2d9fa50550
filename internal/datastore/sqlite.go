package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sqliteDialect stores everything in one file in the data directory
type sqliteDialect struct {
	path string
}

func (d *sqliteDialect) name() string { return "sqlite" }

func (d *sqliteDialect) open(gcfg *gorm.Config) (*gorm.DB, error) {
	if d.path == "" {
		return nil, fmt.Errorf("sqlite database path is not set")
	}
	if d.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(d.path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", d.path)
	db, err := gorm.Open(sqlite.Open(dsn), gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// one writer avoids SQLITE_BUSY between concurrent transactions
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// size is the main file plus its WAL
func (d *sqliteDialect) size(_ context.Context, _ *gorm.DB) (int64, error) {
	info, err := os.Stat(d.path)
	if err != nil {
		return 0, err
	}
	total := info.Size()
	if wal, err := os.Stat(d.path + "-wal"); err == nil {
		total += wal.Size()
	}
	return total, nil
}

// backup writes a consistent copy with VACUUM INTO
func (d *sqliteDialect) backup(ctx context.Context, db *gorm.DB, dest string) error {
	escaped := strings.ReplaceAll(dest, "'", "''")
	return db.WithContext(ctx).Exec(fmt.Sprintf("VACUUM INTO '%s'", escaped)).Error
}
