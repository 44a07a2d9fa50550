package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/trolltrack/trolltrack/internal/logger"
)

// BackupFilePrefix starts every backup file name
const BackupFilePrefix = "trolltrack_backup_"

// backupTimeLayout completes the backup file name, e.g.
// trolltrack_backup_20240621_153000.db
const backupTimeLayout = "20060102_150405"

// ClearAll deletes every catch, location, program and lure and reseeds the
// species table.
func (s *Store) ClearAll(ctx context.Context) error {
	start := time.Now()
	err := s.transaction(ctx, "clear_all", func(tx *gorm.DB) error {
		// children before parents so foreign keys hold throughout
		for _, model := range []any{&CatchRecord{}, &LocationFix{}, &LureImage{}, &Lure{}, &Program{}, &FishInfo{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return seedFishTable(tx)
	})
	err = passthrough(err, "clear_all")
	s.observe("clear_all", start, err)
	if err == nil {
		s.log.Warn("all catch data cleared")
	}
	return err
}

// DatabaseSize returns the database size in bytes, or 0 when it cannot be
// determined.
func (s *Store) DatabaseSize(ctx context.Context) int64 {
	db, err := s.conn(ctx)
	if err != nil {
		s.log.Warn("database size unavailable", logger.Error(err))
		return 0
	}
	size, err := s.dialect.size(ctx, db)
	if err != nil {
		s.log.Warn("database size unavailable", logger.Error(err))
		return 0
	}
	if s.metrics != nil {
		s.metrics.UpdateDatabaseSize(size)
	}
	return size
}

// Backup writes a copy of the database into dir and returns its path, or ""
// when the backup failed.
func (s *Store) Backup(ctx context.Context, dir string) string {
	start := time.Now()
	path, err := s.backup(ctx, dir)
	s.observe("backup", start, err)
	if err != nil {
		s.log.Error("database backup failed", logger.String("dir", dir), logger.Error(err))
		return ""
	}
	s.log.Info("database backed up", logger.String("path", path), logger.Duration("elapsed", time.Since(start)))
	return path
}

func (s *Store) backup(ctx context.Context, dir string) (string, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return "", err
	}
	if dir == "" {
		return "", validationError("backup directory is required", "dir", dir)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", dbError(err, "backup", "dir", dir)
	}

	name := BackupFilePrefix + s.now().Format(backupTimeLayout) + ".db"
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); err == nil {
		return "", dbError(fmt.Errorf("backup file %s already exists", dest), "backup")
	}

	if err := s.dialect.backup(ctx, db, dest); err != nil {
		return "", dbError(err, "backup", "dest", dest)
	}
	return dest, nil
}

// UpdateTableMetrics publishes row counts for every table.
func (s *Store) UpdateTableMetrics(ctx context.Context) error {
	if s.metrics == nil {
		return nil
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	for _, model := range allModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return dbError(err, "table_metrics")
		}
		var n int64
		if err := db.Model(model).Count(&n).Error; err != nil {
			return dbError(err, "table_metrics", "table", stmt.Table)
		}
		s.metrics.UpdateTableRowCount(stmt.Table, n)
	}
	return nil
}
