package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/logger"
)

// slowQueryThreshold marks statements logged at warn in verbose mode
const slowQueryThreshold = time.Second

// table is one copied table, listed parents first
type table struct {
	name      string
	batchSize int
	migrate   func(ctx context.Context, m *Migrator, name string, batchSize int) (*TableStats, error)
}

var tables = []table{
	{"fish_info", 1000, migrateTable[datastore.FishInfo]},
	{"programs", 1000, migrateTable[datastore.Program]},
	{"location_fixes", 5000, migrateTable[datastore.LocationFix]},
	{"lures", 1000, migrateTable[datastore.Lure]},
	{"lure_images", 5000, migrateTable[datastore.LureImage]},
	{"catches", 2000, migrateTable[datastore.CatchRecord]},
}

// Migrator copies the catch log from SQLite into another database.
type Migrator struct {
	cfg      Config
	sourceDB *gorm.DB
	targetDB *gorm.DB
	out      io.Writer
}

// MigrationStats tracks migration statistics.
type MigrationStats struct {
	StartTime time.Time
	EndTime   time.Time
	Tables    []TableStats
}

// TableStats tracks per-table migration statistics.
type TableStats struct {
	Name      string
	Migrated  int64
	Skipped   int64
	Errors    int64
	Duration  time.Duration
	BatchSize int
}

// Totals sums the per-table counters.
func (s *MigrationStats) Totals() (migrated, skipped, errs int64) {
	for i := range s.Tables {
		migrated += s.Tables[i].Migrated
		skipped += s.Tables[i].Skipped
		errs += s.Tables[i].Errors
	}
	return migrated, skipped, errs
}

// Print writes the summary table.
func (s *MigrationStats) Print(w io.Writer) {
	rule := strings.Repeat("-", 70)
	fmt.Fprintln(w, "\n=== Migration Summary ===")
	fmt.Fprintf(w, "Duration: %s\n\n", s.EndTime.Sub(s.StartTime).Round(time.Millisecond))
	fmt.Fprintf(w, "%-25s %10s %10s %10s %12s\n", "Table", "Migrated", "Skipped", "Errors", "Duration")
	fmt.Fprintln(w, rule)
	for _, t := range s.Tables {
		fmt.Fprintf(w, "%-25s %10d %10d %10d %12s\n",
			t.Name, t.Migrated, t.Skipped, t.Errors, t.Duration.Round(time.Millisecond))
	}
	fmt.Fprintln(w, rule)
	migrated, skipped, errs := s.Totals()
	fmt.Fprintf(w, "%-25s %10d %10d %10d\n", "TOTAL", migrated, skipped, errs)
}

// NewMigrator opens the SQLite source and the MySQL target.
func NewMigrator(cfg *Config, out io.Writer) (*Migrator, error) {
	gormConfig := newGormConfig(cfg.Verbose)

	sourceDB, err := gorm.Open(sqlite.Open(cfg.SQLitePath), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	targetDB, err := gorm.Open(mysql.Open(cfg.GetMySQLDSN()), gormConfig)
	if err != nil {
		closeDB(sourceDB)
		return nil, fmt.Errorf("failed to open MySQL database %s: %w", cfg.GetSanitizedMySQLDSN(), err)
	}
	return newMigrator(cfg, sourceDB, targetDB, out)
}

// newMigrator checks both connections and takes ownership of them
func newMigrator(cfg *Config, sourceDB, targetDB *gorm.DB, out io.Writer) (*Migrator, error) {
	m := &Migrator{cfg: *cfg, sourceDB: sourceDB, targetDB: targetDB, out: out}
	for name, db := range map[string]*gorm.DB{"source": sourceDB, "target": targetDB} {
		sqlDB, err := db.DB()
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to get %s connection: %w", name, err)
		}
		if err := sqlDB.Ping(); err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to ping %s database: %w", name, err)
		}
	}
	fmt.Fprintln(out, "Database connections established successfully")
	return m, nil
}

func newGormConfig(verbose bool) *gorm.Config {
	level := logger.LogLevelError
	if verbose {
		level = logger.LogLevelTrace
	}
	log := logger.NewSlogLogger(os.Stderr, level, time.Local).Module("dbexport")
	return &gorm.Config{Logger: logger.NewGormLogger(log, slowQueryThreshold)}
}

func closeDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Close closes both database connections.
func (m *Migrator) Close() {
	closeDB(m.sourceDB)
	closeDB(m.targetDB)
}

// Run copies every table. Rows already in the target are skipped, so an
// interrupted export can be run again.
func (m *Migrator) Run(ctx context.Context) (*MigrationStats, error) {
	stats := &MigrationStats{StartTime: time.Now()}

	if m.cfg.DropTables {
		if err := m.dropTables(ctx); err != nil {
			return nil, fmt.Errorf("failed to drop tables: %w", err)
		}
	}
	if m.cfg.AutoMigrate {
		if err := m.autoMigrateTables(ctx); err != nil {
			return nil, fmt.Errorf("failed to auto-migrate tables: %w", err)
		}
	}

	if err := m.setForeignKeyChecks(ctx, false); err != nil {
		return nil, fmt.Errorf("failed to disable foreign key checks: %w", err)
	}
	defer func() { _ = m.setForeignKeyChecks(context.WithoutCancel(ctx), true) }()

	if m.cfg.Clean {
		m.cleanTables(ctx)
	}

	for _, t := range tables {
		batchSize := t.batchSize
		if m.cfg.BatchSize > 0 && m.cfg.BatchSize < batchSize {
			batchSize = m.cfg.BatchSize
		}
		ts, err := t.migrate(ctx, m, t.name, batchSize)
		if err != nil {
			return stats, fmt.Errorf("failed to migrate %s: %w", t.name, err)
		}
		stats.Tables = append(stats.Tables, *ts)
	}

	stats.EndTime = time.Now()
	return stats, nil
}

// setForeignKeyChecks toggles constraint checks on the target so tables
// can be loaded in any order
func (m *Migrator) setForeignKeyChecks(ctx context.Context, on bool) error {
	db := m.targetDB.WithContext(ctx)
	if m.targetDB.Dialector.Name() == "sqlite" {
		return db.Exec(fmt.Sprintf("PRAGMA foreign_keys = %t", on)).Error
	}
	v := 0
	if on {
		v = 1
	}
	return db.Exec(fmt.Sprintf("SET FOREIGN_KEY_CHECKS=%d", v)).Error
}

// dropTables drops every catch log table from the target, children first.
func (m *Migrator) dropTables(ctx context.Context) error {
	fmt.Fprintln(m.out, "Dropping all tables from target database...")
	if err := m.setForeignKeyChecks(ctx, false); err != nil {
		return err
	}
	models := datastore.Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := m.targetDB.WithContext(ctx).Migrator().DropTable(models[i]); err != nil {
			fmt.Fprintf(m.out, "Warning: could not drop %T: %v\n", models[i], err)
		}
	}
	return m.setForeignKeyChecks(ctx, true)
}

// autoMigrateTables creates the schema in the target.
func (m *Migrator) autoMigrateTables(ctx context.Context) error {
	fmt.Fprintln(m.out, "Creating tables in target database...")
	for _, model := range datastore.Models() {
		if err := m.targetDB.WithContext(ctx).AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}
	return nil
}

// cleanTables empties the copied tables in the target.
func (m *Migrator) cleanTables(ctx context.Context) {
	fmt.Fprintln(m.out, "Cleaning target tables...")
	for i := len(tables) - 1; i >= 0; i-- {
		name := tables[i].name
		db := m.targetDB.WithContext(ctx)
		if db.Exec("DELETE FROM "+name).Error != nil {
			fmt.Fprintf(m.out, "Warning: could not clean table %s\n", name)
			continue
		}
		if m.cfg.Verbose {
			fmt.Fprintf(m.out, "  Cleaned: %s\n", name)
		}
	}
}

// migrateTable copies one table in batches. A failed batch is counted and
// the copy goes on with the next one.
func migrateTable[T any](ctx context.Context, m *Migrator, name string, batchSize int) (*TableStats, error) {
	start := time.Now()
	stats := &TableStats{Name: name, BatchSize: batchSize}

	var sourceCount int64
	if err := m.sourceDB.WithContext(ctx).Model(new(T)).Count(&sourceCount).Error; err != nil {
		return stats, fmt.Errorf("failed to count source records: %w", err)
	}
	if sourceCount == 0 {
		fmt.Fprintf(m.out, "  %s: no records to migrate\n", name)
		stats.Duration = time.Since(start)
		return stats, nil
	}

	var processed int64
	batchNum := 0
	err := m.sourceDB.WithContext(ctx).Model(new(T)).FindInBatches(new([]T), batchSize, func(tx *gorm.DB, _ int) error {
		batchNum++
		records := tx.Statement.Dest.(*[]T)
		n := int64(len(*records))

		// associations are copied as their own tables
		result := m.targetDB.WithContext(ctx).
			Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(records)
		if result.Error != nil {
			stats.Errors += n
			fmt.Fprintf(m.out, "  Batch %d error: %v\n", batchNum, result.Error)
			return nil //nolint:nilerr // a failed batch does not stop the export
		}

		stats.Migrated += result.RowsAffected
		stats.Skipped += n - result.RowsAffected
		processed += n
		if m.cfg.Verbose || batchNum%10 == 0 {
			fmt.Fprintf(m.out, "  %s: %d/%d (%.1f%%)\n", name, processed, sourceCount,
				float64(processed)/float64(sourceCount)*100)
		}
		return nil
	}).Error
	if err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	fmt.Fprintf(m.out, "  %s: completed (%d migrated, %d skipped, %d errors) in %s\n",
		name, stats.Migrated, stats.Skipped, stats.Errors, stats.Duration.Round(time.Millisecond))
	return stats, nil
}
