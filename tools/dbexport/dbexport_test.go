package main

import (
	"bytes"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/logger"
)

// seedSource writes a small catch log and returns the database path
func seedSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.db")
	settings := &conf.Settings{Database: conf.DatabaseSettings{Type: "sqlite", Path: path}}
	store, err := datastore.New(settings, logger.NewDiscardLogger())
	require.NoError(t, err)
	ctx := t.Context()

	program := &datastore.Program{Name: "Lake Erie Walleye Survey"}
	require.NoError(t, store.SaveProgram(ctx, program))
	require.NoError(t, store.SetActiveProgram(ctx, program.ID))

	lure := &datastore.Lure{
		Manufacturer: "Reef Runner", Color: "Purple Demon", Length: 3.5,
		Images: []datastore.LureImage{{Path: "reef_runner_purple_demon.jpg"}},
	}
	require.NoError(t, store.SaveLure(ctx, lure))

	at := time.Date(2024, 6, 21, 9, 0, 0, 0, time.UTC)
	for i, species := range []string{"walleye", "perch", "walleye"} {
		c := &datastore.CatchRecord{
			Timestamp: at.Add(time.Duration(i) * time.Hour),
			FishInfo:  &datastore.FishInfo{CommonName: species},
			Location:  &datastore.LocationFix{Latitude: 41.7008, Longitude: -83.0453, Timestamp: at},
			ProgramID: &program.ID,
			LureID:    &lure.ID,
			Weight:    4.5 + float64(i),
			Length:    22,
		}
		require.NoError(t, store.SaveCatch(ctx, c))
	}
	require.NoError(t, store.Close())
	return path
}

func openSQLite(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), newGormConfig(false))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// PRAGMA foreign_keys is per connection
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestMigratorCopiesCatchLog(t *testing.T) {
	sourcePath := seedSource(t)
	cfg := &Config{SQLitePath: sourcePath, BatchSize: 2, AutoMigrate: true}

	var out bytes.Buffer
	m, err := newMigrator(cfg, openSQLite(t, sourcePath), openSQLite(t, filepath.Join(t.TempDir(), "target.db")), &out)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	stats, err := m.Run(t.Context())
	require.NoError(t, err)
	require.Len(t, stats.Tables, len(tables))

	byName := map[string]TableStats{}
	for _, ts := range stats.Tables {
		byName[ts.Name] = ts
	}
	assert.EqualValues(t, 3, byName["catches"].Migrated)
	assert.EqualValues(t, 1, byName["lures"].Migrated)
	assert.EqualValues(t, 1, byName["lure_images"].Migrated)
	assert.EqualValues(t, 1, byName["programs"].Migrated)
	assert.EqualValues(t, 3, byName["location_fixes"].Migrated)
	_, _, errs := stats.Totals()
	assert.Zero(t, errs)

	require.NoError(t, NewVerifier(m.sourceDB, m.targetDB, &out).Verify(t.Context()))

	// a second run only skips
	again, err := m.Run(t.Context())
	require.NoError(t, err)
	migrated, skipped, _ := again.Totals()
	assert.Zero(t, migrated)
	assert.Positive(t, skipped)

	var summary bytes.Buffer
	again.Print(&summary)
	assert.Contains(t, summary.String(), "TOTAL")
}

func TestVerifierDetectsMissingRows(t *testing.T) {
	sourcePath := seedSource(t)
	cfg := &Config{SQLitePath: sourcePath, BatchSize: 100, AutoMigrate: true}

	var out bytes.Buffer
	m, err := newMigrator(cfg, openSQLite(t, sourcePath), openSQLite(t, filepath.Join(t.TempDir(), "target.db")), &out)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	_, err = m.Run(t.Context())
	require.NoError(t, err)
	require.NoError(t, m.targetDB.Exec("DELETE FROM catches").Error)

	err = NewVerifier(m.sourceDB, m.targetDB, &out).Verify(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record counts do not match")
}

func TestConfigDSN(t *testing.T) {
	cfg := &Config{MySQLHost: "db.local", MySQLPort: 3307, MySQLUser: "angler", MySQLPass: "s3cret", MySQLDatabase: "catches"}
	assert.Equal(t, "angler:s3cret@tcp(db.local:3307)/catches?charset=utf8mb4&parseTime=True&loc=UTC", cfg.GetMySQLDSN())
	assert.Equal(t, "angler:****@tcp(db.local:3307)/catches?charset=utf8mb4&parseTime=True&loc=UTC", cfg.GetSanitizedMySQLDSN())

	cfg = &Config{MySQLDSN: "root@tcp(localhost:3306)/trolltrack"}
	assert.Equal(t, "root@tcp(localhost:3306)/trolltrack", cfg.GetSanitizedMySQLDSN())
}

func TestConfigLoad(t *testing.T) {
	sourcePath := seedSource(t)

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"ok", Config{SQLitePath: sourcePath, MySQLDSN: "u:p@tcp(h:1)/d", BatchSize: 100}, ""},
		{"missing source", Config{SQLitePath: filepath.Join(t.TempDir(), "nope.db"), MySQLDSN: "x", BatchSize: 1}, "not found"},
		{"no target", Config{SQLitePath: sourcePath, BatchSize: 1, ConfigPath: filepath.Join(t.TempDir(), "none.yaml")}, "--mysql-dsn"},
		{"zero batch", Config{SQLitePath: sourcePath, MySQLDSN: "x", BatchSize: 0}, "at least 1"},
		{"huge batch", Config{SQLitePath: sourcePath, MySQLDSN: "x", BatchSize: maxBatchSize + 1}, "too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Load()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigLoadFromTrollTrackConfig(t *testing.T) {
	sourcePath := seedSource(t)
	settings := conf.Default()
	settings.Database.Type = "mysql"
	settings.Database.Path = sourcePath
	settings.Database.MySQL = conf.MySQLSettings{Host: "db.local", Port: 3307, Username: "angler", Password: "pw", Database: "log"}
	settings.SetConfigPath(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, settings.Save())

	cfg := Config{ConfigPath: settings.ConfigPath(), BatchSize: 10}
	require.NoError(t, cfg.Load())
	assert.Equal(t, sourcePath, cfg.SQLitePath)
	assert.Equal(t, "db.local", cfg.MySQLHost)
	assert.Equal(t, 3307, cfg.MySQLPort)
	assert.Equal(t, "angler", cfg.MySQLUser)
}

func TestConfigLoadIgnoresMySQLSectionOfSQLiteConfig(t *testing.T) {
	sourcePath := seedSource(t)
	settings := conf.Default()
	settings.Database.Path = sourcePath
	settings.Database.MySQL.Host = "db.local"
	settings.SetConfigPath(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, settings.Save())

	cfg := Config{ConfigPath: settings.ConfigPath(), BatchSize: 10}
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--mysql-dsn or --mysql-host is required")
	assert.Empty(t, cfg.MySQLHost)
	assert.Equal(t, sourcePath, cfg.SQLitePath)
}

func TestExportToMySQL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MySQL container test in short mode")
	}
	ctx := t.Context()
	container, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("trolltrack"),
		tcmysql.WithUsername("angler"),
		tcmysql.WithPassword("trolltrack-test"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)

	cmd := rootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{
		"--sqlite-path", seedSource(t),
		"--mysql-host", host,
		"--mysql-port", strconv.Itoa(port),
		"--mysql-user", "angler",
		"--mysql-pass", "trolltrack-test",
		"--mysql-database", "trolltrack",
	})
	require.NoError(t, cmd.ExecuteContext(ctx), out.String())
	assert.Contains(t, out.String(), "Verification passed!")
}
