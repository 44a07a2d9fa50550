// Package datastore persists catches, programs, lures and the species lookup
// table through GORM. SQLite is the default backend; MySQL serves a shared
// catch log.
package datastore

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/events"
	"github.com/trolltrack/trolltrack/internal/logger"
	"github.com/trolltrack/trolltrack/internal/observability/metrics"
)

// slowQueryThreshold marks queries logged as slow
const slowQueryThreshold = 500 * time.Millisecond

// Interface is the persistence contract used by the pages, the API and the CLI.
type Interface interface {
	SaveCatch(ctx context.Context, c *CatchRecord) error
	GetAllCatches(ctx context.Context) ([]CatchRecord, error)
	GetCatchesInRange(ctx context.Context, start, end time.Time) ([]CatchRecord, error)
	GetTodaysCatches(ctx context.Context) ([]CatchRecord, error)
	GetRecentCatches(ctx context.Context, limit int) ([]CatchRecord, error)
	GetCatch(ctx context.Context, id string) (*CatchRecord, error)
	DeleteCatch(ctx context.Context, id string) error
	GetCatchStatistics(ctx context.Context) (*CatchStatistics, error)
	GetBestCatchToday(ctx context.Context) (*CatchRecord, error)
	GetFishingTimeToday(ctx context.Context) (time.Duration, error)

	GetFishInfo(ctx context.Context) ([]FishInfo, error)
	FindFish(ctx context.Context, name string) (*FishInfo, error)

	SaveProgram(ctx context.Context, p *Program) error
	GetPrograms(ctx context.Context) ([]Program, error)
	GetProgram(ctx context.Context, id string) (*Program, error)
	SetActiveProgram(ctx context.Context, id string) error
	GetActiveProgram(ctx context.Context) (*Program, error)
	DeleteProgram(ctx context.Context, id string) error

	SaveLure(ctx context.Context, l *Lure) error
	GetLures(ctx context.Context) ([]Lure, error)
	GetLure(ctx context.Context, id string) (*Lure, error)
	FindLure(ctx context.Context, manufacturer, color string, length float64) (*Lure, error)
	DeleteLure(ctx context.Context, id string) error
	CountLures(ctx context.Context) (int64, error)

	ClearAll(ctx context.Context) error
	DatabaseSize(ctx context.Context) int64
	Backup(ctx context.Context, dir string) string
	Close() error
}

// dialect opens one database backend and knows its maintenance commands
type dialect interface {
	name() string
	open(gcfg *gorm.Config) (*gorm.DB, error)
	size(ctx context.Context, db *gorm.DB) (int64, error)
	backup(ctx context.Context, db *gorm.DB, dest string) error
}

// Store implements Interface. The database is opened and migrated on first
// use; a failed initialisation is retried by the next call.
type Store struct {
	dialect dialect
	log     logger.Logger
	metrics *metrics.DatastoreMetrics
	events  events.Publisher
	now     func() time.Time

	mu     sync.Mutex
	db     *gorm.DB
	closed bool
}

var _ Interface = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithMetrics records operation and size metrics.
func WithMetrics(m *metrics.DatastoreMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithEventPublisher publishes catch saved and deleted events.
func WithEventPublisher(p events.Publisher) Option {
	return func(s *Store) { s.events = p }
}

// WithClock overrides the time source used for "today" windows.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store for the configured backend. No connection is made
// until the first operation.
func New(settings *conf.Settings, log logger.Logger, opts ...Option) (*Store, error) {
	if log == nil {
		log = logger.NewDiscardLogger()
	}

	var d dialect
	switch settings.Database.Type {
	case "", "sqlite":
		d = &sqliteDialect{path: settings.Database.Path}
	case "mysql":
		d = &mysqlDialect{cfg: settings.Database.MySQL}
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Database.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	s := &Store{
		dialect: d,
		log:     log.Module("datastore"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open initialises the database eagerly. Calling it is optional.
func (s *Store) Open(ctx context.Context) error {
	_, err := s.conn(ctx)
	return err
}

// conn returns the initialised database handle, opening and migrating it
// on first use.
func (s *Store) conn(ctx context.Context) (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.Newf("datastore is closed").
			Component("datastore").
			Category(errors.CategoryState).
			Build()
	}
	if s.db != nil {
		return s.db.WithContext(ctx), nil
	}

	start := time.Now()
	db, err := s.dialect.open(&gorm.Config{
		Logger: logger.NewGormLogger(s.log, slowQueryThreshold),
		NowFunc: func() time.Time {
			return s.now().UTC()
		},
	})
	if err != nil {
		return nil, dbError(err, "open", "backend", s.dialect.name())
	}

	if err := migrate(ctx, db); err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
		return nil, dbError(err, "migrate", "backend", s.dialect.name())
	}

	s.db = db
	s.log.Info("database initialized",
		logger.String("backend", s.dialect.name()),
		logger.Int("schema_version", SchemaVersion),
		logger.Duration("elapsed", time.Since(start)))
	return s.db.WithContext(ctx), nil
}

// migrate creates missing tables, records the schema version and seeds the
// species table.
func migrate(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx)
	if err := tx.AutoMigrate(allModels()...); err != nil {
		return err
	}
	info := SchemaInfo{ID: 1}
	if err := tx.Where(SchemaInfo{ID: 1}).Assign(SchemaInfo{Version: SchemaVersion}).FirstOrCreate(&info).Error; err != nil {
		return err
	}
	return seedFishTable(tx)
}

func seedFishTable(tx *gorm.DB) error {
	for _, fish := range seedFish() {
		if err := tx.Where(FishInfo{ID: fish.ID}).FirstOrCreate(&fish).Error; err != nil {
			return err
		}
	}
	return nil
}

// Close releases the connection. Further calls fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	s.db = nil
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	return nil
}

// transaction runs fn in one database transaction and records the outcome
func (s *Store) transaction(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	err = db.Transaction(fn)
	if s.metrics != nil {
		s.metrics.RecordDuration(operation, time.Since(start).Seconds())
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
		}
		s.metrics.RecordTransaction(operation, status)
	}
	return err
}

// observe records a single-statement operation
func (s *Store) observe(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordDuration(operation, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordOperation(operation, metrics.StatusError)
		s.metrics.RecordError(operation, string(errors.CategoryOf(err)))
		return
	}
	s.metrics.RecordOperation(operation, metrics.StatusSuccess)
}

func (s *Store) publish(t events.Type, payload any) {
	if s.events != nil {
		s.events.TryPublish(events.New(t, "datastore", payload))
	}
}

// dayBounds returns local midnight of now's day and the next midnight
func dayBounds(now time.Time) (start, end time.Time) {
	y, m, d := now.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}
