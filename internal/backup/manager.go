package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
	"github.com/trolltrack/trolltrack/internal/observability/metrics"
)

// minFreeSpace is kept free on the backup volume on top of the database size.
const minFreeSpace = 64 * 1024 * 1024

// Source produces a backup file. datastore.Store implements it.
type Source interface {
	// Backup writes a snapshot into dir and returns its path, or "" on failure.
	Backup(ctx context.Context, dir string) string
	// DatabaseSize returns the current size in bytes, or 0 when unknown.
	DatabaseSize(ctx context.Context) int64
}

// Result reports one Run.
type Result struct {
	Path     string         `json:"path"`
	Metadata Metadata       `json:"metadata"`
	Targets  []TargetResult `json:"targets"`
}

// TargetResult is the outcome for one target.
type TargetResult struct {
	Target string `json:"target"`
	Error  string `json:"error,omitempty"`
}

// Failed reports whether any target failed.
func (r *Result) Failed() bool {
	return slices.ContainsFunc(r.Targets, func(t TargetResult) bool { return t.Error != "" })
}

// Manager runs backups.
type Manager struct {
	source   Source
	dir      string
	database string
	version  string
	log      logger.Logger
	metrics  *metrics.BackupMetrics

	// freeSpace is replaceable in tests.
	freeSpace func(ctx context.Context, path string) (uint64, error)
	now       func() time.Time

	mu      sync.RWMutex
	targets []Target
	running sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics records backup metrics.
func WithMetrics(m *metrics.BackupMetrics) Option {
	return func(mg *Manager) { mg.metrics = m }
}

// WithAppVersion stamps the version into metadata.
func WithAppVersion(v string) Option {
	return func(mg *Manager) { mg.version = v }
}

// WithTargets adds targets at construction.
func WithTargets(targets ...Target) Option {
	return func(mg *Manager) { mg.targets = append(mg.targets, targets...) }
}

// NewManager creates a manager writing snapshots to settings.Backup.Dir.
func NewManager(settings *conf.Settings, source Source, log logger.Logger, opts ...Option) (*Manager, error) {
	dir := settings.Backup.Dir
	if dir == "" {
		return nil, errors.Newf("backup directory is not configured").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	database := settings.Database.Type
	if database == "" {
		database = "sqlite"
	}

	m := &Manager{
		source:    source,
		dir:       dir,
		database:  database,
		log:       log.Module("backup"),
		freeSpace: diskFree,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// AddTarget validates and registers a target.
func (m *Manager) AddTarget(t Target) error {
	if err := t.Validate(); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Context("target", t.Name()).
			Build()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets = append(m.targets, t)
	return nil
}

// Targets returns the registered targets.
func (m *Manager) Targets() []Target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.targets)
}

// Run takes a snapshot and stores it on every target. A failing target
// does not stop the others; the local snapshot is kept either way. Only one
// Run executes at a time.
func (m *Manager) Run(ctx context.Context) (*Result, error) {
	if !m.running.TryLock() {
		return nil, errors.Newf("a backup is already running").
			Component("backup").
			Category(errors.CategoryState).
			Build()
	}
	defer m.running.Unlock()

	start := time.Now()
	res, err := m.run(ctx)
	if m.metrics != nil {
		m.metrics.RecordDuration("run", time.Since(start).Seconds())
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
			m.metrics.RecordError("run", string(errors.CategoryOf(err)))
		}
		m.metrics.RecordOperation("run", status)
	}
	return res, err
}

func (m *Manager) run(ctx context.Context) (*Result, error) {
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return nil, m.fileError(err, "create_dir")
	}
	if err := m.checkSpace(ctx); err != nil {
		return nil, err
	}

	path := m.source.Backup(ctx, m.dir)
	if path == "" {
		return nil, errors.Newf("datastore did not produce a backup").
			Component("backup").
			Category(errors.CategoryPersistence).
			Context("dir", m.dir).
			Build()
	}

	meta, err := m.describe(path)
	if err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.RecordBackupSize(meta.Size)
	}
	m.log.Info("backup created",
		logger.String("path", path),
		logger.Int64("size", meta.Size),
		logger.String("id", meta.ID))

	res := &Result{Path: path, Metadata: meta}
	for _, t := range m.Targets() {
		tr := TargetResult{Target: t.Name()}
		if err := t.Store(ctx, path, &meta); err != nil {
			tr.Error = err.Error()
			m.log.Error("backup target failed",
				logger.String("target", t.Name()),
				logger.Error(err))
		} else {
			m.log.Info("backup stored", logger.String("target", t.Name()))
		}
		if m.metrics != nil {
			status := metrics.StatusSuccess
			if tr.Error != "" {
				status = metrics.StatusError
			}
			m.metrics.RecordTargetUpload(t.Name(), status)
		}
		res.Targets = append(res.Targets, tr)
	}
	return res, nil
}

// List returns backups from every target. Targets that fail to list are
// skipped and their errors joined.
func (m *Manager) List(ctx context.Context) ([]BackupInfo, error) {
	var all []BackupInfo
	var errs []error
	for _, t := range m.Targets() {
		infos, err := t.List(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		all = append(all, infos...)
	}
	SortNewestFirst(all)
	return all, errors.Join(errs...)
}

// SortNewestFirst orders backups by timestamp, newest first.
func SortNewestFirst(infos []BackupInfo) {
	slices.SortStableFunc(infos, func(a, b BackupInfo) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}

func (m *Manager) checkSpace(ctx context.Context) error {
	need := uint64(minFreeSpace)
	if size := m.source.DatabaseSize(ctx); size > 0 {
		need += uint64(size)
	}
	free, err := m.freeSpace(ctx, m.dir)
	if err != nil {
		// Unknown free space should not block a backup.
		m.log.Warn("could not determine free disk space", logger.Error(err))
		return nil
	}
	if free < need {
		return errors.Newf("insufficient disk space for backup: %d bytes free, %d needed", free, need).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("dir", m.dir).
			Build()
	}
	return nil
}

func (m *Manager) describe(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, m.fileError(err, "open")
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return Metadata{}, m.fileError(err, "checksum")
	}
	return Metadata{
		Version:    MetadataVersion,
		ID:         uuid.NewString(),
		FileName:   filepath.Base(path),
		Timestamp:  m.now().UTC(),
		Size:       size,
		Checksum:   hex.EncodeToString(h.Sum(nil)),
		Database:   m.database,
		AppVersion: m.version,
	}, nil
}

func (m *Manager) fileError(err error, op string) error {
	return errors.New(err).
		Component("backup").
		Category(errors.CategoryFileIO).
		Context("operation", op).
		Context("dir", m.dir).
		Build()
}

func diskFree(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}
