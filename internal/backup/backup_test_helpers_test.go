package backup

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/logger"
)

var testNow = time.Date(2024, 6, 21, 15, 0, 0, 0, time.UTC)

// fakeSource writes a small file the way the datastore's VACUUM INTO does.
type fakeSource struct {
	content []byte
	fail    bool
	size    int64
	block   chan struct{}
}

func (f *fakeSource) Backup(_ context.Context, dir string) string {
	if f.block != nil {
		<-f.block
	}
	if f.fail {
		return ""
	}
	path := filepath.Join(dir, "trolltrack_backup_20240621_150000.db")
	if err := os.WriteFile(path, f.content, 0o600); err != nil {
		return ""
	}
	return path
}

func (f *fakeSource) DatabaseSize(context.Context) int64 { return f.size }

// memoryTarget keeps stored metadata in memory.
type memoryTarget struct {
	name     string
	storeErr error

	mu     sync.Mutex
	stored []BackupInfo
}

func (m *memoryTarget) Name() string { return m.name }

func (m *memoryTarget) Store(_ context.Context, sourcePath string, meta *Metadata) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	if _, err := os.Stat(sourcePath); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, BackupInfo{Metadata: *meta, Target: m.name})
	return nil
}

func (m *memoryTarget) List(context.Context) ([]BackupInfo, error) {
	if m.storeErr != nil {
		return nil, m.storeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BackupInfo(nil), m.stored...), nil
}

func (m *memoryTarget) Delete(context.Context, string) error { return nil }

func (m *memoryTarget) Validate() error { return nil }

func newTestManager(t *testing.T, src Source, opts ...Option) *Manager {
	t.Helper()
	settings := &conf.Settings{Backup: conf.BackupSettings{Dir: filepath.Join(t.TempDir(), "backups")}}
	m, err := NewManager(settings, src, logger.NewDiscardLogger(), opts...)
	require.NoError(t, err)
	m.now = func() time.Time { return testNow }
	m.freeSpace = func(context.Context, string) (uint64, error) { return 1 << 40, nil }
	return m
}
