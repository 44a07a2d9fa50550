package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/observability/metrics"
)

func TestRunStoresOnEveryTarget(t *testing.T) {
	t.Parallel()

	content := []byte("SQLite format 3\x00 catches")
	first := &memoryTarget{name: "first"}
	second := &memoryTarget{name: "second"}

	reg := prometheus.NewRegistry()
	bm, err := metrics.NewBackupMetrics(reg)
	require.NoError(t, err)

	m := newTestManager(t, &fakeSource{content: content}, WithTargets(first), WithMetrics(bm), WithAppVersion("1.2.3"))
	require.NoError(t, m.AddTarget(second))

	res, err := m.Run(t.Context())
	require.NoError(t, err)
	assert.False(t, res.Failed())
	assert.FileExists(t, res.Path)
	require.Len(t, res.Targets, 2)

	sum := sha256.Sum256(content)
	meta := res.Metadata
	assert.Equal(t, MetadataVersion, meta.Version)
	assert.NotEmpty(t, meta.ID)
	assert.Equal(t, "trolltrack_backup_20240621_150000.db", meta.FileName)
	assert.Equal(t, int64(len(content)), meta.Size)
	assert.Equal(t, hex.EncodeToString(sum[:]), meta.Checksum)
	assert.Equal(t, "sqlite", meta.Database)
	assert.Equal(t, "1.2.3", meta.AppVersion)
	assert.Equal(t, testNow, meta.Timestamp)

	require.Len(t, first.stored, 1)
	require.Len(t, second.stored, 1)
	assert.Equal(t, meta.ID, second.stored[0].ID)
	assert.Positive(t, testutil.CollectAndCount(reg))
}

func TestRunContinuesPastFailingTarget(t *testing.T) {
	t.Parallel()

	broken := &memoryTarget{name: "broken", storeErr: fmt.Errorf("530 login incorrect")}
	good := &memoryTarget{name: "good"}
	m := newTestManager(t, &fakeSource{content: []byte("db")}, WithTargets(broken, good))

	res, err := m.Run(t.Context())
	require.NoError(t, err, "target failures are reported per target")
	assert.True(t, res.Failed())
	assert.Equal(t, "530 login incorrect", res.Targets[0].Error)
	assert.Empty(t, res.Targets[1].Error)
	assert.Len(t, good.stored, 1)
	assert.FileExists(t, res.Path)
}

func TestRunSourceFailure(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeSource{fail: true})
	_, err := m.Run(t.Context())
	assert.True(t, errors.IsCategory(err, errors.CategoryPersistence))
}

func TestRunInsufficientSpace(t *testing.T) {
	t.Parallel()

	target := &memoryTarget{name: "never"}
	m := newTestManager(t, &fakeSource{content: []byte("db"), size: 10 << 20}, WithTargets(target))
	m.freeSpace = func(context.Context, string) (uint64, error) { return 20 << 20, nil }

	_, err := m.Run(t.Context())
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
	assert.Empty(t, target.stored)
}

func TestRunUnknownFreeSpaceProceeds(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeSource{content: []byte("db")})
	m.freeSpace = func(context.Context, string) (uint64, error) { return 0, fmt.Errorf("statfs unsupported") }

	_, err := m.Run(t.Context())
	require.NoError(t, err)
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	src := &fakeSource{content: []byte("db"), block: make(chan struct{})}
	m := newTestManager(t, src)

	done := make(chan error, 1)
	go func() {
		_, err := m.Run(t.Context())
		done <- err
	}()

	require.Eventually(t, func() bool {
		if m.running.TryLock() {
			m.running.Unlock()
			return false
		}
		return true
	}, time.Second, 5*time.Millisecond)

	_, err := m.Run(t.Context())
	assert.True(t, errors.IsCategory(err, errors.CategoryState))

	close(src.block)
	require.NoError(t, <-done)
}

func TestListMergesTargets(t *testing.T) {
	t.Parallel()

	older := BackupInfo{Metadata: Metadata{ID: "a", Timestamp: testNow.Add(-time.Hour)}, Target: "one"}
	newer := BackupInfo{Metadata: Metadata{ID: "b", Timestamp: testNow}, Target: "two"}
	one := &memoryTarget{name: "one", stored: []BackupInfo{older}}
	two := &memoryTarget{name: "two", stored: []BackupInfo{newer}}
	broken := &memoryTarget{name: "broken", storeErr: fmt.Errorf("unreachable")}

	m := newTestManager(t, &fakeSource{}, WithTargets(one, broken, two))
	infos, err := m.List(t.Context())
	require.Error(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "b", infos[0].ID)
	assert.Equal(t, "a", infos[1].ID)
}

func TestNewManagerRequiresDir(t *testing.T) {
	t.Parallel()

	_, err := NewManager(&conf.Settings{}, &fakeSource{}, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestMetadataNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "x.db.meta.json", MetadataName("x.db"))
	assert.True(t, IsMetadataName("x.db.meta.json"))
	assert.False(t, IsMetadataName("x.db"))
}
