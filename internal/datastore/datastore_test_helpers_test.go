package datastore

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/events"
	"github.com/trolltrack/trolltrack/internal/logger"
)

// testNow is mid-afternoon on the summer solstice in local time
var testNow = time.Date(2024, 6, 21, 15, 0, 0, 0, time.Local)

func createTestSettings(t *testing.T, opts ...func(*conf.Settings)) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{
		Database: conf.DatabaseSettings{
			Type: "sqlite",
			Path: filepath.Join(t.TempDir(), "trolltrack_test.db"),
		},
	}
	for _, opt := range opts {
		opt(settings)
	}
	return settings
}

// newTestStore returns a SQLite store in a temp dir with a fixed clock
func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	store, err := New(createTestSettings(t), logger.NewDiscardLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// testFix is a fresh fix at the Maumee Bay reefs
func testFix() *LocationFix {
	return &LocationFix{Latitude: 41.7008, Longitude: -83.0453}
}

func saveTestCatch(t *testing.T, s *Store, species string, at time.Time, weight float64) *CatchRecord {
	t.Helper()
	c := &CatchRecord{
		Timestamp: at,
		FishInfo:  &FishInfo{CommonName: species},
		Location:  testFix(),
		Weight:    weight,
	}
	require.NoError(t, s.SaveCatch(t.Context(), c))
	return c
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) TryPublish(e events.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return true
}

func (p *capturePublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
