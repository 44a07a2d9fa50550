package viewmodel

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/location"
	"github.com/trolltrack/trolltrack/internal/logger"
	"github.com/trolltrack/trolltrack/internal/weather"
)

// testNow is late morning so catches an hour either side stay on the same day.
var testNow = time.Date(2024, 6, 21, 11, 0, 0, 0, time.Local)

var lakeErie = location.Fix{Latitude: 41.7008, Longitude: -83.0453, Name: "Maumee Bay", Source: "fixture", Timestamp: testNow}

func createTestSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := conf.Default()
	settings.Database = conf.DatabaseSettings{Type: "sqlite", Path: filepath.Join(t.TempDir(), "trolltrack.db")}
	settings.SetConfigPath(filepath.Join(t.TempDir(), "config.yaml"))
	return settings
}

func newTestStore(t *testing.T, settings *conf.Settings) *datastore.Store {
	t.Helper()
	store, err := datastore.New(settings, logger.NewDiscardLogger(),
		datastore.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func saveCatch(t *testing.T, store *datastore.Store, species string, at time.Time, weight float64) *datastore.CatchRecord {
	t.Helper()
	c := &datastore.CatchRecord{
		Timestamp: at,
		FishInfo:  &datastore.FishInfo{CommonName: species},
		Location:  lakeErie.Entity(),
		Weight:    weight,
	}
	require.NoError(t, store.SaveCatch(t.Context(), c))
	return c
}

type fakeLocation struct {
	granted   bool
	permErr   error
	fix       location.Fix
	fixErr    error
	permCalls atomic.Int32
	fixCalls  atomic.Int32
}

func (f *fakeLocation) RequestPermission(context.Context) (bool, error) {
	f.permCalls.Add(1)
	return f.granted, f.permErr
}

func (f *fakeLocation) CurrentLocation(context.Context) (location.Fix, error) {
	f.fixCalls.Add(1)
	if f.fixErr != nil {
		return location.Fix{}, f.fixErr
	}
	return f.fix, nil
}

type weatherCall struct{ lat, lon float64 }

type fakeWeather struct {
	mu    sync.Mutex
	snap  *weather.Snapshot
	err   error
	calls []weatherCall
}

func (f *fakeWeather) Current(_ context.Context, lat, lon float64) (*weather.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, weatherCall{lat, lon})
	if f.err != nil {
		return nil, f.err
	}
	s := *f.snap
	s.Latitude, s.Longitude = lat, lon
	return &s, nil
}

func (f *fakeWeather) Calls() []weatherCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]weatherCall(nil), f.calls...)
}

func calmSnapshot() *weather.Snapshot {
	return &weather.Snapshot{
		LocationName:        "Toledo",
		Temperature:         68,
		WindSpeed:           7,
		WindDirection:       225,
		Visibility:          10,
		WeatherCondition:    "Partly cloudy",
		PrecipitationChance: 10,
		Pressure:            1015,
	}
}

func categoryError(cat errors.ErrorCategory) error {
	return errors.Newf("test failure").Component("test").Category(cat).Build()
}
