package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/location"
	"github.com/trolltrack/trolltrack/internal/logger"
	"github.com/trolltrack/trolltrack/internal/observability"
	"github.com/trolltrack/trolltrack/internal/weather"
)

var testNow = time.Date(2024, 6, 21, 11, 0, 0, 0, time.Local)

var maumeeBay = location.Fix{Latitude: 41.7008, Longitude: -83.0453, Source: "fixture", Timestamp: testNow}

type testEnv struct {
	server   *Server
	store    *datastore.Store
	weather  *stubWeather
	location *stubLocation
	metrics  *observability.Metrics
	settings *conf.Settings
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	settings := conf.Default()
	settings.Database = conf.DatabaseSettings{Type: "sqlite", Path: filepath.Join(t.TempDir(), "trolltrack.db")}

	store, err := datastore.New(settings, logger.NewDiscardLogger(),
		datastore.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	env := &testEnv{
		store:    store,
		weather:  &stubWeather{snap: lakeSnapshot()},
		location: &stubLocation{fix: maumeeBay},
		metrics:  m,
		settings: settings,
	}
	env.server, err = New(settings, Dependencies{
		Weather:  env.weather,
		Location: env.location,
		Store:    store,
	}, logger.NewDiscardLogger(), WithMetrics(m), WithVersion("test"))
	require.NoError(t, err)
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Echo().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type coordCall struct{ lat, lon float64 }

type stubWeather struct {
	mu     sync.Mutex
	snap   *weather.Snapshot
	err    error
	calls  []coordCall
	days   int
	city   string
	astroD time.Time
}

func (s *stubWeather) record(lat, lon float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, coordCall{lat, lon})
	return s.err
}

func (s *stubWeather) Current(_ context.Context, lat, lon float64) (*weather.Snapshot, error) {
	if err := s.record(lat, lon); err != nil {
		return nil, err
	}
	snap := *s.snap
	snap.Latitude, snap.Longitude = lat, lon
	return &snap, nil
}

func (s *stubWeather) Forecast(_ context.Context, lat, lon float64, days int) ([]weather.Snapshot, error) {
	if err := s.record(lat, lon); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.days = days
	s.mu.Unlock()
	out := make([]weather.Snapshot, weather.ClampForecastDays(days))
	for i := range out {
		out[i] = *s.snap
		out[i].Date = testNow.AddDate(0, 0, i).Format(time.DateOnly)
	}
	return out, nil
}

func (s *stubWeather) ByCity(_ context.Context, name string) (*weather.Snapshot, error) {
	s.mu.Lock()
	s.city = name
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	snap := *s.snap
	snap.LocationName = name
	return &snap, nil
}

func (s *stubWeather) Astronomy(_ context.Context, lat, lon float64, date time.Time) (*weather.Astronomy, error) {
	if err := s.record(lat, lon); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.astroD = date
	s.mu.Unlock()
	return &weather.Astronomy{Date: date.Format(time.DateOnly), MoonPhase: "Waxing Gibbous", MoonIllumination: 78}, nil
}

func (s *stubWeather) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubWeather) lastCall() coordCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return coordCall{}
	}
	return s.calls[len(s.calls)-1]
}

type stubLocation struct {
	mu  sync.Mutex
	fix location.Fix
	err error
}

func (s *stubLocation) RequestPermission(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err == nil, nil
}

func (s *stubLocation) CurrentLocation(context.Context) (location.Fix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return location.Fix{}, s.err
	}
	return s.fix, nil
}

func lakeSnapshot() *weather.Snapshot {
	return &weather.Snapshot{
		LocationName:        "Toledo",
		Temperature:         68,
		WindSpeed:           7,
		WindDirection:       225,
		Visibility:          10,
		WeatherCondition:    "Overcast",
		PrecipitationChance: 20,
		Pressure:            1012,
		PressureTrend:       -1.5,
	}
}

func categoryError(cat errors.ErrorCategory) error {
	return errors.Newf("stub failure").Component("test").Category(cat).Build()
}
