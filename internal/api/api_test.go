package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
	"github.com/trolltrack/trolltrack/internal/weather"
)

func TestStatusForError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", categoryError(errors.CategoryNotFound), http.StatusNotFound},
		{"validation", categoryError(errors.CategoryValidation), http.StatusBadRequest},
		{"api not configured", categoryError(errors.CategoryAPINotConfigured), http.StatusServiceUnavailable},
		{"unauthorized upstream", categoryError(errors.CategoryUnauthorized), http.StatusBadGateway},
		{"rate limited", categoryError(errors.CategoryRateLimited), http.StatusTooManyRequests},
		{"permission denied", categoryError(errors.CategoryPermissionDenied), http.StatusForbidden},
		{"connectivity", categoryError(errors.CategoryConnectivity), http.StatusInternalServerError},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
		{"echo error", echo.NewHTTPError(http.StatusConflict, "taken"), http.StatusConflict},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StatusForError(tt.err))
		})
	}
}

func TestNewRequiresStore(t *testing.T) {
	t.Parallel()

	_, err := New(conf.Default(), Dependencies{}, logger.NewDiscardLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	settings := conf.Default()
	settings.API.Listen = "not-an-address"
	assert.Error(t, ConfigFromSettings(settings).Validate())

	settings.API.Listen = "0.0.0.0:9000"
	cfg := ConfigFromSettings(settings)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
}

func TestHealthAndTraceID(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID), "trace id is generated")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(echo.HeaderXRequestID, "boat-42")
	rec = httptest.NewRecorder()
	env.server.Echo().ServeHTTP(rec, req)
	assert.Equal(t, "boat-42", rec.Header().Get(echo.HeaderXRequestID), "client id is kept")
}

func TestTraceIDReachesRequestContext(t *testing.T) {
	t.Parallel()

	e := echo.New()
	e.Use(TraceID())
	var seen any
	e.GET("/", func(c echo.Context) error {
		seen = c.Request().Context().Value(logger.TraceIDKey)
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, strings.Repeat("x", maxRequestIDLength+1))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	id := rec.Header().Get(echo.HeaderXRequestID)
	assert.Len(t, id, 36, "oversized ids are replaced by a uuid")
	assert.Equal(t, id, seen)
}

func TestCurrentWeather(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/weather/current?lat=41.7&lon=-83.04", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "Toledo", body["location_name"])
	derived, ok := body["derived"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, weather.ForecastFallingPressure, derived["fishing_forecast"])
	assert.Equal(t, "SW", derived["wind_direction_cardinal"])
	assert.Equal(t, weather.ColorGreen, derived["color_indicator"])
	assert.NotEmpty(t, body["summary"])
	assert.Equal(t, coordCall{41.7, -83.04}, env.weather.lastCall())
}

func TestCurrentWeatherDefaultsToConfiguredLocation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/weather/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, coordCall{conf.DefaultLatitude, conf.DefaultLongitude}, env.weather.lastCall())
}

func TestWeatherErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		target   string
		upstream error
		want     int
	}{
		{"bad latitude", "/api/v1/weather/current?lat=north&lon=1", nil, http.StatusBadRequest},
		{"missing longitude", "/api/v1/weather/current?lat=41", nil, http.StatusBadRequest},
		{"bad days", "/api/v1/weather/forecast?days=many", nil, http.StatusBadRequest},
		{"bad date", "/api/v1/weather/astronomy?date=21/06/2024", nil, http.StatusBadRequest},
		{"no api key", "/api/v1/weather/current", categoryError(errors.CategoryAPINotConfigured), http.StatusServiceUnavailable},
		{"key rejected", "/api/v1/weather/forecast", categoryError(errors.CategoryUnauthorized), http.StatusBadGateway},
		{"rate limited", "/api/v1/weather/city/Toledo", categoryError(errors.CategoryRateLimited), http.StatusTooManyRequests},
		{"unknown city", "/api/v1/weather/city/Atlantis", categoryError(errors.CategoryNotFound), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			env.weather.err = tt.upstream

			rec := env.do(t, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.want, resp.Code)
			assert.NotEmpty(t, resp.Message)
			assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), resp.CorrelationID)
		})
	}
}

func TestForecastCityAndAstronomy(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/weather/forecast?lat=41.7&lon=-83.04&days=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	days := decode[[]map[string]any](t, rec)
	require.Len(t, days, 2)
	assert.Equal(t, "2024-06-22", days[1]["date"])
	assert.Contains(t, days[0], "derived")

	rec = env.do(t, http.MethodGet, "/api/v1/weather/city/Port%20Clinton", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Port Clinton", decode[map[string]any](t, rec)["location_name"])

	rec = env.do(t, http.MethodGet, "/api/v1/weather/astronomy?date=2024-06-21", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	astro := decode[weather.Astronomy](t, rec)
	assert.Equal(t, "2024-06-21", astro.Date)
	assert.Equal(t, "Waxing Gibbous", astro.MoonPhase)
}

func TestCatchLifecycle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	program := &datastore.Program{Name: "Deep divers", IsActive: true}
	require.NoError(t, env.store.SaveProgram(t.Context(), program))

	rec := env.do(t, http.MethodPost, "/api/v1/catches", map[string]any{
		"species": "walleye",
		"weight":  4.2,
		"length":  24,
		"notes":   " crankbait, 18ft ",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[datastore.CatchRecord](t, rec)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, datastore.WalleyeFishID, created.FishInfoID)
	assert.Equal(t, "crankbait, 18ft", created.Notes)
	require.NotNil(t, created.ProgramID)
	assert.Equal(t, program.ID, *created.ProgramID)
	require.NotNil(t, created.Location)
	assert.InDelta(t, maumeeBay.Latitude, created.Location.Latitude, 1e-9)

	rec = env.do(t, http.MethodGet, "/api/v1/catches/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[datastore.CatchRecord](t, rec).ID)

	rec = env.do(t, http.MethodGet, "/api/v1/catches/today", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]datastore.CatchRecord](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[datastore.CatchStatistics](t, rec)
	assert.EqualValues(t, 1, stats.Total)
	assert.EqualValues(t, 1, stats.Today)

	rec = env.do(t, http.MethodDelete, "/api/v1/catches/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/catches/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/v1/catches/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateCatchAtGivenCoordinates(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.location.err = categoryError(errors.CategoryLocationUnavailable)

	rec := env.do(t, http.MethodPost, "/api/v1/catches", map[string]any{
		"species":   "Yellow Perch",
		"weight":    0.6,
		"latitude":  41.52,
		"longitude": -82.85,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[datastore.CatchRecord](t, rec)
	require.NotNil(t, created.Location)
	assert.InDelta(t, 41.52, created.Location.Latitude, 1e-9)
	assert.Nil(t, created.ProgramID, "no program is active")
}

func TestCreateCatchRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   any
		locErr error
		want   int
	}{
		{"missing species", map[string]any{"weight": 2.0}, nil, http.StatusBadRequest},
		{"negative weight", map[string]any{"species": "Walleye", "weight": -1.0}, nil, http.StatusBadRequest},
		{"half a coordinate", map[string]any{"species": "Walleye", "latitude": 41.0}, nil, http.StatusBadRequest},
		{"off the globe", map[string]any{"species": "Walleye", "latitude": 123.0, "longitude": 0.0}, nil, http.StatusBadRequest},
		{"unknown lure", map[string]any{"species": "Walleye", "lure_id": "nope"}, nil, http.StatusBadRequest},
		{"permission denied", map[string]any{"species": "Walleye"}, categoryError(errors.CategoryPermissionDenied), http.StatusForbidden},
		{"no fix", map[string]any{"species": "Walleye"}, categoryError(errors.CategoryLocationUnavailable), http.StatusInternalServerError},
		{"not json", "species=walleye", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			env.location.err = tt.locErr

			rec := env.do(t, http.MethodPost, "/api/v1/catches", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())

			all, err := env.store.GetAllCatches(t.Context())
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestListCatchesRange(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	for _, at := range []time.Time{
		testNow.AddDate(0, 0, -10),
		testNow.AddDate(0, 0, -2),
		testNow.Add(-time.Hour),
	} {
		require.NoError(t, env.store.SaveCatch(t.Context(), &datastore.CatchRecord{
			Timestamp: at,
			FishInfo:  &datastore.FishInfo{CommonName: "Walleye"},
			Location:  maumeeBay.Entity(),
		}))
	}

	rec := env.do(t, http.MethodGet, "/api/v1/catches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]datastore.CatchRecord](t, rec), 3)

	from := testNow.AddDate(0, 0, -3).Format(time.DateOnly)
	to := testNow.Add(time.Hour).Format(time.RFC3339)
	rec = env.do(t, http.MethodGet, "/api/v1/catches?from="+from+"&to="+to, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]datastore.CatchRecord](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/api/v1/catches?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListLures(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	require.NoError(t, env.store.SaveLure(t.Context(), &datastore.Lure{Manufacturer: "Reef Runner", Color: "Purple Flash", Length: 4.5}))

	rec := env.do(t, http.MethodGet, "/api/v1/lures", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lures := decode[[]datastore.Lure](t, rec)
	require.Len(t, lures, 1)
	assert.Equal(t, "Reef Runner", lures[0].Manufacturer)
}

func TestDashboard(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	require.NoError(t, env.store.SaveCatch(t.Context(), &datastore.CatchRecord{
		Timestamp: testNow.Add(-time.Hour),
		FishInfo:  &datastore.FishInfo{CommonName: "Walleye"},
		Location:  maumeeBay.Entity(),
		Weight:    4.2,
	}))

	rec := env.do(t, http.MethodGet, "/api/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[map[string]any](t, rec)
	assert.Equal(t, true, state["initialized"])
	assert.EqualValues(t, 1, state["todays_catches"])
	assert.Equal(t, "Walleye - 4.2 lbs", state["best_catch"])
	assert.Equal(t, "None active", state["current_program"])
	assert.NotNil(t, state["weather"])
	calls := env.weather.callCount()

	rec = env.do(t, http.MethodGet, "/api/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, calls, env.weather.callCount(), "a second view does not reload")

	rec = env.do(t, http.MethodGet, "/api/v1/dashboard?refresh=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, calls+1, env.weather.callCount())
}

func TestMetricsEndpointAndAPIMetrics(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	env.do(t, http.MethodGet, "/api/v1/catches/missing", nil)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "/api/v1/catches/:id", "routes are labelled by pattern")
	assert.Contains(t, body, `trolltrack_api_failures_total{category="not-found",route="/api/v1/catches/:id"} 1`)

	n, err := testutil.GatherAndCount(env.metrics.Registry())
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	url := "http://" + ln.Addr().String() + "/health"

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- env.server.Serve(ctx, ln)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
