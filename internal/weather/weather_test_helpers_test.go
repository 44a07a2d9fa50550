package weather

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
)

const (
	testAPIKey  = "test-api-key-0123456789"
	testBaseURL = "https://api.weatherapi.com/v1"
	testLat     = 41.7008 // Lake Erie, western basin
	testLon     = -83.0453
)

// createTestSettings returns settings with a usable key and caching enabled.
func createTestSettings(t *testing.T, opts ...func(*conf.Settings)) *conf.Settings {
	t.Helper()

	settings := &conf.Settings{
		Main: conf.MainSettings{Name: "Tester", Units: conf.UnitsImperial},
		Weather: conf.WeatherSettings{
			APIKey:            testAPIKey,
			BaseURL:           testBaseURL,
			Timeout:           5 * time.Second,
			CacheTTL:          15 * time.Minute,
			RequestsPerMinute: 60,
		},
	}

	for _, opt := range opts {
		opt(settings)
	}
	return settings
}

func newTestClient(t *testing.T, settings *conf.Settings, opts ...Option) *Client {
	t.Helper()
	return NewClient(settings, logger.NewDiscardLogger(), opts...)
}

func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

func registerResponder(t *testing.T, endpoint string, status int, body string) {
	t.Helper()
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+endpoint,
		httpmock.NewStringResponder(status, body).HeaderSet(http.Header{"Content-Type": {"application/json"}}))
}

func callCount(t *testing.T, endpoint string) int {
	t.Helper()
	info := httpmock.GetCallCountInfo()
	return info["GET "+testBaseURL+endpoint]
}

func requireCategory(t *testing.T, err error, want errors.ErrorCategory) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, errors.CategoryOf(err), "unexpected category for %v", err)
}

// currentResponse is a trimmed current.json payload for Toledo, Ohio.
func currentResponse() string {
	return `{
  "location": {
    "name": "Toledo", "region": "Ohio", "country": "United States of America",
    "lat": 41.66, "lon": -83.56, "tz_id": "America/New_York",
    "localtime_epoch": 1718985600, "localtime": "2024-06-21 12:00"
  },
  "current": {
    "last_updated_epoch": 1718985000, "last_updated": "2024-06-21 11:45",
    "temp_c": 22.2, "temp_f": 72.0, "is_day": 1,
    "condition": {"text": "Partly cloudy", "icon": "//cdn.weatherapi.com/weather/64x64/day/116.png", "code": 1003},
    "wind_mph": 8.1, "wind_kph": 13.0, "wind_degree": 225, "wind_dir": "SW",
    "pressure_mb": 1016.0, "pressure_in": 30.0, "precip_mm": 0.0, "precip_in": 0.0,
    "humidity": 64, "cloud": 50, "feelslike_f": 73.4, "dewpoint_f": 58.9,
    "vis_km": 16.0, "vis_miles": 9.0, "uv": 6.0, "gust_mph": 11.4,
    "air_quality": {"us-epa-index": 2}
  }
}`
}

func forecastResponse() string {
	return `{
  "location": {"name": "Toledo", "region": "Ohio", "country": "United States of America",
    "lat": 41.66, "lon": -83.56, "tz_id": "America/New_York", "localtime": "2024-06-21 12:00"},
  "current": {"last_updated_epoch": 1718985000, "temp_f": 72.0, "pressure_in": 30.0,
    "condition": {"text": "Partly cloudy", "icon": "", "code": 1003}},
  "forecast": {"forecastday": [
    {"date": "2024-06-21",
     "day": {"maxtemp_f": 80.1, "mintemp_f": 64.2, "avgtemp_f": 71.6, "maxwind_mph": 12.3,
       "totalprecip_in": 0.02, "avgvis_miles": 9.0, "avghumidity": 66, "daily_chance_of_rain": 20,
       "condition": {"text": "Overcast", "icon": "//cdn.weatherapi.com/weather/64x64/day/122.png", "code": 1009}, "uv": 7.0},
     "astro": {"sunrise": "06:02 AM", "sunset": "09:13 PM", "moonrise": "08:24 PM", "moonset": "04:18 AM",
       "moon_phase": "Full Moon", "moon_illumination": 100, "is_moon_up": 0, "is_sun_up": 1},
     "hour": [
       {"time": "2024-06-21 00:00", "pressure_in": 29.90, "wind_degree": 350, "gust_mph": 9.0, "cloud": 80, "feelslike_f": 66.0, "dewpoint_f": 58.0},
       {"time": "2024-06-21 12:00", "pressure_in": 30.10, "wind_degree": 10, "gust_mph": 14.5, "cloud": 100, "feelslike_f": 76.0, "dewpoint_f": 60.0}
     ]},
    {"date": "2024-06-22",
     "day": {"maxtemp_f": 78.0, "mintemp_f": 62.0, "avgtemp_f": 70.0, "maxwind_mph": 18.0,
       "totalprecip_in": 0.3, "avgvis_miles": 7.0, "avghumidity": 75, "daily_chance_of_rain": 85,
       "condition": {"text": "Moderate rain", "icon": "", "code": 1189}, "uv": 4.0},
     "astro": {"sunrise": "06:02 AM", "sunset": "09:13 PM", "moonrise": "No moonrise", "moonset": "05:10 AM",
       "moon_phase": "Waning Gibbous", "moon_illumination": "98", "is_moon_up": 0, "is_sun_up": 0},
     "hour": [
       {"time": "2024-06-22 00:00", "pressure_in": 29.70, "wind_degree": 180, "gust_mph": 22.0, "cloud": 90, "feelslike_f": 65.0, "dewpoint_f": 60.0}
     ]}
  ]}
}`
}

func astronomyResponse() string {
	return `{
  "location": {"name": "Toledo", "region": "Ohio", "country": "United States of America",
    "lat": 41.66, "lon": -83.56, "tz_id": "America/New_York", "localtime": "2024-06-21 12:00"},
  "astronomy": {"astro": {"sunrise": "06:02 AM", "sunset": "09:13 PM", "moonrise": "08:24 PM",
    "moonset": "04:18 AM", "moon_phase": "Full Moon", "moon_illumination": "100", "is_moon_up": 1, "is_sun_up": 0}}
}`
}

func errorResponse(code int, message string) string {
	return fmt.Sprintf(`{"error":{"code":%d,"message":%q}}`, code, message)
}
