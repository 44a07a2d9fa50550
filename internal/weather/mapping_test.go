package weather

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		err  bool
	}{
		{`45`, 45, false},
		{`45.5`, 45.5, false},
		{`"45"`, 45, false},
		{`"45%"`, 45, false},
		{`" 12 "`, 12, false},
		{`null`, 0, false},
		{`""`, 0, false},
		{`"waxing"`, 0, true},
	}

	for _, tt := range tests {
		var v struct {
			F flexFloat `json:"f"`
		}
		err := json.Unmarshal([]byte(`{"f":`+tt.in+`}`), &v)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, float64(v.F), 1e-9, tt.in)
	}
}

func TestParseAstroTime(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	got := parseAstroTime("2024-06-21", "09:13 PM", ny)
	assert.Equal(t, time.Date(2024, 6, 21, 21, 13, 0, 0, ny), got)

	assert.True(t, parseAstroTime("2024-06-21", "No moonrise", ny).IsZero())
	assert.True(t, parseAstroTime("2024-06-21", "", ny).IsZero())
	assert.True(t, parseAstroTime("", "06:00 AM", ny).IsZero())
}

func TestTimeZoneFallback(t *testing.T) {
	assert.Equal(t, time.Local, timeZone(nil))
	assert.Equal(t, time.Local, timeZone(&apiLocation{TzID: "Not/AZone"}))
	assert.Equal(t, "America/Chicago", timeZone(&apiLocation{TzID: "America/Chicago"}).String())
}

func TestNormalizeIcon(t *testing.T) {
	assert.Equal(t, "https://cdn.weatherapi.com/x.png", normalizeIcon("//cdn.weatherapi.com/x.png"))
	assert.Equal(t, "https://cdn.weatherapi.com/x.png", normalizeIcon("https://cdn.weatherapi.com/x.png"))
	assert.Empty(t, normalizeIcon(""))
}

func TestMapCurrent_OptionalFields(t *testing.T) {
	water := 66.2
	rain := 35
	cur := &apiCurrent{
		TempF:        70,
		PressureIn:   29.92,
		WaterTempF:   &water,
		ChanceOfRain: &rain,
	}

	s := mapCurrent(cur, nil, time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC))
	require.NotNil(t, s.WaterTemperature)
	assert.InDelta(t, 66.2, *s.WaterTemperature, 1e-9)
	assert.Equal(t, 35, s.PrecipitationChance)
	assert.Nil(t, s.AirQualityIndex)
	assert.Equal(t, "Unknown", s.AirQualityDescription)
	assert.InDelta(t, 1013.21, s.Pressure, 0.01)
	assert.Empty(t, s.LocationName)
}

func TestMapForecastDay_NoHours(t *testing.T) {
	day := &apiForecastDay{
		Date: "2024-06-21",
		Day:  apiDay{AvgTempF: 70, MaxWindMph: 9},
	}
	s := mapForecastDay(day, nil, time.UTC)

	assert.InDelta(t, 70.0, s.FeelsLike, 1e-9)
	assert.Zero(t, s.Pressure)
	assert.Equal(t, time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC), s.Timestamp)
}
