// Package weather fetches conditions from weatherapi.com and maps them into
// Snapshot values carrying the fishing heuristics.
package weather

import (
	"time"

	"github.com/trolltrack/trolltrack/internal/errors"
)

const (
	// PressureInHgToHPa converts inches of mercury to hectopascals.
	PressureInHgToHPa = 33.8639

	// MaxForecastDays is the free-tier ceiling of the forecast endpoint.
	MaxForecastDays = 3
	MinForecastDays = 1

	UserAgent = "TrollTrack/1.0 (+https://github.com/trolltrack/trolltrack)"
)

// Snapshot is a point-in-time reading or a forecast day. Temperatures are
// Fahrenheit, wind mph, visibility miles, pressure hPa. Derived fields are
// methods and are never stored.
type Snapshot struct {
	Timestamp    time.Time `json:"timestamp"`
	Date         string    `json:"date,omitempty"` // forecast day, YYYY-MM-DD
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	LocationName string    `json:"location_name"`
	Region       string    `json:"region,omitempty"`
	Country      string    `json:"country,omitempty"`
	TimeZone     string    `json:"time_zone,omitempty"`
	LocalTime    string    `json:"local_time,omitempty"`
	LastUpdated  string    `json:"last_updated,omitempty"`
	IsDay        bool      `json:"is_day"`

	Temperature    float64 `json:"temperature"`
	TemperatureMin float64 `json:"temperature_min,omitempty"`
	TemperatureMax float64 `json:"temperature_max,omitempty"`
	FeelsLike      float64 `json:"feels_like"`
	DewPoint       float64 `json:"dew_point,omitempty"`
	Humidity       int     `json:"humidity"`

	Pressure      float64 `json:"pressure"`
	PressureTrend float64 `json:"pressure_trend"`

	WindSpeed        float64 `json:"wind_speed"`
	WindGust         float64 `json:"wind_gust"`
	WindDirection    float64 `json:"wind_direction"`
	WindDirectionAPI string  `json:"wind_direction_reported,omitempty"`

	Visibility          float64 `json:"visibility"`
	CloudCover          int     `json:"cloud_cover"`
	WeatherCondition    string  `json:"weather_condition"`
	Icon                string  `json:"icon,omitempty"`
	UVIndex             float64 `json:"uv_index"`
	PrecipitationChance int     `json:"precipitation_chance"`
	RainfallAmount      float64 `json:"rainfall_amount"`

	Sunrise          time.Time `json:"sunrise,omitzero"`
	Sunset           time.Time `json:"sunset,omitzero"`
	Moonrise         time.Time `json:"moonrise,omitzero"`
	Moonset          time.Time `json:"moonset,omitzero"`
	MoonPhase        string    `json:"moon_phase,omitempty"`
	MoonIllumination float64   `json:"moon_illumination"`

	WaterTemperature      *float64 `json:"water_temperature,omitempty"`
	AirQualityIndex       *int     `json:"air_quality_index,omitempty"`
	AirQualityDescription string   `json:"air_quality_description,omitempty"`
}

// Astronomy holds sun and moon data for one day.
type Astronomy struct {
	Date             string    `json:"date"`
	LocationName     string    `json:"location_name"`
	Sunrise          time.Time `json:"sunrise,omitzero"`
	Sunset           time.Time `json:"sunset,omitzero"`
	Moonrise         time.Time `json:"moonrise,omitzero"`
	Moonset          time.Time `json:"moonset,omitzero"`
	MoonPhase        string    `json:"moon_phase"`
	MoonIllumination float64   `json:"moon_illumination"`
	IsSunUp          bool      `json:"is_sun_up"`
	IsMoonUp         bool      `json:"is_moon_up"`
}

// airQualityDescriptions maps the US EPA index to its label
var airQualityDescriptions = map[int]string{
	1: "Good",
	2: "Moderate",
	3: "Unhealthy for Sensitive Groups",
	4: "Unhealthy",
	5: "Very Unhealthy",
	6: "Hazardous",
}

// AirQualityDescription returns the label for a US EPA air quality index.
func AirQualityDescription(index *int) string {
	if index == nil {
		return "Unknown"
	}
	if d, ok := airQualityDescriptions[*index]; ok {
		return d
	}
	return "Unknown"
}

// ClampForecastDays limits a requested day count to what the API serves.
func ClampForecastDays(days int) int {
	return min(max(days, MinForecastDays), MaxForecastDays)
}

// newWeatherError creates a standardized weather error with common fields
func newWeatherError(err error, category errors.ErrorCategory, operation string) *errors.EnhancedError {
	return errors.New(err).
		Component("weather").
		Category(category).
		Context("operation", operation).
		Build()
}
