package weather

import (
	"fmt"
	"math"
	"strings"

	"github.com/trolltrack/trolltrack/internal/conf"
)

// Fishing condition thresholds
const (
	maxGoodWindMph         = 15.0
	minGoodVisibilityMiles = 1.0
	minGoodTemperatureF    = 32.0
	maxGoodTemperatureF    = 100.0
	maxGoodPrecipChance    = 70

	pressureTrendThreshold = 1.0
	calmWindMph            = 5.0
	highWindMph            = 20.0
	lightRainMaxChance     = 50
	redPrecipChance        = 80
)

// Fishing forecast texts
const (
	ForecastRisingPressure  = "Rising pressure - Fish may be less active"
	ForecastFallingPressure = "Falling pressure - Great for fishing!"
	ForecastCalm            = "Calm conditions - Good for surface fishing"
	ForecastTooWindy        = "Too windy for most fishing"
	ForecastOvercast        = "Overcast skies - Excellent fishing conditions"
	ForecastLightRain       = "Light rain possible - Fish may be more active"
	ForecastFair            = "Fair fishing conditions"
)

// Condition colors
const (
	ColorGreen  = "Green"
	ColorOrange = "Orange"
	ColorRed    = "Red"
)

// IsFishingWeatherGood reports whether every condition favours fishing:
// wind at most 15 mph, visibility at least a mile, no storm, temperature
// between 32 and 100 F and at most a 70% chance of rain.
func (s *Snapshot) IsFishingWeatherGood() bool {
	condition := strings.ToLower(s.WeatherCondition)

	goodWind := s.WindSpeed <= maxGoodWindMph
	goodVisibility := s.Visibility >= minGoodVisibilityMiles
	noStorms := !strings.Contains(condition, "storm") && !strings.Contains(condition, "thunder")
	reasonableTemp := s.Temperature >= minGoodTemperatureF && s.Temperature <= maxGoodTemperatureF
	lowPrecip := s.PrecipitationChance <= maxGoodPrecipChance

	return goodWind && goodVisibility && noStorms && reasonableTemp && lowPrecip
}

// FishingForecast returns a one-line outlook. Pressure trend outranks wind,
// which outranks sky conditions.
func (s *Snapshot) FishingForecast() string {
	condition := strings.ToLower(s.WeatherCondition)

	switch {
	case s.PressureTrend > pressureTrendThreshold:
		return ForecastRisingPressure
	case s.PressureTrend < -pressureTrendThreshold:
		return ForecastFallingPressure
	case s.WindSpeed < calmWindMph:
		return ForecastCalm
	case s.WindSpeed > highWindMph:
		return ForecastTooWindy
	case strings.Contains(condition, "overcast"):
		return ForecastOvercast
	case strings.Contains(condition, "rain") && s.PrecipitationChance < lightRainMaxChance:
		return ForecastLightRain
	default:
		return ForecastFair
	}
}

var cardinalPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// WindDirectionCardinal converts the wind bearing to a 16-point compass
// label, or "N/A" for bearings outside [0,360].
func (s *Snapshot) WindDirectionCardinal() string {
	return CardinalDirection(s.WindDirection)
}

// CardinalDirection converts a bearing in degrees to a 16-point compass label.
func CardinalDirection(degrees float64) string {
	if math.IsNaN(degrees) || degrees < 0 || degrees > 360 {
		return "N/A"
	}
	// each point spans 22.5 degrees centred on its bearing
	idx := int((degrees+11.25)/22.5) % len(cardinalPoints)
	return cardinalPoints[idx]
}

// ColorIndicator returns Green for good fishing weather, Red for high wind
// or a likely downpour and Orange otherwise.
func (s *Snapshot) ColorIndicator() string {
	if s.IsFishingWeatherGood() {
		return ColorGreen
	}
	if s.WindSpeed > highWindMph || s.PrecipitationChance > redPrecipChance {
		return ColorRed
	}
	return ColorOrange
}

// beaufortScale lists the upper bound in mph of each Beaufort force
var beaufortScale = []struct {
	below float64
	label string
}{
	{1, "Calm"},
	{4, "Light Air"},
	{7, "Light Breeze"},
	{11, "Gentle Breeze"},
	{16, "Moderate Breeze"},
	{22, "Fresh Breeze"},
	{28, "Strong Breeze"},
	{34, "Near Gale"},
	{41, "Gale"},
	{48, "Strong Gale"},
	{56, "Storm"},
	{64, "Violent Storm"},
}

// BeaufortLabel describes the wind speed on the Beaufort scale.
func (s *Snapshot) BeaufortLabel() string {
	if math.IsNaN(s.WindSpeed) {
		return "Unknown"
	}
	for _, force := range beaufortScale {
		if s.WindSpeed < force.below {
			return force.label
		}
	}
	return "Hurricane"
}

// TemperatureIn returns the temperature and its unit symbol for the given
// display units.
func (s *Snapshot) TemperatureIn(units string) (float64, string) {
	if units == conf.UnitsMetric {
		return FahrenheitToCelsius(s.Temperature), "°C"
	}
	return s.Temperature, "°F"
}

// WindSpeedIn returns the wind speed and its unit for the given display units.
func (s *Snapshot) WindSpeedIn(units string) (float64, string) {
	if units == conf.UnitsMetric {
		return MphToKph(s.WindSpeed), "km/h"
	}
	return s.WindSpeed, "mph"
}

// Summary renders a one-line description, e.g. "68°F, Partly cloudy, wind 7 mph SW".
func (s *Snapshot) Summary(units string) string {
	temp, tempUnit := s.TemperatureIn(units)
	wind, windUnit := s.WindSpeedIn(units)
	condition := s.WeatherCondition
	if condition == "" {
		condition = "Unknown"
	}
	return fmt.Sprintf("%.0f%s, %s, wind %.0f %s %s",
		temp, tempUnit, condition, wind, windUnit, s.WindDirectionCardinal())
}

// Derived bundles the computed fields for serialisation.
type Derived struct {
	IsFishingWeatherGood  bool   `json:"is_fishing_weather_good"`
	FishingForecast       string `json:"fishing_forecast"`
	WindDirectionCardinal string `json:"wind_direction_cardinal"`
	BeaufortScale         string `json:"beaufort_scale"`
	ColorIndicator        string `json:"color_indicator"`
}

// Derived computes all derived fields.
func (s *Snapshot) Derived() Derived {
	return Derived{
		IsFishingWeatherGood:  s.IsFishingWeatherGood(),
		FishingForecast:       s.FishingForecast(),
		WindDirectionCardinal: s.WindDirectionCardinal(),
		BeaufortScale:         s.BeaufortLabel(),
		ColorIndicator:        s.ColorIndicator(),
	}
}

// ApplyPressureTrend sets each day's PressureTrend to the change from the
// previous day. The first day keeps whatever trend it already has.
func ApplyPressureTrend(days []Snapshot) {
	for i := 1; i < len(days); i++ {
		if days[i].Pressure == 0 || days[i-1].Pressure == 0 {
			continue
		}
		days[i].PressureTrend = days[i].Pressure - days[i-1].Pressure
	}
}
