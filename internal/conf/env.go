package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding maps a config key to an environment variable
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"weather.api_key", "TROLLTRACK_WEATHER_API_KEY", nil},
		{"weather.base_url", "TROLLTRACK_WEATHER_BASE_URL", nil},
		{"location.source", "TROLLTRACK_LOCATION_SOURCE", validateEnvLocationSource},
		{"location.default.latitude", "TROLLTRACK_LATITUDE", validateEnvLatitude},
		{"location.default.longitude", "TROLLTRACK_LONGITUDE", validateEnvLongitude},
		{"database.type", "TROLLTRACK_DATABASE_TYPE", nil},
		{"database.path", "TROLLTRACK_DATABASE_PATH", nil},
		{"api.listen", "TROLLTRACK_API_LISTEN", nil},
		{"telemetry.sentry_dsn", "TROLLTRACK_SENTRY_DSN", nil},
		{"debug", "TROLLTRACK_DEBUG", validateEnvBool},
	}
}

// bindEnvVars binds environment overrides and rejects malformed values.
func bindEnvVars(v *viper.Viper) error {
	var problems []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			problems = append(problems, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				problems = append(problems, fmt.Sprintf("invalid %s value %q: %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	_, err := strconv.ParseBool(value)
	return err
}

func validateEnvLatitude(value string) error {
	lat, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	return nil
}

func validateEnvLongitude(value string) error {
	lon, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	return nil
}

func validateEnvLocationSource(value string) error {
	switch value {
	case LocationSourceGpsd, LocationSourceFixture, LocationSourceStatic:
		return nil
	default:
		return fmt.Errorf("must be one of gpsd, fixture, static")
	}
}
