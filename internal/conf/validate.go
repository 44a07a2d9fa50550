package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct. The weather API key is
// not checked here; an unconfigured key is a runtime condition reported by the
// weather client, not a reason to refuse startup.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) []string{
		validateMainSettings,
		validateWeatherSettings,
		validateLocationSettings,
		validateDatabaseSettings,
		validateBackupSettings,
		validateMQTTSettings,
		validateAPISettings,
	} {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMainSettings(s *Settings) []string {
	switch s.Main.Units {
	case UnitsImperial, UnitsMetric:
		return nil
	default:
		return []string{fmt.Sprintf("main.units must be %q or %q, got %q", UnitsImperial, UnitsMetric, s.Main.Units)}
	}
}

func validateWeatherSettings(s *Settings) []string {
	var errs []string
	w := &s.Weather

	if u, err := url.Parse(w.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("weather.base_url is not a valid URL: %q", w.BaseURL))
	}
	if w.Timeout <= 0 {
		errs = append(errs, "weather.timeout must be greater than zero")
	}
	if w.CacheTTL < 0 {
		errs = append(errs, "weather.cache_ttl must not be negative")
	}
	if w.RequestsPerMinute <= 0 {
		errs = append(errs, "weather.requests_per_minute must be greater than zero")
	}
	return errs
}

func validateLocationSettings(s *Settings) []string {
	var errs []string
	l := &s.Location

	switch l.Source {
	case LocationSourceGpsd:
		if _, _, err := net.SplitHostPort(l.GpsdAddress); err != nil {
			errs = append(errs, fmt.Sprintf("location.gpsd_address must be host:port, got %q", l.GpsdAddress))
		}
	case LocationSourceFixture:
		if len(l.Fixtures) == 0 {
			errs = append(errs, "location.fixtures must not be empty when location.source is fixture")
		}
	case LocationSourceStatic:
	default:
		errs = append(errs, fmt.Sprintf("location.source must be gpsd, fixture or static, got %q", l.Source))
	}

	switch l.Permission {
	case PermissionGranted, PermissionDenied, PermissionPrompt:
	default:
		errs = append(errs, fmt.Sprintf("location.permission must be granted, denied or prompt, got %q", l.Permission))
	}

	if l.Timeout <= 0 {
		errs = append(errs, "location.timeout must be greater than zero")
	}

	errs = append(errs, validateCoordinate("location.default", l.Default)...)
	for i, f := range l.Fixtures {
		errs = append(errs, validateCoordinate(fmt.Sprintf("location.fixtures[%d]", i), f)...)
	}
	return errs
}

func validateCoordinate(field string, loc NamedLocation) []string {
	var errs []string
	if loc.Latitude < -90 || loc.Latitude > 90 {
		errs = append(errs, fmt.Sprintf("%s.latitude must be between -90 and 90", field))
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		errs = append(errs, fmt.Sprintf("%s.longitude must be between -180 and 180", field))
	}
	return errs
}

func validateDatabaseSettings(s *Settings) []string {
	d := &s.Database
	switch d.Type {
	case "sqlite":
		if strings.TrimSpace(d.Path) == "" {
			return []string{"database.path must be set for sqlite"}
		}
	case "mysql":
		var errs []string
		if d.MySQL.Host == "" {
			errs = append(errs, "database.mysql.host must be set")
		}
		if d.MySQL.Port <= 0 || d.MySQL.Port > 65535 {
			errs = append(errs, "database.mysql.port must be between 1 and 65535")
		}
		if d.MySQL.Database == "" {
			errs = append(errs, "database.mysql.database must be set")
		}
		return errs
	default:
		return []string{fmt.Sprintf("database.type must be sqlite or mysql, got %q", d.Type)}
	}
	return nil
}

func validateBackupSettings(s *Settings) []string {
	var errs []string
	for i, t := range s.Backup.Targets {
		switch t.Type {
		case "local", "ftp", "sftp", "s3":
		default:
			errs = append(errs, fmt.Sprintf("backup.targets[%d].type %q is not supported", i, t.Type))
		}
	}
	return errs
}

func validateMQTTSettings(s *Settings) []string {
	if !s.MQTT.Enabled {
		return nil
	}
	var errs []string
	if s.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker must be set when mqtt is enabled")
	}
	if s.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic must be set when mqtt is enabled")
	}
	return errs
}

func validateAPISettings(s *Settings) []string {
	if _, _, err := net.SplitHostPort(s.API.Listen); err != nil {
		return []string{fmt.Sprintf("api.listen must be host:port, got %q", s.API.Listen)}
	}
	return nil
}
