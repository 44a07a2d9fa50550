// Package conf loads, validates and persists TrollTrack settings.
//
// Settings are read once at startup with Load and handed to services by
// pointer; nothing in this package keeps process-wide state.
package conf

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/trolltrack/trolltrack/internal/logger"
)

// PlaceholderAPIKey is the value shipped in sample configs; it never counts as configured.
const PlaceholderAPIKey = "YOUR_API_KEY_HERE"

// MinAPIKeyLength is the shortest string accepted as a weather API key.
const MinAPIKeyLength = 10

// Location source names for LocationSettings.Source
const (
	LocationSourceGpsd    = "gpsd"
	LocationSourceFixture = "fixture"
	LocationSourceStatic  = "static"
)

// Permission states for LocationSettings.Permission
const (
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
	PermissionPrompt  = "prompt"
)

// Units
const (
	UnitsImperial = "imperial"
	UnitsMetric   = "metric"
)

// Settings is the complete application configuration.
type Settings struct {
	Main         MainSettings         `yaml:"main" mapstructure:"main"`
	Weather      WeatherSettings      `yaml:"weather" mapstructure:"weather"`
	Location     LocationSettings     `yaml:"location" mapstructure:"location"`
	Database     DatabaseSettings     `yaml:"database" mapstructure:"database"`
	Lures        LureSettings         `yaml:"lures" mapstructure:"lures"`
	Backup       BackupSettings       `yaml:"backup" mapstructure:"backup"`
	MQTT         MQTTSettings         `yaml:"mqtt" mapstructure:"mqtt"`
	Notification NotificationSettings `yaml:"notification" mapstructure:"notification"`
	Telemetry    TelemetrySettings    `yaml:"telemetry" mapstructure:"telemetry"`
	API          APISettings          `yaml:"api" mapstructure:"api"`
	Logging      logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`

	Debug bool `yaml:"debug" mapstructure:"debug"`

	mu         sync.Mutex `yaml:"-"`
	configPath string     `yaml:"-"`

	// prefsMu guards the fields the settings page edits while the app runs:
	// Main and Weather.APIKey.
	prefsMu sync.RWMutex `yaml:"-"`
}

// MainSettings holds user preferences.
type MainSettings struct {
	Name  string `yaml:"name" mapstructure:"name"`   // display name
	Units string `yaml:"units" mapstructure:"units"` // imperial or metric
}

// WeatherSettings configures the weatherapi.com client.
type WeatherSettings struct {
	APIKey            string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	CacheTTL          time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	RequestsPerMinute int           `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// HasValidAPIKey reports whether the key looks usable: non-empty, not the
// placeholder and at least MinAPIKeyLength characters.
func (w *WeatherSettings) HasValidAPIKey() bool {
	key := strings.TrimSpace(w.APIKey)
	return key != "" && key != PlaceholderAPIKey && len(key) >= MinAPIKeyLength
}

// NamedLocation is a labelled coordinate.
type NamedLocation struct {
	Name      string  `yaml:"name" mapstructure:"name"`
	Latitude  float64 `yaml:"latitude" mapstructure:"latitude"`
	Longitude float64 `yaml:"longitude" mapstructure:"longitude"`
}

// LocationSettings selects and configures the location source.
type LocationSettings struct {
	Source      string          `yaml:"source" mapstructure:"source"` // gpsd, fixture or static
	Timeout     time.Duration   `yaml:"timeout" mapstructure:"timeout"`
	GpsdAddress string          `yaml:"gpsd_address" mapstructure:"gpsd_address"`
	Permission  string          `yaml:"permission" mapstructure:"permission"` // granted, denied or prompt
	Default     NamedLocation   `yaml:"default" mapstructure:"default"`
	Fixtures    []NamedLocation `yaml:"fixtures" mapstructure:"fixtures"`
}

// DatabaseSettings selects the catch log backend.
type DatabaseSettings struct {
	Type  string        `yaml:"type" mapstructure:"type"` // sqlite or mysql
	Path  string        `yaml:"path" mapstructure:"path"`
	MySQL MySQLSettings `yaml:"mysql" mapstructure:"mysql"`
}

// MySQLSettings configures a shared MySQL catch log.
type MySQLSettings struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
}

// LureSettings points at an alternative lure catalog.
type LureSettings struct {
	Catalog string `yaml:"catalog" mapstructure:"catalog"` // empty uses the bundled catalog
}

// BackupSettings configures database backups.
type BackupSettings struct {
	Dir     string         `yaml:"dir" mapstructure:"dir"`
	Targets []BackupTarget `yaml:"targets" mapstructure:"targets"`
}

// BackupTarget describes one place a backup copy is pushed to.
type BackupTarget struct {
	Type     string            `yaml:"type" mapstructure:"type"` // local, ftp, sftp, s3
	Enabled  bool              `yaml:"enabled" mapstructure:"enabled"`
	Settings map[string]string `yaml:"settings" mapstructure:"settings"`
}

// MQTTSettings configures the catch feed.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Broker   string `yaml:"broker" mapstructure:"broker"`
	Topic    string `yaml:"topic" mapstructure:"topic"`
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// NotificationSettings configures fishing condition alerts.
type NotificationSettings struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	URLs    []string `yaml:"urls" mapstructure:"urls"` // shoutrrr service URLs
}

// TelemetrySettings configures error reporting.
type TelemetrySettings struct {
	SentryDSN string `yaml:"sentry_dsn" mapstructure:"sentry_dsn"`
}

// APISettings configures the local HTTP API.
type APISettings struct {
	Listen string `yaml:"listen" mapstructure:"listen"`
}

// Preferences returns the display name and unit system.
func (s *Settings) Preferences() MainSettings {
	s.prefsMu.RLock()
	defer s.prefsMu.RUnlock()
	p := s.Main
	if p.Units == "" {
		p.Units = UnitsImperial
	}
	return p
}

// WeatherAPIKey returns the trimmed weather API key.
func (s *Settings) WeatherAPIKey() string {
	s.prefsMu.RLock()
	defer s.prefsMu.RUnlock()
	return strings.TrimSpace(s.Weather.APIKey)
}

// HasWeatherAPIKey reports whether the stored key looks usable.
func (s *Settings) HasWeatherAPIKey() bool {
	w := WeatherSettings{APIKey: s.WeatherAPIKey()}
	return w.HasValidAPIKey()
}

// ConfigPath returns the file the settings were loaded from, if any.
func (s *Settings) ConfigPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configPath
}

// Load reads configuration from configPath, or from the default search paths
// when configPath is empty, applies defaults and environment overrides and
// validates the result. A missing config file is not an error; defaults are used
// and the file is written on the first Save.
func Load(configPath string) (*Settings, error) {
	v := viper.New()
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	resolved, err := readConfig(v, configPath)
	if err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	expandSecrets(settings)
	settings.configPath = resolved

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// readConfig loads the YAML file into v and returns the path it came from, or
// the path a new file should be written to.
func readConfig(v *viper.Viper, configPath string) (string, error) {
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || isNotExist(err) {
				return configPath, nil
			}
			return "", fmt.Errorf("fatal error reading config file: %w", err)
		}
		return configPath, nil
	}

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	v.SetConfigName("config")
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return filepath.Join(configPaths[0], "config.yaml"), nil
		}
		return "", fmt.Errorf("fatal error reading config file: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Default returns settings populated only from defaults. Used by tests and
// by commands that must work without a config file.
func Default() *Settings {
	v := viper.New()
	setDefaultConfig(v)
	settings := &Settings{}
	// Defaults are static and always decode.
	_ = v.Unmarshal(settings)
	return settings
}
