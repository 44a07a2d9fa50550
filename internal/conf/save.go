package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const configFilePermissions = 0o600

// SaveYAMLConfig writes settings to configPath. The file is written to a
// temporary file first and renamed over the target.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if err := tempFile.Chmod(configFilePermissions); err != nil {
		tempFile.Close()
		return fmt.Errorf("error setting config file permissions: %w", err)
	}
	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		// cross-device rename
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}
	return nil
}

// Save persists the settings to the file they were loaded from.
func (s *Settings) Save() error {
	s.mu.Lock()
	path := s.configPath
	s.mu.Unlock()

	if path == "" {
		return fmt.Errorf("settings have no config path")
	}
	s.prefsMu.RLock()
	defer s.prefsMu.RUnlock()
	return SaveYAMLConfig(path, s)
}

// SetConfigPath sets the file Save writes to.
func (s *Settings) SetConfigPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configPath = path
}

// SetAPIKey stores a new weather API key. The key is validated before it is
// saved so a typo never replaces a working key.
func (s *Settings) SetAPIKey(key string) error {
	candidate := WeatherSettings{APIKey: strings.TrimSpace(key)}
	if !candidate.HasValidAPIKey() {
		return fmt.Errorf("API key must be at least %d characters and not the placeholder", MinAPIKeyLength)
	}
	s.prefsMu.Lock()
	s.Weather.APIKey = candidate.APIKey
	s.prefsMu.Unlock()
	return s.Save()
}

// SetDisplayName stores the angler's display name.
func (s *Settings) SetDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("display name must not be empty")
	}
	s.prefsMu.Lock()
	s.Main.Name = name
	s.prefsMu.Unlock()
	return s.Save()
}

// SetUnits switches between imperial and metric display units.
func (s *Settings) SetUnits(units string) error {
	units = strings.ToLower(strings.TrimSpace(units))
	if units != UnitsImperial && units != UnitsMetric {
		return fmt.Errorf("units must be %q or %q", UnitsImperial, UnitsMetric)
	}
	s.prefsMu.Lock()
	s.Main.Units = units
	s.prefsMu.Unlock()
	return s.Save()
}
