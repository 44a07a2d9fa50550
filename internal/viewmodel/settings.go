package viewmodel

import (
	"context"
	"strings"
	"sync"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
)

// SettingsState is the preferences page.
type SettingsState struct {
	PageStatus
	DisplayName      string `json:"display_name"`
	Units            string `json:"units"`
	APIKeyConfigured bool   `json:"api_key_configured"`
	MaskedAPIKey     string `json:"masked_api_key,omitempty"`
	APIKeyMessage    string `json:"api_key_message,omitempty"`
}

// Settings edits the preferences kept in the config file.
type Settings struct {
	page
	settings *conf.Settings

	mu         sync.RWMutex
	keyMessage string
}

// NewSettings creates the settings page.
func NewSettings(settings *conf.Settings, log logger.Logger) *Settings {
	s := &Settings{settings: settings}
	s.setup("Settings", log)
	return s
}

// Initialize marks the page loaded; settings are read live.
func (s *Settings) Initialize(ctx context.Context) bool {
	return s.initialize(ctx, func(context.Context) bool { return true })
}

// Input is checked before it reaches conf, so a setter error means the file
// could not be written.

// SaveAPIKey validates and stores a weather API key.
func (s *Settings) SaveAPIKey(ctx context.Context, key string) bool {
	candidate := conf.WeatherSettings{APIKey: key}
	if !candidate.HasValidAPIKey() {
		s.setKeyMessage("Please enter a valid API key.")
		return false
	}
	ok := s.run(ctx, func(context.Context) error {
		return settingsError(s.settings.SetAPIKey(key), "api_key")
	})
	if ok {
		s.setKeyMessage("API key saved.")
		s.log.Info("weather API key updated")
	} else {
		s.setKeyMessage("API key could not be saved.")
	}
	return ok
}

// SaveDisplayName stores the angler's name.
func (s *Settings) SaveDisplayName(ctx context.Context, name string) bool {
	if strings.TrimSpace(name) == "" {
		s.errs.SetMessage("Please enter a display name.")
		return false
	}
	return s.run(ctx, func(context.Context) error {
		return settingsError(s.settings.SetDisplayName(name), "display_name")
	})
}

// SaveUnits switches between imperial and metric.
func (s *Settings) SaveUnits(ctx context.Context, units string) bool {
	units = strings.ToLower(strings.TrimSpace(units))
	if units != conf.UnitsImperial && units != conf.UnitsMetric {
		s.errs.SetMessage("Units must be imperial or metric.")
		return false
	}
	return s.run(ctx, func(context.Context) error {
		return settingsError(s.settings.SetUnits(units), "units")
	})
}

// ToggleUnits flips the unit system.
func (s *Settings) ToggleUnits(ctx context.Context) bool {
	next := conf.UnitsMetric
	if s.settings.Preferences().Units == conf.UnitsMetric {
		next = conf.UnitsImperial
	}
	return s.SaveUnits(ctx, next)
}

func (s *Settings) setKeyMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyMessage = msg
}

// State returns the current preferences.
func (s *Settings) State() SettingsState {
	s.mu.RLock()
	msg := s.keyMessage
	s.mu.RUnlock()

	prefs := s.settings.Preferences()
	return SettingsState{
		PageStatus:       s.status(),
		DisplayName:      prefs.Name,
		Units:            prefs.Units,
		APIKeyConfigured: s.settings.HasWeatherAPIKey(),
		MaskedAPIKey:     MaskSecret(s.settings.WeatherAPIKey()),
		APIKeyMessage:    msg,
	}
}

// MaskSecret keeps the last four characters of a secret.
func MaskSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

func settingsError(err error, field string) error {
	if err == nil {
		return nil
	}
	return errors.New(err).
		Component("viewmodel").
		Category(errors.CategoryConfiguration).
		Context("field", field).
		Build()
}
