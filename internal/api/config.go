// Package api serves the page state and the catch log as a JSON API over
// echo, plus the Prometheus /metrics endpoint.
package api

import (
	"net"
	"strings"
	"time"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/errors"
)

// Default constants for the HTTP server.
const (
	DefaultListen          = "127.0.0.1:8089"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "1M"
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	BodyLimit string
}

// DefaultConfig returns a Config with the default timeouts.
func DefaultConfig() *Config {
	return &Config{
		Listen:          DefaultListen,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
	}
}

// ConfigFromSettings overlays the api section of settings on the defaults.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	if settings == nil {
		return cfg
	}
	if listen := strings.TrimSpace(settings.API.Listen); listen != "" {
		cfg.Listen = listen
	}
	return cfg
}

// Validate checks the listen address and timeouts.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryConfiguration).
			Context("listen", c.Listen).
			Build()
	}
	if c.ShutdownTimeout <= 0 {
		return errors.Newf("shutdown timeout must be positive, got %s", c.ShutdownTimeout).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}
