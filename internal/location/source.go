package location

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/errors"
)

// Source produces position fixes.
type Source interface {
	Name() string
	Locate(ctx context.Context) (Fix, error)
}

// StaticSource always reports one configured point.
type StaticSource struct {
	point conf.NamedLocation
	now   func() time.Time
}

// NewStaticSource returns a source pinned to point.
func NewStaticSource(point conf.NamedLocation) *StaticSource {
	return &StaticSource{point: point, now: time.Now}
}

func (s *StaticSource) Name() string { return conf.LocationSourceStatic }

func (s *StaticSource) Locate(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, unavailable(err, s.Name(), reasonFor(err))
	}
	return Fix{
		Latitude:  s.point.Latitude,
		Longitude: s.point.Longitude,
		Timestamp: s.now().UTC(),
		Source:    s.Name(),
		Name:      s.point.Name,
	}, nil
}

// FixtureSource picks one of a set of known fishing spots on every call.
// It stands in for a receiver when developing or demoing away from the water.
type FixtureSource struct {
	mu       sync.Mutex
	fixtures []conf.NamedLocation
	pick     func(n int) int
	now      func() time.Time
}

// NewFixtureSource picks fixtures at random. An empty list falls back to
// conf.DefaultFixtures.
func NewFixtureSource(fixtures []conf.NamedLocation) *FixtureSource {
	if len(fixtures) == 0 {
		fixtures = conf.DefaultFixtures
	}
	return &FixtureSource{
		fixtures: append([]conf.NamedLocation(nil), fixtures...),
		pick:     rand.IntN,
		now:      time.Now,
	}
}

// NewSequentialFixtureSource cycles through the fixtures in order.
func NewSequentialFixtureSource(fixtures []conf.NamedLocation) *FixtureSource {
	s := NewFixtureSource(fixtures)
	next := 0
	s.pick = func(n int) int {
		i := next % n
		next++
		return i
	}
	return s
}

func (s *FixtureSource) Name() string { return conf.LocationSourceFixture }

func (s *FixtureSource) Locate(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, unavailable(err, s.Name(), reasonFor(err))
	}

	s.mu.Lock()
	point := s.fixtures[s.pick(len(s.fixtures))]
	s.mu.Unlock()

	return Fix{
		Latitude:  point.Latitude,
		Longitude: point.Longitude,
		Timestamp: s.now().UTC(),
		Source:    s.Name(),
		Name:      point.Name,
	}, nil
}

// NewSource builds the source selected by settings.Location.Source.
func NewSource(settings *conf.Settings) (Source, error) {
	loc := settings.Location
	switch loc.Source {
	case conf.LocationSourceGpsd:
		addr := loc.GpsdAddress
		if addr == "" {
			addr = conf.DefaultGpsdAddress
		}
		return NewGpsdSource(addr), nil
	case conf.LocationSourceFixture:
		return NewFixtureSource(loc.Fixtures), nil
	case "", conf.LocationSourceStatic:
		return NewStaticSource(loc.Default), nil
	default:
		return nil, errors.Newf("unknown location source %q", loc.Source).
			Component("location").
			Category(errors.CategoryConfiguration).
			Context("source", loc.Source).
			Build()
	}
}

// Reasons attached to LocationUnavailable errors.
const (
	ReasonTimeout     = "timeout"
	ReasonDisabled    = "disabled"
	ReasonUnsupported = "unsupported"
	ReasonNoFix       = "no_fix"
)

func unavailable(err error, source, reason string) error {
	return errors.New(err).
		Component("location").
		Category(errors.CategoryLocationUnavailable).
		Context("source", source).
		Context("reason", reason).
		Build()
}

func reasonFor(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return ReasonNoFix
}
