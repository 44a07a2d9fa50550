// Package suncalc computes sunrise and sunset locally. The weather API only
// returns astronomy data on forecast and astronomy calls, so current
// conditions get their sun times from here.
package suncalc

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sj14/astral/pkg/astral"
)

// SunEventTimes holds the sun event times for one day, in the calculator's time zone
type SunEventTimes struct {
	CivilDawn time.Time
	Sunrise   time.Time
	Sunset    time.Time
	CivilDusk time.Time
}

// Daylight returns the time between sunrise and sunset.
func (s SunEventTimes) Daylight() time.Duration {
	return s.Sunset.Sub(s.Sunrise)
}

// IsDaylight reports whether t falls between sunrise and sunset.
func (s SunEventTimes) IsDaylight(t time.Time) bool {
	return !t.Before(s.Sunrise) && t.Before(s.Sunset)
}

// cacheKey identifies a day at a coordinate rounded to about a kilometre;
// sun times do not change measurably within that distance.
type cacheKey struct {
	lat, lon int
	date     string
}

// SunCalc caches sun event times per coordinate and day
type SunCalc struct {
	cache map[cacheKey]SunEventTimes
	lock  sync.RWMutex
	tz    *time.Location
}

// NewSunCalc creates a calculator reporting times in tz. A nil tz means local time.
func NewSunCalc(tz *time.Location) *SunCalc {
	if tz == nil {
		tz = time.Local
	}
	return &SunCalc{
		cache: make(map[cacheKey]SunEventTimes),
		tz:    tz,
	}
}

// GetSunEventTimes returns the sun event times at the coordinate for the
// calendar day of date.
func (sc *SunCalc) GetSunEventTimes(latitude, longitude float64, date time.Time) (SunEventTimes, error) {
	day := date.In(sc.tz)
	key := cacheKey{
		lat:  int(math.Round(latitude * 100)),
		lon:  int(math.Round(longitude * 100)),
		date: day.Format(time.DateOnly),
	}

	sc.lock.RLock()
	times, ok := sc.cache[key]
	sc.lock.RUnlock()
	if ok {
		return times, nil
	}

	times, err := sc.calculate(astral.Observer{Latitude: latitude, Longitude: longitude}, day)
	if err != nil {
		return SunEventTimes{}, err
	}

	sc.lock.Lock()
	sc.cache[key] = times
	sc.lock.Unlock()

	return times, nil
}

func (sc *SunCalc) calculate(observer astral.Observer, day time.Time) (SunEventTimes, error) {
	// astral works on the UTC calendar date
	date := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.UTC)

	civilDawn, err := astral.Dawn(observer, date, astral.DepressionCivil)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate civil dawn: %w", err)
	}
	sunrise, err := astral.Sunrise(observer, date)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate sunrise: %w", err)
	}
	sunset, err := astral.Sunset(observer, date)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate sunset: %w", err)
	}
	civilDusk, err := astral.Dusk(observer, date, astral.DepressionCivil)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate civil dusk: %w", err)
	}

	return SunEventTimes{
		CivilDawn: civilDawn.In(sc.tz),
		Sunrise:   sunrise.In(sc.tz),
		Sunset:    sunset.In(sc.tz),
		CivilDusk: civilDusk.In(sc.tz),
	}, nil
}
