// Package location resolves the angler's position. A Provider gates every
// fetch on location permission, asks a pluggable Source for a fix, keeps a
// bounded history and fans new fixes out to subscribers.
package location

import (
	"fmt"
	"math"
	"time"

	"github.com/trolltrack/trolltrack/internal/datastore"
)

// Fix is one position reading.
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  *float64  `json:"altitude,omitempty"` // meters
	Accuracy  *float64  `json:"accuracy,omitempty"` // meters, horizontal
	Course    *float64  `json:"course,omitempty"`   // degrees from true north
	Speed     *float64  `json:"speed,omitempty"`    // meters per second
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"` // gpsd, fixture or static
	Name      string    `json:"name,omitempty"`   // label of a fixture or static point
}

// Valid reports whether the coordinates are on the globe.
func (f Fix) Valid() bool {
	return !math.IsNaN(f.Latitude) && !math.IsNaN(f.Longitude) &&
		f.Latitude >= -90 && f.Latitude <= 90 &&
		f.Longitude >= -180 && f.Longitude <= 180
}

// String formats the fix in degrees, minutes and seconds.
func (f Fix) String() string {
	return FormatDMS(f.Latitude, f.Longitude)
}

// Entity converts the fix into a datastore row.
func (f Fix) Entity() *datastore.LocationFix {
	return &datastore.LocationFix{
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Altitude:  f.Altitude,
		Accuracy:  f.Accuracy,
		Course:    f.Course,
		Speed:     f.Speed,
		Timestamp: f.Timestamp,
	}
}

// FromEntity converts a stored row back into a fix.
func FromEntity(e *datastore.LocationFix) Fix {
	if e == nil {
		return Fix{}
	}
	return Fix{
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		Altitude:  e.Altitude,
		Accuracy:  e.Accuracy,
		Course:    e.Course,
		Speed:     e.Speed,
		Timestamp: e.Timestamp,
	}
}

// FormatDMS renders a coordinate pair as `41° 42' 2.9" N, 83° 2' 43.1" W`.
func FormatDMS(lat, lon float64) string {
	return FormatLatitude(lat) + ", " + FormatLongitude(lon)
}

// FormatLatitude renders a latitude in degrees, minutes and seconds.
func FormatLatitude(lat float64) string {
	hemisphere := "N"
	if lat < 0 {
		hemisphere = "S"
	}
	return formatDMS(lat, hemisphere)
}

// FormatLongitude renders a longitude in degrees, minutes and seconds.
func FormatLongitude(lon float64) string {
	hemisphere := "E"
	if lon < 0 {
		hemisphere = "W"
	}
	return formatDMS(lon, hemisphere)
}

func formatDMS(coord float64, hemisphere string) string {
	coord = math.Abs(coord)
	degrees := math.Floor(coord)
	minutesFull := (coord - degrees) * 60
	minutes := math.Floor(minutesFull)
	seconds := (minutesFull - minutes) * 60

	// 59.96 seconds would print as 60.0
	if math.Round(seconds*10) >= 600 {
		seconds = 0
		minutes++
	}
	if minutes >= 60 {
		minutes = 0
		degrees++
	}
	return fmt.Sprintf("%d° %d' %.1f\" %s", int(degrees), int(minutes), seconds, hemisphere)
}
