package viewmodel

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/location"
)

// BusyGate admits one operation at a time. A second caller is turned away,
// not queued.
type BusyGate struct {
	busy atomic.Bool
}

// TryEnter claims the gate. It returns false when an operation is running.
func (g *BusyGate) TryEnter() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Leave releases the gate.
func (g *BusyGate) Leave() {
	g.busy.Store(false)
}

// IsBusy reports whether an operation is running.
func (g *BusyGate) IsBusy() bool {
	return g.busy.Load()
}

// ErrorState holds the message of the last failed operation.
type ErrorState struct {
	mu      sync.RWMutex
	message string
	err     error
}

// Clear removes the current error.
func (e *ErrorState) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.message = ""
	e.err = nil
}

// Set records err and derives its user-facing message.
func (e *ErrorState) Set(err error) {
	if err == nil {
		e.Clear()
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
	e.message = UserMessage(err)
}

// SetMessage records a message that has no underlying error, such as an
// input check.
func (e *ErrorState) SetMessage(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = nil
	e.message = msg
}

// HasError reports whether a message is set.
func (e *ErrorState) HasError() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.message != ""
}

// Message returns the user-facing message, or "".
func (e *ErrorState) Message() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.message
}

// Err returns the error behind the message, if any.
func (e *ErrorState) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

// ExecuteSafely runs op behind gate. It returns false without running op
// when the gate is taken. The error state is cleared first and set when op
// fails or panics.
func ExecuteSafely(ctx context.Context, gate *BusyGate, errs *ErrorState, op func(context.Context) error) (ok bool) {
	if !gate.TryEnter() {
		return false
	}
	defer gate.Leave()

	errs.Clear()
	defer func() {
		if r := recover(); r != nil {
			errs.Set(errors.Newf("unexpected failure: %v", r).
				Component("viewmodel").
				Category(errors.CategoryGeneric).
				Build())
			ok = false
		}
	}()

	if err := op(ctx); err != nil {
		errs.Set(err)
		return false
	}
	return true
}

// UserMessage turns an error into text for an angler, not a developer.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return "The operation was cancelled."
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The operation took too long. Please try again."
	}

	switch errors.CategoryOf(err) {
	case errors.CategoryPermissionDenied:
		return "Location permission is required for this app to work properly."
	case errors.CategoryLocationUnavailable:
		return "Unable to get your current location. Please check that location services are enabled."
	case errors.CategoryAPINotConfigured:
		return "Weather API key is not configured. Add it on the Settings page."
	case errors.CategoryUnauthorized:
		return "The weather service rejected the API key. Check it on the Settings page."
	case errors.CategoryRateLimited:
		return "Too many weather requests. Please wait a minute and try again."
	case errors.CategoryConnectivity, errors.CategoryTimeout:
		return "Cannot reach the weather service. Check your connection."
	case errors.CategoryDataFormat:
		return "The weather service sent data that could not be read."
	case errors.CategoryPersistence, errors.CategoryFileIO:
		return "Could not access the catch log."
	case errors.CategoryNotFound:
		return "The requested item was not found."
	default:
		return err.Error()
	}
}

// LocationView is the location panel shown on every page.
type LocationView struct {
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	FormattedLatitude  string    `json:"formatted_latitude"`
	FormattedLongitude string    `json:"formatted_longitude"`
	Name               string    `json:"name"`
	HasPermission      bool      `json:"has_permission"`
	HasFix             bool      `json:"has_fix"`
	LastUpdated        time.Time `json:"last_updated,omitzero"`
	LastUpdatedText    string    `json:"last_updated_text"`
}

// LocationCache keeps the last fix a page resolved.
type LocationCache struct {
	mu            sync.RWMutex
	fix           location.Fix
	has           bool
	name          string
	hasPermission bool
}

// Update stores a fix.
func (c *LocationCache) Update(fix location.Fix) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fix = fix
	c.has = true
	if fix.Name != "" {
		c.name = fix.Name
	}
}

// SetName labels the position, usually with the weather service's place name.
func (c *LocationCache) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

// SetPermission records the outcome of the last permission request.
func (c *LocationCache) SetPermission(granted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasPermission = granted
}

// HasPermission reports the last permission outcome.
func (c *LocationCache) HasPermission() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasPermission
}

// Last returns the cached fix.
func (c *LocationCache) Last() (location.Fix, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fix, c.has
}

// View renders the cache for display.
func (c *LocationCache) View() LocationView {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v := LocationView{
		Name:            c.name,
		HasPermission:   c.hasPermission,
		HasFix:          c.has,
		LastUpdatedText: "Never Updated",
	}
	if v.Name == "" {
		v.Name = "Unknown Location"
	}
	lat, lon := 0.0, 0.0
	if c.has {
		lat, lon = roundCoordinate(c.fix.Latitude), roundCoordinate(c.fix.Longitude)
		v.LastUpdated = c.fix.Timestamp
		if !c.fix.Timestamp.IsZero() {
			v.LastUpdatedText = fmt.Sprintf("Last updated: %s", c.fix.Timestamp.Local().Format("15:04"))
		}
	}
	v.Latitude, v.Longitude = lat, lon
	v.FormattedLatitude = location.FormatLatitude(lat)
	v.FormattedLongitude = location.FormatLongitude(lon)
	return v
}

func roundCoordinate(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// acquireLocation asks for permission when needed and resolves a fix into
// cache.
func acquireLocation(ctx context.Context, svc LocationService, cache *LocationCache) (location.Fix, error) {
	if !cache.HasPermission() {
		granted, err := svc.RequestPermission(ctx)
		cache.SetPermission(granted && err == nil)
		if err != nil {
			return location.Fix{}, err
		}
		if !granted {
			return location.Fix{}, errors.Newf("location permission denied").
				Component("viewmodel").
				Category(errors.CategoryPermissionDenied).
				Build()
		}
	}
	fix, err := svc.CurrentLocation(ctx)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryPermissionDenied) {
			cache.SetPermission(false)
		}
		return location.Fix{}, err
	}
	cache.Update(fix)
	return fix, nil
}
