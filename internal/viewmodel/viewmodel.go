// Package viewmodel holds the state behind each page of the app. Every page
// composes a few small capabilities (a busy gate, an error state, a location
// cache) instead of sharing a base type. Pages never return errors to their
// callers; failures become a user-facing message on the page.
package viewmodel

import (
	"context"
	"time"

	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/location"
	"github.com/trolltrack/trolltrack/internal/weather"
)

// WeatherService fetches current conditions. *weather.Client implements it.
type WeatherService interface {
	Current(ctx context.Context, lat, lon float64) (*weather.Snapshot, error)
}

// LocationService resolves the device position. *location.Provider
// implements it.
type LocationService interface {
	RequestPermission(ctx context.Context) (bool, error)
	CurrentLocation(ctx context.Context) (location.Fix, error)
}

// CatchStore is the catch log.
type CatchStore interface {
	SaveCatch(ctx context.Context, c *datastore.CatchRecord) error
	GetAllCatches(ctx context.Context) ([]datastore.CatchRecord, error)
	GetCatchesInRange(ctx context.Context, from, to time.Time) ([]datastore.CatchRecord, error)
	GetTodaysCatches(ctx context.Context) ([]datastore.CatchRecord, error)
	GetRecentCatches(ctx context.Context, limit int) ([]datastore.CatchRecord, error)
	DeleteCatch(ctx context.Context, id string) error
	GetCatchStatistics(ctx context.Context) (*datastore.CatchStatistics, error)
	GetBestCatchToday(ctx context.Context) (*datastore.CatchRecord, error)
	GetFishingTimeToday(ctx context.Context) (time.Duration, error)
	GetFishInfo(ctx context.Context) ([]datastore.FishInfo, error)
}

// ProgramStore manages trolling programs.
type ProgramStore interface {
	SaveProgram(ctx context.Context, p *datastore.Program) error
	GetPrograms(ctx context.Context) ([]datastore.Program, error)
	SetActiveProgram(ctx context.Context, id string) error
	GetActiveProgram(ctx context.Context) (*datastore.Program, error)
	DeleteProgram(ctx context.Context, id string) error
}

// LureStore is the tackle box.
type LureStore interface {
	SaveLure(ctx context.Context, l *datastore.Lure) error
	GetLures(ctx context.Context) ([]datastore.Lure, error)
	FindLure(ctx context.Context, manufacturer, color string, length float64) (*datastore.Lure, error)
	CountLures(ctx context.Context) (int64, error)
}

// Store is everything the pages read and write. *datastore.Store
// implements it.
type Store interface {
	CatchStore
	ProgramStore
	LureStore
}

// PageStatus is the part of every page state that drives spinners and
// error banners.
type PageStatus struct {
	Title         string `json:"title"`
	Busy          bool   `json:"busy"`
	Initialized   bool   `json:"initialized"`
	Error         string `json:"error,omitempty"`
	RefreshStatus string `json:"refresh_status,omitempty"`
}
