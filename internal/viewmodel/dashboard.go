package viewmodel

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/location"
	"github.com/trolltrack/trolltrack/internal/logger"
	"github.com/trolltrack/trolltrack/internal/weather"
)

// Dashboard summary texts.
const (
	NoCatchesToday    = "No catches today"
	NoActiveProgram   = "None active"
	DataLoadError     = "Error loading data"
	defaultPlaceLabel = "Default Location (Great Lakes)"
)

// DashboardState is what the dashboard shows.
type DashboardState struct {
	PageStatus

	Location       LocationView            `json:"location"`
	Weather        *weather.Snapshot       `json:"weather,omitempty"`
	Derived        *weather.Derived        `json:"derived,omitempty"`
	WeatherSummary string                  `json:"weather_summary"`
	Conditions     string                  `json:"conditions,omitempty"`
	TodaysCatches  int                     `json:"todays_catches"`
	BestCatch      string                  `json:"best_catch"`
	FishingTime    string                  `json:"fishing_time"`
	RecentCatches  []datastore.CatchRecord `json:"recent_catches"`
	CurrentProgram string                  `json:"current_program"`
	LastUpdated    time.Time               `json:"last_updated,omitzero"`
}

// Dashboard is the landing page: where am I, what is the weather doing and
// how is today going.
type Dashboard struct {
	page

	settings *conf.Settings
	location LocationService
	weather  WeatherService
	store    CatchProgramStore
	nav      Navigator
	now      func() time.Time

	loc LocationCache

	mu    sync.RWMutex
	state DashboardState
}

// CatchProgramStore is the part of Store the dashboard reads.
type CatchProgramStore interface {
	GetTodaysCatches(ctx context.Context) ([]datastore.CatchRecord, error)
	GetRecentCatches(ctx context.Context, limit int) ([]datastore.CatchRecord, error)
	GetBestCatchToday(ctx context.Context) (*datastore.CatchRecord, error)
	GetFishingTimeToday(ctx context.Context) (time.Duration, error)
	GetActiveProgram(ctx context.Context) (*datastore.Program, error)
}

// NewDashboard creates the dashboard page. nav may be nil when the page is
// served without a shell, e.g. over HTTP.
func NewDashboard(settings *conf.Settings, loc LocationService, wx WeatherService, store CatchProgramStore, nav Navigator, log logger.Logger) *Dashboard {
	d := &Dashboard{
		settings: settings,
		location: loc,
		weather:  wx,
		store:    store,
		nav:      nav,
		now:      time.Now,
	}
	d.setup("Dashboard", log)
	d.state = DashboardState{
		WeatherSummary: "Loading weather...",
		BestCatch:      NoCatchesToday,
		FishingTime:    FormatFishingTime(0),
		CurrentProgram: NoActiveProgram,
	}
	return d
}

// Initialize loads the page on first appearance. Without a location the
// configured default spot is used.
func (d *Dashboard) Initialize(ctx context.Context) bool {
	return d.initialize(ctx, func(ctx context.Context) bool {
		d.setRefreshStatus("Initializing dashboard...")
		return d.load(ctx, false)
	})
}

// Refresh reloads everything. A location failure keeps the previous weather.
func (d *Dashboard) Refresh(ctx context.Context) bool {
	d.setRefreshStatus("Refreshing dashboard...")
	return d.load(ctx, true)
}

func (d *Dashboard) load(ctx context.Context, isRefresh bool) bool {
	ok := d.run(ctx, func(ctx context.Context) error {
		// weather needs the location; catches load alongside
		var g errgroup.Group
		g.Go(func() error { return d.loadWeather(ctx, isRefresh) })
		g.Go(func() error { return d.loadCatches(ctx) })
		err := g.Wait()

		d.mu.Lock()
		d.state.LastUpdated = d.now()
		d.mu.Unlock()
		return err
	})
	switch {
	case ok && isRefresh:
		d.setRefreshStatus("Dashboard updated")
	case ok:
		d.setRefreshStatus(fmt.Sprintf("Location updated at %s", d.now().Format("15:04:05")))
	case d.Busy():
	default:
		d.setRefreshStatus("Dashboard update failed")
	}
	return ok
}

func (d *Dashboard) setSummary(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.WeatherSummary = s
}

func (d *Dashboard) loadWeather(ctx context.Context, isRefresh bool) error {
	d.setSummary("Fetching location and weather...")

	fix, err := acquireLocation(ctx, d.location, &d.loc)
	if err != nil {
		if isRefresh {
			d.setSummary("Could not update location.")
			return err
		}
		fix = d.defaultFix()
		d.loc.Update(fix)
		d.log.Warn("using default location", logger.Error(err), logger.String("name", fix.Name))
	}

	snap, err := d.weather.Current(ctx, fix.Latitude, fix.Longitude)
	if err != nil {
		d.setSummary("Weather data unavailable.")
		return err
	}

	name := snap.LocationName
	if name == "" {
		name = "Location Unavailable"
	}
	d.loc.SetName(name)

	derived := snap.Derived()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Weather = snap
	d.state.Derived = &derived
	d.state.Conditions = snap.Summary(d.settings.Preferences().Units)
	d.state.WeatherSummary = fmt.Sprintf("Weather updated at %s", d.now().Format("15:04:05"))
	return nil
}

func (d *Dashboard) defaultFix() location.Fix {
	def := d.settings.Location.Default
	name := def.Name
	if name == "" {
		name = defaultPlaceLabel
	}
	lat, lon := def.Latitude, def.Longitude
	if lat == 0 && lon == 0 {
		lat, lon = conf.DefaultLatitude, conf.DefaultLongitude
	}
	return location.Fix{
		Latitude:  lat,
		Longitude: lon,
		Name:      name,
		Source:    "default",
		Timestamp: d.now(),
	}
}

func (d *Dashboard) loadCatches(ctx context.Context) error {
	today, best, span, recent, program, err := d.fetchCatchSummary(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.state.TodaysCatches = 0
		d.state.BestCatch = DataLoadError
		d.state.FishingTime = "N/A"
		d.state.CurrentProgram = "Error"
		return err
	}
	d.state.TodaysCatches = today
	d.state.BestCatch = FormatBestCatch(best)
	d.state.FishingTime = FormatFishingTime(span)
	d.state.RecentCatches = recent
	d.state.CurrentProgram = NoActiveProgram
	if program != nil {
		d.state.CurrentProgram = program.Name
	}
	return nil
}

func (d *Dashboard) fetchCatchSummary(ctx context.Context) (int, *datastore.CatchRecord, time.Duration, []datastore.CatchRecord, *datastore.Program, error) {
	todays, err := d.store.GetTodaysCatches(ctx)
	if err != nil {
		return 0, nil, 0, nil, nil, err
	}
	best, err := d.store.GetBestCatchToday(ctx)
	if err != nil {
		return 0, nil, 0, nil, nil, err
	}
	span, err := d.store.GetFishingTimeToday(ctx)
	if err != nil {
		return 0, nil, 0, nil, nil, err
	}
	recent, err := d.store.GetRecentCatches(ctx, datastore.DefaultRecentCatches)
	if err != nil {
		return 0, nil, 0, nil, nil, err
	}
	program, err := d.store.GetActiveProgram(ctx)
	if err != nil {
		return 0, nil, 0, nil, nil, err
	}
	return len(todays), best, span, recent, program, nil
}

// FollowLocation applies fixes from a location subscription until ctx ends
// or updates closes.
func (d *Dashboard) FollowLocation(ctx context.Context, updates <-chan location.Fix) {
	for {
		select {
		case <-ctx.Done():
			return
		case fix, ok := <-updates:
			if !ok {
				return
			}
			d.loc.Update(fix)
		}
	}
}

// Navigate runs one of the dashboard's shortcuts (log catch, change
// program, history, lures).
func (d *Dashboard) Navigate(ctx context.Context, route Route) bool {
	if d.nav == nil {
		return false
	}
	return d.run(ctx, func(ctx context.Context) error {
		return d.nav.GoTo(ctx, route)
	})
}

// State returns a copy of the page state.
func (d *Dashboard) State() DashboardState {
	d.mu.RLock()
	s := d.state
	s.RecentCatches = slices.Clone(d.state.RecentCatches)
	d.mu.RUnlock()

	s.PageStatus = d.status()
	s.Location = d.loc.View()
	return s
}

// FormatBestCatch renders today's best catch, e.g. "Walleye - 4.2 lbs".
func FormatBestCatch(c *datastore.CatchRecord) string {
	if c == nil {
		return NoCatchesToday
	}
	return fmt.Sprintf("%s - %.1f lbs", c.SpeciesName(), c.Weight)
}

// FormatFishingTime renders a span as "3h 25m".
func FormatFishingTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
