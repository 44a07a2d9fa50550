package viewmodel

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
)

// CatchInput is what the angler fills in when logging a catch.
type CatchInput struct {
	Species string  `json:"species"`
	Weight  float64 `json:"weight,omitempty"` // pounds
	Length  float64 `json:"length,omitempty"` // inches
	Notes   string  `json:"notes,omitempty"`
	LureID  string  `json:"lure_id,omitempty"`
}

// DateRange is a half-open [From, To) filter.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CatchesState is what the catch log page shows.
type CatchesState struct {
	PageStatus

	Location      LocationView            `json:"location"`
	FishOptions   []string                `json:"fish_options"`
	SelectedFish  string                  `json:"selected_fish,omitempty"`
	Catches       []datastore.CatchRecord `json:"catches"`
	TotalCatches  int                     `json:"total_catches"`
	TodaysCatches int                     `json:"todays_catches"`
	Filter        *DateRange              `json:"filter,omitempty"`
}

// Catches is the catch log page.
type Catches struct {
	page

	location LocationService
	store    CatchProgramLogStore
	now      func() time.Time

	loc LocationCache

	mu    sync.RWMutex
	state CatchesState
}

// CatchProgramLogStore is the part of Store the catch log uses.
type CatchProgramLogStore interface {
	CatchStore
	GetActiveProgram(ctx context.Context) (*datastore.Program, error)
}

// NewCatches creates the catch log page.
func NewCatches(loc LocationService, store CatchProgramLogStore, log logger.Logger) *Catches {
	c := &Catches{location: loc, store: store, now: time.Now}
	c.setup("Catches", log)
	return c
}

// Initialize loads the species list and the log on first appearance.
func (c *Catches) Initialize(ctx context.Context) bool {
	return c.initialize(ctx, func(ctx context.Context) bool {
		return c.run(ctx, func(ctx context.Context) error {
			fish, err := c.store.GetFishInfo(ctx)
			if err != nil {
				return err
			}
			options := make([]string, 0, len(fish))
			for _, f := range fish {
				options = append(options, f.CommonName)
			}
			c.mu.Lock()
			c.state.FishOptions = options
			c.mu.Unlock()
			return c.loadCatches(ctx)
		})
	})
}

// Refresh reloads the log, keeping the current filter.
func (c *Catches) Refresh(ctx context.Context) bool {
	return c.run(ctx, c.loadCatches)
}

func (c *Catches) loadCatches(ctx context.Context) error {
	c.mu.RLock()
	filter := c.state.Filter
	c.mu.RUnlock()

	var (
		list []datastore.CatchRecord
		err  error
	)
	if filter != nil {
		list, err = c.store.GetCatchesInRange(ctx, filter.From, filter.To)
	} else {
		list, err = c.store.GetAllCatches(ctx)
	}
	if err != nil {
		return err
	}
	today, err := c.store.GetTodaysCatches(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Catches = list
	c.state.TotalCatches = len(list)
	c.state.TodaysCatches = len(today)
	c.log.Debug("catches loaded", logger.Int("count", len(list)))
	return nil
}

// SelectFish sets the species used by the next LogCatch without a species.
func (c *Catches) SelectFish(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SelectedFish = strings.TrimSpace(name)
}

// LogCatch records a catch at the current location and puts it at the top
// of the list. It returns nil when nothing was saved.
func (c *Catches) LogCatch(ctx context.Context, in CatchInput) *datastore.CatchRecord {
	species := strings.TrimSpace(in.Species)
	if species == "" {
		c.mu.RLock()
		species = c.state.SelectedFish
		c.mu.RUnlock()
	}
	if species == "" {
		c.errs.SetMessage("Please select a fish species before logging a catch.")
		return nil
	}

	var saved *datastore.CatchRecord
	c.run(ctx, func(ctx context.Context) error {
		if in.Weight < 0 || in.Length < 0 {
			return errors.Newf("weight and length must not be negative").
				Component("viewmodel").
				Category(errors.CategoryValidation).
				Build()
		}
		fix, err := acquireLocation(ctx, c.location, &c.loc)
		if err != nil {
			return err
		}

		record := &datastore.CatchRecord{
			Timestamp: c.now(),
			Location:  fix.Entity(),
			FishInfo:  &datastore.FishInfo{CommonName: species},
			Weight:    in.Weight,
			Length:    in.Length,
			Notes:     strings.TrimSpace(in.Notes),
		}
		if in.LureID != "" {
			lureID := in.LureID
			record.LureID = &lureID
		}
		program, err := c.store.GetActiveProgram(ctx)
		if err != nil {
			return err
		}
		if program != nil {
			record.ProgramID = &program.ID
			record.Program = program
		}

		if err := c.store.SaveCatch(ctx, record); err != nil {
			return err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state.Filter == nil || inRange(record.Timestamp, c.state.Filter) {
			c.state.Catches = slices.Insert(c.state.Catches, 0, *record)
			c.state.TotalCatches++
		}
		if sameDay(record.Timestamp, c.now()) {
			c.state.TodaysCatches++
		}
		saved = record
		return nil
	})
	return saved
}

// Delete removes a catch from the log.
func (c *Catches) Delete(ctx context.Context, id string) bool {
	return c.run(ctx, func(ctx context.Context) error {
		if err := c.store.DeleteCatch(ctx, id); err != nil {
			return err
		}
		return c.loadCatches(ctx)
	})
}

// FilterRange limits the list to [from, to).
func (c *Catches) FilterRange(ctx context.Context, from, to time.Time) bool {
	if !to.After(from) {
		c.errs.SetMessage("The end of the range must be after its start.")
		return false
	}
	c.mu.Lock()
	c.state.Filter = &DateRange{From: from, To: to}
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// ClearFilter shows the whole log again.
func (c *Catches) ClearFilter(ctx context.Context) bool {
	c.mu.Lock()
	c.state.Filter = nil
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// State returns a copy of the page state.
func (c *Catches) State() CatchesState {
	c.mu.RLock()
	s := c.state
	s.Catches = slices.Clone(c.state.Catches)
	s.FishOptions = slices.Clone(c.state.FishOptions)
	c.mu.RUnlock()

	s.PageStatus = c.status()
	s.Location = c.loc.View()
	return s
}

func inRange(t time.Time, r *DateRange) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
