package viewmodel

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/logger"
)

// SpeciesCount is how many of one species were caught.
type SpeciesCount struct {
	Species  string  `json:"species"`
	Count    int     `json:"count"`
	Heaviest float64 `json:"heaviest,omitempty"` // pounds
}

// AnalyticsState summarises the catch log.
type AnalyticsState struct {
	PageStatus
	Statistics *datastore.CatchStatistics `json:"statistics,omitempty"`
	BySpecies  []SpeciesCount             `json:"by_species"`
}

// Analytics is the statistics page.
type Analytics struct {
	page
	store CatchStore

	mu    sync.RWMutex
	state AnalyticsState
}

// NewAnalytics creates the analytics page.
func NewAnalytics(store CatchStore, log logger.Logger) *Analytics {
	a := &Analytics{store: store}
	a.setup("Analytics", log)
	return a
}

// Initialize loads the statistics on first appearance.
func (a *Analytics) Initialize(ctx context.Context) bool {
	return a.initialize(ctx, a.Refresh)
}

// Refresh recomputes the statistics.
func (a *Analytics) Refresh(ctx context.Context) bool {
	return a.run(ctx, func(ctx context.Context) error {
		stats, err := a.store.GetCatchStatistics(ctx)
		if err != nil {
			return err
		}
		all, err := a.store.GetAllCatches(ctx)
		if err != nil {
			return err
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		a.state.Statistics = stats
		a.state.BySpecies = CountBySpecies(all)
		return nil
	})
}

// CountBySpecies groups catches by species, most caught first.
func CountBySpecies(catches []datastore.CatchRecord) []SpeciesCount {
	index := make(map[string]int)
	var out []SpeciesCount
	for i := range catches {
		name := catches[i].SpeciesName()
		pos, ok := index[name]
		if !ok {
			pos = len(out)
			index[name] = pos
			out = append(out, SpeciesCount{Species: name})
		}
		out[pos].Count++
		out[pos].Heaviest = max(out[pos].Heaviest, catches[i].Weight)
	}
	slices.SortStableFunc(out, func(a, b SpeciesCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Species, b.Species)
	})
	return out
}

// State returns a copy of the page state.
func (a *Analytics) State() AnalyticsState {
	a.mu.RLock()
	s := a.state
	s.BySpecies = slices.Clone(a.state.BySpecies)
	a.mu.RUnlock()
	s.PageStatus = a.status()
	return s
}
