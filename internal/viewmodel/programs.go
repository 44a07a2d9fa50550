package viewmodel

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/logger"
)

// ProgramsState lists the trolling programs.
type ProgramsState struct {
	PageStatus
	Programs []datastore.Program `json:"programs"`
	ActiveID string              `json:"active_id,omitempty"`
}

// Programs manages trolling programs.
type Programs struct {
	page
	store ProgramStore

	mu    sync.RWMutex
	state ProgramsState
}

// NewPrograms creates the programs page.
func NewPrograms(store ProgramStore, log logger.Logger) *Programs {
	p := &Programs{store: store}
	p.setup("Programs", log)
	return p
}

// Initialize loads the programs on first appearance.
func (p *Programs) Initialize(ctx context.Context) bool {
	return p.initialize(ctx, p.Refresh)
}

// Refresh reloads the list.
func (p *Programs) Refresh(ctx context.Context) bool {
	return p.run(ctx, p.load)
}

func (p *Programs) load(ctx context.Context) error {
	programs, err := p.store.GetPrograms(ctx)
	if err != nil {
		return err
	}
	active := ""
	for _, pr := range programs {
		if pr.IsActive {
			active = pr.ID
			break
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Programs = programs
	p.state.ActiveID = active
	return nil
}

// Save creates a program, or updates it when id is set.
func (p *Programs) Save(ctx context.Context, id, name, description string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		p.errs.SetMessage("Please give the program a name.")
		return false
	}
	return p.run(ctx, func(ctx context.Context) error {
		pr := &datastore.Program{ID: id, Name: name, Description: strings.TrimSpace(description)}
		// editing the active program keeps it active
		pr.IsActive = id != "" && p.activeID() == id
		if err := p.store.SaveProgram(ctx, pr); err != nil {
			return err
		}
		return p.load(ctx)
	})
}

// Activate makes id the program in use.
func (p *Programs) Activate(ctx context.Context, id string) bool {
	return p.run(ctx, func(ctx context.Context) error {
		if err := p.store.SetActiveProgram(ctx, id); err != nil {
			return err
		}
		return p.load(ctx)
	})
}

// Delete removes a program no catch refers to.
func (p *Programs) Delete(ctx context.Context, id string) bool {
	return p.run(ctx, func(ctx context.Context) error {
		if err := p.store.DeleteProgram(ctx, id); err != nil {
			return err
		}
		return p.load(ctx)
	})
}

func (p *Programs) activeID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.ActiveID
}

// State returns a copy of the page state.
func (p *Programs) State() ProgramsState {
	p.mu.RLock()
	s := p.state
	s.Programs = slices.Clone(p.state.Programs)
	p.mu.RUnlock()
	s.PageStatus = p.status()
	return s
}
