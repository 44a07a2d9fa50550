package viewmodel

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/logger"
	"github.com/trolltrack/trolltrack/internal/lures"
)

// LuresState is the tackle box page.
type LuresState struct {
	PageStatus
	Lures         []datastore.Lure `json:"lures"`
	SelectedImage string           `json:"selected_image,omitempty"`
	ImageVisible  bool             `json:"image_visible"`
}

// Lures shows the tackle box. An empty store is filled from the catalog the
// first time the page loads.
type Lures struct {
	page
	store       LureStore
	catalogPath string

	mu    sync.RWMutex
	state LuresState
}

// NewLures creates the lures page. catalogPath "" uses the bundled catalog.
func NewLures(store LureStore, catalogPath string, log logger.Logger) *Lures {
	l := &Lures{store: store, catalogPath: catalogPath}
	l.setup("Lures", log)
	return l
}

// Initialize loads the lures on first appearance.
func (l *Lures) Initialize(ctx context.Context) bool {
	return l.initialize(ctx, func(ctx context.Context) bool {
		return l.run(ctx, func(ctx context.Context) error {
			n, err := l.store.CountLures(ctx)
			if err != nil {
				return err
			}
			if n == 0 {
				if err := l.importCatalog(ctx); err != nil {
					return err
				}
			}
			return l.load(ctx)
		})
	})
}

// Refresh reloads the lures from the store.
func (l *Lures) Refresh(ctx context.Context) bool {
	return l.run(ctx, l.load)
}

// ImportCatalog merges the catalog into the store again.
func (l *Lures) ImportCatalog(ctx context.Context) bool {
	return l.run(ctx, func(ctx context.Context) error {
		if err := l.importCatalog(ctx); err != nil {
			return err
		}
		return l.load(ctx)
	})
}

func (l *Lures) importCatalog(ctx context.Context) error {
	items, err := lures.LoadCatalog(l.catalogPath)
	if err != nil {
		return err
	}
	res, err := lures.ImportCatalog(ctx, l.store, items, l.log)
	if err != nil {
		return err
	}
	l.setRefreshStatus(fmt.Sprintf("Imported %d new lures, updated %d", res.Created, res.Updated))
	return nil
}

func (l *Lures) load(ctx context.Context) error {
	list, err := l.store.GetLures(ctx)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Lures = list
	return nil
}

// OpenImage shows one lure picture full size.
func (l *Lures) OpenImage(path string) {
	if path == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.SelectedImage = path
	l.state.ImageVisible = true
}

// CloseImage hides the picture.
func (l *Lures) CloseImage() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.SelectedImage = ""
	l.state.ImageVisible = false
}

// State returns a copy of the page state.
func (l *Lures) State() LuresState {
	l.mu.RLock()
	s := l.state
	s.Lures = slices.Clone(l.state.Lures)
	l.mu.RUnlock()
	s.PageStatus = l.status()
	return s
}
