package app

import (
	"sync"

	"github.com/trolltrack/trolltrack/internal/conf"
)

// Loader builds the App the first time a command asks for it, after cobra
// has parsed the persistent flags.
type Loader struct {
	ConfigPath string
	Debug      bool

	opts []Option

	mu  sync.Mutex
	app *App
}

// NewLoader returns a loader that passes opts to New.
func NewLoader(opts ...Option) *Loader {
	return &Loader{opts: opts}
}

// Get loads the settings and builds the App once.
func (l *Loader) Get() (*App, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.app != nil {
		return l.app, nil
	}

	settings, err := conf.Load(l.ConfigPath)
	if err != nil {
		return nil, err
	}
	if l.Debug {
		settings.Debug = true
		settings.Logging.DefaultLevel = "debug"
	}

	a, err := New(settings, l.opts...)
	if err != nil {
		return nil, err
	}
	l.app = a
	return a, nil
}

// Close closes the App if it was built.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.app != nil {
		l.app.Close()
		l.app = nil
	}
}
