// Package app wires the services every command shares: logging, metrics,
// the event bus, the datastore, the weather client and the location
// provider. Commands take what they need and Close the rest.
package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/trolltrack/trolltrack/internal/backup"
	"github.com/trolltrack/trolltrack/internal/backup/targets"
	"github.com/trolltrack/trolltrack/internal/buildinfo"
	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/events"
	"github.com/trolltrack/trolltrack/internal/location"
	"github.com/trolltrack/trolltrack/internal/logger"
	"github.com/trolltrack/trolltrack/internal/mqtt"
	"github.com/trolltrack/trolltrack/internal/notification"
	"github.com/trolltrack/trolltrack/internal/observability"
	"github.com/trolltrack/trolltrack/internal/suncalc"
	"github.com/trolltrack/trolltrack/internal/weather"
)

// shutdownTimeout bounds draining the event bus on Close
const shutdownTimeout = 5 * time.Second

// App holds the shared services.
type App struct {
	Settings *conf.Settings
	Build    *buildinfo.Context
	Log      logger.Logger
	Metrics  *observability.Metrics

	central  *logger.CentralLogger
	bus      *events.EventBus
	store    *datastore.Store
	weather  *weather.Client
	location *location.Provider
	mqtt     mqtt.Client
}

// Option configures an App.
type Option func(*options)

type options struct {
	log      logger.Logger
	prompter location.Prompter
}

// WithLogger skips the central logger, e.g. in tests.
func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithPrompter asks the user when location permission is undecided.
func WithPrompter(p location.Prompter) Option {
	return func(o *options) { o.prompter = p }
}

// New builds the services from settings. Nothing touches the network or
// the database until it is used.
func New(settings *conf.Settings, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Settings: settings, Build: buildinfo.Current()}

	if o.log != nil {
		a.Log = o.log
	} else {
		central, err := logger.NewCentralLogger(&settings.Logging)
		if err != nil {
			return nil, errors.New(err).
				Component("app").
				Category(errors.CategoryConfiguration).
				Build()
		}
		logger.SetGlobal(central)
		a.central = central
		a.Log = central.Module("main")
	}

	if err := errors.InitSentry(settings.Telemetry.SentryDSN, a.Build.GetVersion()); err != nil {
		a.Log.Warn("telemetry disabled", logger.Error(err))
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}
	a.Metrics = m
	a.bus = events.NewEventBus(events.DefaultConfig(), a.Log)

	a.store, err = datastore.New(settings, a.Log,
		datastore.WithMetrics(m.Datastore),
		datastore.WithEventPublisher(a.bus))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.weather = weather.NewClient(settings, a.Log,
		weather.WithMetrics(m.Weather),
		weather.WithEventPublisher(a.bus),
		weather.WithSunCalc(suncalc.NewSunCalc(time.Local)))

	permission := location.NewSettingsPermission(settings, o.prompter, a.persistPermission)
	a.location, err = location.NewProvider(settings, a.Log,
		location.WithPermissionChecker(permission),
		location.WithMetrics(m.Location),
		location.WithEventPublisher(a.bus))
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// persistPermission saves the answer to a permission prompt.
func (a *App) persistPermission(p location.Permission) {
	a.Settings.Location.Permission = string(p)
	if a.Settings.ConfigPath() == "" {
		return
	}
	if err := a.Settings.Save(); err != nil {
		a.Log.Warn("could not save location permission", logger.Error(err))
	}
}

// Store returns the datastore.
func (a *App) Store() *datastore.Store { return a.store }

// Weather returns the weather client.
func (a *App) Weather() *weather.Client { return a.weather }

// Location returns the location provider.
func (a *App) Location() *location.Provider { return a.location }

// Bus returns the event bus.
func (a *App) Bus() *events.EventBus { return a.bus }

// StartConsumers registers the MQTT catch feed and the fishing alerts on
// the event bus when they are enabled. A broker that cannot be reached is
// logged and retried on the next publish.
func (a *App) StartConsumers(ctx context.Context) error {
	s := a.Settings
	if s.MQTT.Enabled {
		client, err := mqtt.NewClient(s, a.Log, a.Metrics.CatchFeed)
		if err != nil {
			return err
		}
		if err := client.Connect(ctx); err != nil {
			a.Log.Warn("MQTT broker not reachable, will retry", logger.Error(err))
		}
		a.mqtt = client
		if err := a.bus.RegisterConsumer(mqtt.NewPublisher(client, s.MQTT.Topic, s.Main.Name, a.Log)); err != nil {
			return err
		}
	}

	notifier, err := notification.NewFromSettings(s, a.Log, notification.WithMetrics(a.Metrics.Notification))
	if err != nil {
		return err
	}
	if notifier != nil {
		if err := a.bus.RegisterConsumer(notifier); err != nil {
			return err
		}
	}
	return nil
}

// BackupManager builds a backup manager with every enabled target.
func (a *App) BackupManager() (*backup.Manager, error) {
	ts, err := targets.FromSettings(a.Settings, a.Log)
	if err != nil {
		return nil, err
	}
	return backup.NewManager(a.Settings, a.store, a.Log,
		backup.WithMetrics(a.Metrics.Backup),
		backup.WithAppVersion(a.Build.GetVersion()),
		backup.WithTargets(ts...))
}

// Close stops the services in reverse order of creation.
func (a *App) Close() {
	if a.location != nil {
		a.location.Close()
	}
	if a.bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.bus.Shutdown(ctx); err != nil {
			a.Log.Warn("event bus did not drain", logger.Error(err))
		}
		cancel()
	}
	if a.mqtt != nil {
		a.mqtt.Disconnect()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Log.Warn("closing datastore", logger.Error(err))
		}
	}
	if a.central != nil {
		_ = a.central.Close()
	}
}

// StdinPrompter asks for location permission on a terminal.
func StdinPrompter(in io.Reader, out io.Writer) location.Prompter {
	reader := bufio.NewReader(in)
	return func(ctx context.Context) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		_, _ = fmt.Fprint(out, "Allow TrollTrack to use your location? [y/N] ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
