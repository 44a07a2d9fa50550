package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/events"
	"github.com/trolltrack/trolltrack/internal/logger"
	"github.com/trolltrack/trolltrack/internal/observability/metrics"
	"github.com/trolltrack/trolltrack/internal/weather"
)

const alertType = "good_fishing"

// Notifier watches weather updates and alerts once each time a location's
// conditions turn good. Updates that keep the verdict unchanged are
// suppressed. The state starts as not good, so the first good reading
// after startup alerts.
type Notifier struct {
	sender  Sender
	units   string
	timeout time.Duration
	log     logger.Logger
	metrics *metrics.NotificationMetrics

	mu   sync.Mutex
	good map[string]bool
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithMetrics records deliveries and suppressed updates.
func WithMetrics(m *metrics.NotificationMetrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

// NewNotifier sends through sender. units selects how temperatures and wind
// are written in the message.
func NewNotifier(sender Sender, units string, log logger.Logger, opts ...Option) *Notifier {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	n := &Notifier{
		sender:  sender,
		units:   units,
		timeout: DefaultSendTimeout,
		log:     log.Module("notification"),
		good:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NewFromSettings returns nil without error when notifications are disabled.
func NewFromSettings(settings *conf.Settings, log logger.Logger, opts ...Option) (*Notifier, error) {
	if !settings.Notification.Enabled {
		return nil, nil
	}
	sender, err := NewShoutrrrSender(settings.Notification.URLs, DefaultSendTimeout)
	if err != nil {
		return nil, err
	}
	return NewNotifier(sender, settings.Main.Units, log, opts...), nil
}

func (n *Notifier) Name() string { return "fishing-alerts" }

func (n *Notifier) Types() []events.Type {
	return []events.Type{events.TypeWeatherUpdated}
}

// ProcessEvent handles a weather.Snapshot payload.
func (n *Notifier) ProcessEvent(event events.Event) error {
	var snap *weather.Snapshot
	switch v := event.Payload.(type) {
	case weather.Snapshot:
		snap = &v
	case *weather.Snapshot:
		snap = v
	}
	if snap == nil {
		return errors.Newf("unexpected payload %T for %s", event.Payload, event.Type).
			Component("notification").
			Category(errors.CategoryValidation).
			Build()
	}

	key := locationKey(snap)
	good := snap.IsFishingWeatherGood()

	n.mu.Lock()
	wasGood := n.good[key]
	n.good[key] = good
	n.mu.Unlock()

	if !good || wasGood {
		if n.metrics != nil {
			n.metrics.IncrementSuppressed()
		}
		return nil
	}

	title, message := FormatAlert(snap, n.units)
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	start := time.Now()
	err := n.sender.Send(ctx, title, message)
	if n.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		n.metrics.RecordDelivery(alertType, status, time.Since(start))
	}
	if err != nil {
		// Forget the verdict so the next good update retries.
		n.mu.Lock()
		n.good[key] = false
		n.mu.Unlock()
		n.log.Warn("fishing alert not delivered", logger.String("location", key), logger.Error(err))
		return err
	}

	n.log.Info("fishing alert sent", logger.String("location", key))
	return nil
}

// FormatAlert renders the alert title and body for a snapshot.
func FormatAlert(s *weather.Snapshot, units string) (title, message string) {
	place := s.LocationName
	if place == "" {
		place = fmt.Sprintf("%.4f, %.4f", s.Latitude, s.Longitude)
	}
	title = "Good fishing at " + place

	var b strings.Builder
	b.WriteString(s.Summary(units))
	b.WriteString("\n")
	b.WriteString(s.FishingForecast())
	if s.PrecipitationChance > 0 {
		fmt.Fprintf(&b, "\nChance of rain %d%%", s.PrecipitationChance)
	}
	return title, b.String()
}

func locationKey(s *weather.Snapshot) string {
	if s.LocationName != "" {
		return s.LocationName
	}
	return fmt.Sprintf("%.2f,%.2f", s.Latitude, s.Longitude)
}
