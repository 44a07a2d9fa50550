package location

import (
	"context"
	"sync"
	"time"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/events"
	"github.com/trolltrack/trolltrack/internal/logger"
	"github.com/trolltrack/trolltrack/internal/observability/metrics"
)

const (
	// MaxHistory bounds the in-memory fix history.
	MaxHistory = 100

	// DefaultSubscriberBuffer is used when Subscribe is called with a
	// non-positive buffer size.
	DefaultSubscriberBuffer = 8

	opLocate = "locate"
)

// Provider hands out the current position. Every fetch is gated on
// permission; successful fixes go into a bounded history and are fanned out
// to subscribers without blocking on slow readers.
type Provider struct {
	source     Source
	permission PermissionChecker
	timeout    time.Duration
	log        logger.Logger
	metrics    *metrics.LocationMetrics
	events     events.Publisher

	mu      sync.RWMutex
	history []Fix
	subs    map[int]chan Fix
	nextSub int
	closed  bool
}

// Option configures a Provider.
type Option func(*Provider)

// WithSource overrides the source selected by settings.
func WithSource(s Source) Option {
	return func(p *Provider) { p.source = s }
}

// WithPermissionChecker overrides the settings backed permission state.
func WithPermissionChecker(c PermissionChecker) Option {
	return func(p *Provider) { p.permission = c }
}

// WithMetrics records fix and subscriber metrics.
func WithMetrics(m *metrics.LocationMetrics) Option {
	return func(p *Provider) { p.metrics = m }
}

// WithEventPublisher publishes every saved fix on the event bus.
func WithEventPublisher(pub events.Publisher) Option {
	return func(p *Provider) { p.events = pub }
}

// NewProvider builds a provider from settings.
func NewProvider(settings *conf.Settings, log logger.Logger, opts ...Option) (*Provider, error) {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	p := &Provider{
		timeout: settings.Location.Timeout,
		log:     log.Module("location"),
		subs:    make(map[int]chan Fix),
	}
	if p.timeout <= 0 {
		p.timeout = conf.DefaultLocationTimeout
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.source == nil {
		src, err := NewSource(settings)
		if err != nil {
			return nil, err
		}
		p.source = src
	}
	if p.permission == nil {
		p.permission = NewSettingsPermission(settings, nil, nil)
	}

	p.log.Debug("location provider ready",
		logger.String("source", p.source.Name()),
		logger.Duration("timeout", p.timeout))
	return p, nil
}

// SourceName returns the name of the active source.
func (p *Provider) SourceName() string {
	return p.source.Name()
}

// RequestPermission resolves the permission state, asking the user when it
// is still undecided, and reports whether location access is granted.
func (p *Provider) RequestPermission(ctx context.Context) (bool, error) {
	state, err := p.permission.Check(ctx)
	if err != nil {
		return false, p.permissionError(err)
	}
	if state == PermissionPrompt {
		if state, err = p.permission.Request(ctx); err != nil {
			return false, p.permissionError(err)
		}
	}
	return state == PermissionGranted, nil
}

// CurrentLocation returns a fresh fix from the source. It fails with
// CategoryPermissionDenied when access is not granted and with
// CategoryLocationUnavailable when the source has no fix in time.
func (p *Provider) CurrentLocation(ctx context.Context) (Fix, error) {
	granted, err := p.RequestPermission(ctx)
	if err != nil {
		return Fix{}, err
	}
	if !granted {
		p.recordFailure(errors.CategoryPermissionDenied)
		return Fix{}, errors.Newf("location permission not granted").
			Component("location").
			Category(errors.CategoryPermissionDenied).
			Context("source", p.source.Name()).
			Build()
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	fix, err := p.source.Locate(ctx)
	if p.metrics != nil {
		p.metrics.RecordDuration(opLocate, time.Since(start).Seconds())
	}
	if err != nil {
		category := errors.CategoryOf(err)
		if category != errors.CategoryLocationUnavailable {
			err = unavailable(err, p.source.Name(), reasonFor(err))
			category = errors.CategoryLocationUnavailable
		}
		p.recordFailure(category)
		p.log.Warn("location fetch failed",
			logger.String("source", p.source.Name()),
			logger.Error(err))
		return Fix{}, err
	}
	if !fix.Valid() {
		p.recordFailure(errors.CategoryLocationUnavailable)
		return Fix{}, errors.Newf("source returned invalid coordinates %f,%f", fix.Latitude, fix.Longitude).
			Component("location").
			Category(errors.CategoryLocationUnavailable).
			Context("source", p.source.Name()).
			Context("reason", ReasonNoFix).
			Build()
	}

	if p.metrics != nil {
		p.metrics.RecordOperation(opLocate, metrics.StatusSuccess)
	}
	p.SaveLocation(fix)
	return fix, nil
}

// SaveLocation appends fix to the history, evicting the oldest entry past
// MaxHistory, and notifies subscribers.
func (p *Provider) SaveLocation(fix Fix) {
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now().UTC()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if len(p.history) >= MaxHistory {
		// Shift in place so the backing array does not grow without bound.
		n := copy(p.history, p.history[len(p.history)-MaxHistory+1:])
		p.history = p.history[:n]
	}
	p.history = append(p.history, fix)
	size := len(p.history)

	dropped := 0
	for _, ch := range p.subs {
		select {
		case ch <- fix:
		default:
			dropped++
		}
	}
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.SetHistorySize(size)
		for range dropped {
			p.metrics.IncrementDropped()
		}
	}
	if dropped > 0 {
		p.log.Debug("location update dropped for slow subscribers", logger.Int("count", dropped))
	}
	if p.events != nil {
		p.events.TryPublish(events.New(events.TypeLocationUpdated, "location", fix))
	}
	p.log.Trace("location saved",
		logger.Float64("latitude", fix.Latitude),
		logger.Float64("longitude", fix.Longitude),
		logger.String("source", fix.Source))
}

// History returns a copy of the stored fixes, oldest first.
func (p *Provider) History() []Fix {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Fix, len(p.history))
	copy(out, p.history)
	return out
}

// LastKnown returns the newest stored fix.
func (p *Provider) LastKnown() (Fix, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.history) == 0 {
		return Fix{}, false
	}
	return p.history[len(p.history)-1], true
}

// Subscribe returns a channel receiving every saved fix and a function that
// cancels the subscription and closes the channel. Fixes are dropped for a
// subscriber whose buffer is full.
func (p *Provider) Subscribe(buffer int) (<-chan Fix, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan Fix, buffer)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	count := len(p.subs)
	p.mu.Unlock()
	p.setSubscribers(count)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			sub, ok := p.subs[id]
			if ok {
				delete(p.subs, id)
				close(sub)
			}
			count := len(p.subs)
			p.mu.Unlock()
			p.setSubscribers(count)
		})
	}
}

// Close ends all subscriptions. Later fixes are ignored.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for id, ch := range p.subs {
		close(ch)
		delete(p.subs, id)
	}
	if p.metrics != nil {
		p.metrics.SetSubscribers(0)
	}
}

func (p *Provider) setSubscribers(n int) {
	if p.metrics != nil {
		p.metrics.SetSubscribers(n)
	}
}

func (p *Provider) recordFailure(category errors.ErrorCategory) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordOperation(opLocate, metrics.StatusError)
	p.metrics.RecordError(opLocate, string(category))
}

func (p *Provider) permissionError(err error) error {
	return errors.New(err).
		Component("location").
		Category(errors.CategoryPermissionDenied).
		Context("source", p.source.Name()).
		Build()
}
