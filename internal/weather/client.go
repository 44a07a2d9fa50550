package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/events"
	"github.com/trolltrack/trolltrack/internal/logger"
	"github.com/trolltrack/trolltrack/internal/observability/metrics"
	"github.com/trolltrack/trolltrack/internal/suncalc"
)

// Operation names used in errors, logs and metrics
const (
	OpCurrent   = "current"
	OpForecast  = "forecast"
	OpCity      = "city"
	OpAstronomy = "astronomy"
)

const (
	maxResponseBytes = 2 << 20
	// pressure readings older than this are not used for a trend
	pressureTrendWindow = 6 * time.Hour
)

// Client talks to weatherapi.com. It is safe for concurrent use.
type Client struct {
	settings   *conf.Settings
	httpClient *http.Client
	log        logger.Logger

	responses *cache.Cache
	pressures *cache.Cache
	group     singleflight.Group
	limiter   *rate.Limiter

	sun     *suncalc.SunCalc
	metrics *metrics.WeatherMetrics
	events  events.Publisher
	now     func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client; its timeout is left as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics records request and condition metrics.
func WithMetrics(m *metrics.WeatherMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithEventPublisher publishes a WeatherUpdated event for every current
// conditions snapshot.
func WithEventPublisher(p events.Publisher) Option {
	return func(c *Client) { c.events = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithSunCalc shares a sun time calculator.
func WithSunCalc(sc *suncalc.SunCalc) Option {
	return func(c *Client) { c.sun = sc }
}

// NewClient creates a weather client. The API key is read from settings on
// every call so a key saved from the settings page takes effect immediately.
func NewClient(settings *conf.Settings, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	w := settings.Weather

	timeout := w.Timeout
	if timeout <= 0 {
		timeout = conf.DefaultWeatherTimeout
	}
	ttl := w.CacheTTL
	if ttl < 0 {
		ttl = 0
	}
	rpm := w.RequestsPerMinute
	if rpm <= 0 {
		rpm = conf.DefaultRequestsPerMinute
	}

	c := &Client{
		settings:   settings,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.Module("weather"),
		responses:  cache.New(ttl, 2*ttl+time.Minute),
		pressures:  cache.New(pressureTrendWindow, time.Hour),
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sun == nil {
		c.sun = suncalc.NewSunCalc(nil)
	}
	return c
}

// request describes one API call
type request struct {
	operation string
	endpoint  string
	query     url.Values // everything except the key
	isCity    bool
	validate  func(*apiResponse) bool
}

func (r request) cacheKey() string {
	return r.endpoint + "?" + r.query.Encode()
}

// Current returns current conditions at the coordinate.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*Snapshot, error) {
	if err := validateCoordinates(lat, lon, OpCurrent); err != nil {
		return nil, err
	}

	resp, err := c.fetch(ctx, request{
		operation: OpCurrent,
		endpoint:  "/current.json",
		query:     url.Values{"q": {formatCoordinates(lat, lon)}, "aqi": {"yes"}},
		validate:  hasCurrent,
	})
	if err != nil {
		return nil, err
	}

	snapshot := c.currentSnapshot(resp, lat, lon)
	return &snapshot, nil
}

// ByCity returns current conditions for a place name. An unknown name fails
// with a NotFound error.
func (c *Client) ByCity(ctx context.Context, name string) (*Snapshot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newWeatherError(errors.NewStd("city name cannot be empty"), errors.CategoryValidation, OpCity)
	}

	resp, err := c.fetch(ctx, request{
		operation: OpCity,
		endpoint:  "/current.json",
		query:     url.Values{"q": {name}, "aqi": {"yes"}},
		isCity:    true,
		validate:  hasCurrent,
	})
	if err != nil {
		return nil, err
	}

	snapshot := c.currentSnapshot(resp, resp.Location.Lat, resp.Location.Lon)
	return &snapshot, nil
}

// Forecast returns one snapshot per day. days is clamped to [1,3].
func (c *Client) Forecast(ctx context.Context, lat, lon float64, days int) ([]Snapshot, error) {
	if err := validateCoordinates(lat, lon, OpForecast); err != nil {
		return nil, err
	}
	days = ClampForecastDays(days)

	resp, err := c.fetch(ctx, request{
		operation: OpForecast,
		endpoint:  "/forecast.json",
		query: url.Values{
			"q":      {formatCoordinates(lat, lon)},
			"days":   {strconv.Itoa(days)},
			"aqi":    {"no"},
			"alerts": {"no"},
		},
		validate: func(r *apiResponse) bool { return r.Forecast != nil && r.Location != nil },
	})
	if err != nil {
		return nil, err
	}

	tz := timeZone(resp.Location)
	out := make([]Snapshot, 0, len(resp.Forecast.ForecastDay))
	for i := range resp.Forecast.ForecastDay {
		out = append(out, mapForecastDay(&resp.Forecast.ForecastDay[i], resp.Location, tz))
	}
	ApplyPressureTrend(out)

	c.log.Debug("forecast fetched",
		logger.String("location", resp.Location.Name),
		logger.Int("days", len(out)))
	return out, nil
}

// Astronomy returns sun and moon times for the coordinate on date.
func (c *Client) Astronomy(ctx context.Context, lat, lon float64, date time.Time) (*Astronomy, error) {
	if err := validateCoordinates(lat, lon, OpAstronomy); err != nil {
		return nil, err
	}
	day := date.Format(time.DateOnly)

	resp, err := c.fetch(ctx, request{
		operation: OpAstronomy,
		endpoint:  "/astronomy.json",
		query:     url.Values{"q": {formatCoordinates(lat, lon)}, "dt": {day}},
		validate:  func(r *apiResponse) bool { return r.Astronomy != nil },
	})
	if err != nil {
		return nil, err
	}

	astro := mapAstro(&resp.Astronomy.Astro, day, timeZone(resp.Location))
	if resp.Location != nil {
		astro.LocationName = resp.Location.Name
	}
	return &astro, nil
}

// currentSnapshot maps a current.json response and adds the locally
// computed fields: sun times and pressure trend.
func (c *Client) currentSnapshot(resp *apiResponse, lat, lon float64) Snapshot {
	now := c.now()
	s := mapCurrent(resp.Current, resp.Location, now)

	if times, err := c.sun.GetSunEventTimes(lat, lon, now); err == nil {
		tz := timeZone(resp.Location)
		s.Sunrise = times.Sunrise.In(tz)
		s.Sunset = times.Sunset.In(tz)
	} else {
		c.log.Debug("sun times unavailable", logger.Error(err))
	}

	s.PressureTrend = c.pressureTrend(lat, lon, resp.Current.LastUpdatedEpoch, s.Pressure)

	if c.metrics != nil {
		c.metrics.UpdateConditions(s.Temperature, s.Pressure, s.WindSpeed, s.IsFishingWeatherGood())
	}
	if c.events != nil {
		c.events.TryPublish(events.New(events.TypeWeatherUpdated, "weather", s))
	}

	c.log.Debug("current conditions",
		logger.String("location", s.LocationName),
		logger.Float64("temp_f", s.Temperature),
		logger.Float64("pressure_hpa", s.Pressure),
		logger.Float64("wind_mph", s.WindSpeed),
		logger.String("condition", s.WeatherCondition))
	return s
}

// pressureReading is the last observation seen for a location
type pressureReading struct {
	observedAt int64
	pressure   float64
	trend      float64
}

// pressureTrend compares a reading with the previous distinct observation
// for the same spot. A repeated observation keeps its earlier trend.
func (c *Client) pressureTrend(lat, lon float64, observedAt int64, pressure float64) float64 {
	key := fmt.Sprintf("%.2f,%.2f", lat, lon)

	var trend float64
	if v, ok := c.pressures.Get(key); ok {
		prev := v.(pressureReading)
		if prev.observedAt == observedAt {
			return prev.trend
		}
		trend = pressure - prev.pressure
	}
	c.pressures.SetDefault(key, pressureReading{observedAt: observedAt, pressure: pressure, trend: trend})
	return trend
}

// fetch returns the decoded response for req, from cache when fresh.
// Identical concurrent requests share one round trip.
func (c *Client) fetch(ctx context.Context, req request) (*apiResponse, error) {
	if !c.settings.HasWeatherAPIKey() {
		return nil, errors.New(errors.NewStd("weather API key is not configured")).
			Component("weather").
			Category(errors.CategoryAPINotConfigured).
			Context("operation", req.operation).
			Build()
	}

	key := req.cacheKey()
	if v, ok := c.responses.Get(key); ok {
		c.recordCache(req.operation, true)
		return v.(*apiResponse), nil
	}
	c.recordCache(req.operation, false)

	v, err, shared := c.group.Do(key, func() (any, error) {
		resp, err := c.do(ctx, req)
		if err != nil {
			return nil, err
		}
		if ttl := c.settings.Weather.CacheTTL; ttl > 0 {
			c.responses.Set(key, resp, ttl)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Trace("shared in-flight weather request", logger.String("operation", req.operation))
	}
	return v.(*apiResponse), nil
}

// do performs one HTTP round trip and maps failures onto error categories.
// There are no retries.
func (c *Client) do(ctx context.Context, req request) (*apiResponse, error) {
	if err := ctx.Err(); err != nil {
		c.recordFailure(req.operation, errors.CategoryConnectivity)
		return nil, errors.New(fmt.Errorf("weather request abandoned: %w", err)).
			Component("weather").
			Category(errors.CategoryConnectivity).
			Context("operation", req.operation).
			Build()
	}
	if !c.limiter.Allow() {
		c.recordFailure(req.operation, errors.CategoryRateLimited)
		return nil, errors.New(errors.NewStd("weather request budget exhausted, try again shortly")).
			Component("weather").
			Category(errors.CategoryRateLimited).
			Context("operation", req.operation).
			Context("source", "client").
			Build()
	}

	query := url.Values{}
	for k, v := range req.query {
		query[k] = v
	}
	query.Set("key", c.settings.WeatherAPIKey())
	reqURL := strings.TrimRight(c.settings.Weather.BaseURL, "/") + req.endpoint + "?" + query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, newWeatherError(fmt.Errorf("error creating request: %w", err), errors.CategoryConfiguration, req.operation)
	}
	httpReq.Header.Set("User-Agent", UserAgent)
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if c.metrics != nil {
		c.metrics.RecordDuration(req.operation, time.Since(start).Seconds())
	}
	if err != nil {
		c.recordFailure(req.operation, errors.CategoryConnectivity)
		c.log.Warn("weather request failed",
			logger.String("operation", req.operation),
			logger.Bool("timeout", isTimeout(err)),
			logger.Error(stripURL(err)))
		return nil, errors.New(fmt.Errorf("unable to fetch weather data: %w", stripURL(err))).
			Component("weather").
			Category(errors.CategoryConnectivity).
			Context("operation", req.operation).
			Context("timeout", isTimeout(err)).
			Build()
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordStatusCode(req.operation, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.recordFailure(req.operation, errors.CategoryConnectivity)
		return nil, newWeatherError(fmt.Errorf("error reading response body: %w", err), errors.CategoryConnectivity, req.operation)
	}

	if resp.StatusCode != http.StatusOK {
		err := c.statusError(req, resp.StatusCode, body)
		c.recordFailure(req.operation, errors.CategoryOf(err))
		return nil, err
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		c.recordFailure(req.operation, errors.CategoryDataFormat)
		return nil, newWeatherError(fmt.Errorf("received invalid weather data from the API: %w", err), errors.CategoryDataFormat, req.operation)
	}
	if req.validate != nil && !req.validate(&out) {
		c.recordFailure(req.operation, errors.CategoryDataFormat)
		return nil, newWeatherError(errors.NewStd("weather response is missing required sections"), errors.CategoryDataFormat, req.operation)
	}

	if c.metrics != nil {
		c.metrics.RecordOperation(req.operation, metrics.StatusSuccess)
	}
	return &out, nil
}

// statusError maps a non-200 response onto the error taxonomy
func (c *Client) statusError(req request, status int, body []byte) error {
	var apiErr apiErrorBody
	_ = json.Unmarshal(body, &apiErr)
	message := apiErr.Error.Message
	if message == "" {
		message = http.StatusText(status)
	}

	var category errors.ErrorCategory
	var err error
	switch {
	case status == http.StatusUnauthorized,
		apiErr.Error.Code == apiCodeKeyInvalid,
		apiErr.Error.Code == apiCodeKeyDisable:
		category = errors.CategoryUnauthorized
		err = fmt.Errorf("invalid weather API key, check your configuration: %s", message)
	case status == http.StatusForbidden, apiErr.Error.Code == apiCodeQuota:
		category = errors.CategoryUnauthorized
		err = fmt.Errorf("weather API access denied, the key may have exceeded its quota: %s", message)
	case status == http.StatusTooManyRequests:
		category = errors.CategoryRateLimited
		err = fmt.Errorf("weather API rate limit reached: %s", message)
	case req.isCity && (status == http.StatusBadRequest || apiErr.Error.Code == apiCodeNoLocation):
		category = errors.CategoryNotFound
		err = fmt.Errorf("location %q not found, check the spelling", req.query.Get("q"))
	default:
		category = errors.CategoryConnectivity
		err = fmt.Errorf("weather API returned status %d: %s", status, message)
	}

	c.log.Warn("weather API error",
		logger.String("operation", req.operation),
		logger.Int("status_code", status),
		logger.Int("api_code", apiErr.Error.Code),
		logger.String("category", string(category)))

	return errors.New(err).
		Component("weather").
		Category(category).
		Context("operation", req.operation).
		Context("status_code", status).
		Context("api_code", apiErr.Error.Code).
		Build()
}

func (c *Client) recordCache(operation string, hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheResult(operation, hit)
	}
}

func (c *Client) recordFailure(operation string, category errors.ErrorCategory) {
	if c.metrics != nil {
		c.metrics.RecordOperation(operation, metrics.StatusError)
		c.metrics.RecordError(operation, string(category))
	}
}

func hasCurrent(r *apiResponse) bool {
	return r.Current != nil && r.Location != nil
}

func validateCoordinates(lat, lon float64, operation string) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return errors.Newf("coordinates out of range: %f,%f", lat, lon).
			Component("weather").
			Category(errors.CategoryValidation).
			Context("operation", operation).
			Build()
	}
	return nil
}

func formatCoordinates(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}

// stripURL drops the request URL, which carries the API key, from transport errors
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
