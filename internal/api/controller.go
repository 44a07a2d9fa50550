package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
	"github.com/trolltrack/trolltrack/internal/viewmodel"
	"github.com/trolltrack/trolltrack/internal/weather"
)

// WeatherService is the weather client surface served over HTTP.
// *weather.Client implements it.
type WeatherService interface {
	Current(ctx context.Context, lat, lon float64) (*weather.Snapshot, error)
	Forecast(ctx context.Context, lat, lon float64, days int) ([]weather.Snapshot, error)
	ByCity(ctx context.Context, name string) (*weather.Snapshot, error)
	Astronomy(ctx context.Context, lat, lon float64, date time.Time) (*weather.Astronomy, error)
}

// Store is the part of the datastore the API reads and writes.
type Store interface {
	viewmodel.CatchProgramStore

	SaveCatch(ctx context.Context, c *datastore.CatchRecord) error
	GetAllCatches(ctx context.Context) ([]datastore.CatchRecord, error)
	GetCatchesInRange(ctx context.Context, from, to time.Time) ([]datastore.CatchRecord, error)
	GetCatch(ctx context.Context, id string) (*datastore.CatchRecord, error)
	DeleteCatch(ctx context.Context, id string) error
	GetCatchStatistics(ctx context.Context) (*datastore.CatchStatistics, error)
	GetLures(ctx context.Context) ([]datastore.Lure, error)
}

// Dependencies are the services behind the handlers.
type Dependencies struct {
	Weather  WeatherService
	Location viewmodel.LocationService
	Store    Store
}

// Controller owns the /api/v1 routes.
type Controller struct {
	Group *echo.Group

	settings  *conf.Settings
	weather   WeatherService
	location  viewmodel.LocationService
	store     Store
	dashboard *viewmodel.Dashboard
	log       logger.Logger
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// NewController registers the routes on group.
func NewController(group *echo.Group, settings *conf.Settings, deps Dependencies, log logger.Logger) *Controller {
	c := &Controller{
		Group:    group,
		settings: settings,
		weather:  deps.Weather,
		location: deps.Location,
		store:    deps.Store,
		log:      log,
	}
	c.dashboard = viewmodel.NewDashboard(settings, deps.Location, deps.Weather, deps.Store, nil, log)
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	wx := c.Group.Group("/weather")
	wx.GET("/current", c.GetCurrentWeather)
	wx.GET("/forecast", c.GetForecast)
	wx.GET("/city/:name", c.GetCityWeather)
	wx.GET("/astronomy", c.GetAstronomy)

	catches := c.Group.Group("/catches")
	catches.GET("", c.ListCatches)
	catches.GET("/today", c.GetTodaysCatches)
	catches.POST("", c.CreateCatch)
	catches.GET("/:id", c.GetCatch)
	catches.DELETE("/:id", c.DeleteCatch)

	c.Group.GET("/stats", c.GetStatistics)
	c.Group.GET("/lures", c.ListLures)
	c.Group.GET("/dashboard", c.GetDashboard)
}

// StatusForError maps an error category to an HTTP status.
func StatusForError(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch errors.CategoryOf(err) {
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryAPINotConfigured:
		return http.StatusServiceUnavailable
	case errors.CategoryUnauthorized:
		return http.StatusBadGateway
	case errors.CategoryRateLimited:
		return http.StatusTooManyRequests
	case errors.CategoryPermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// HandleError logs err and writes an ErrorResponse. A zero code is
// derived from the error category.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	if code == 0 {
		code = StatusForError(err)
	}
	resp := ErrorResponse{
		Message:       message,
		Code:          code,
		CorrelationID: ctx.Response().Header().Get(echo.HeaderXRequestID),
	}
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Error = http.StatusText(code)
	}

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
		ctx.Set(failureCategoryKey, failureCategory(err))
	}
	log := c.log.WithContext(ctx.Request().Context())
	if code >= http.StatusInternalServerError {
		log.Error("API error", fields...)
	} else {
		log.Debug("API request rejected", fields...)
	}

	return ctx.JSON(code, resp)
}
