package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/weather"
)

// SnapshotResponse is a snapshot with its derived fishing fields.
type SnapshotResponse struct {
	*weather.Snapshot
	Derived weather.Derived `json:"derived"`
	Summary string          `json:"summary"`
}

func (c *Controller) snapshotResponse(s *weather.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		Snapshot: s,
		Derived:  s.Derived(),
		Summary:  s.Summary(c.settings.Preferences().Units),
	}
}

// coordinates reads lat and lon. When both are absent the configured
// default location is used.
func (c *Controller) coordinates(ctx echo.Context) (lat, lon float64, err error) {
	latStr := strings.TrimSpace(ctx.QueryParam("lat"))
	lonStr := strings.TrimSpace(ctx.QueryParam("lon"))
	if latStr == "" && lonStr == "" {
		def := c.settings.Location.Default
		return def.Latitude, def.Longitude, nil
	}
	if lat, err = strconv.ParseFloat(latStr, 64); err != nil {
		return 0, 0, badParam("lat", latStr)
	}
	if lon, err = strconv.ParseFloat(lonStr, 64); err != nil {
		return 0, 0, badParam("lon", lonStr)
	}
	return lat, lon, nil
}

func badParam(name, value string) error {
	return errors.Newf("invalid %s parameter %q", name, value).
		Component("api").
		Category(errors.CategoryValidation).
		Context("parameter", name).
		Build()
}

// GetCurrentWeather handles GET /api/v1/weather/current
func (c *Controller) GetCurrentWeather(ctx echo.Context) error {
	lat, lon, err := c.coordinates(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid coordinates", http.StatusBadRequest)
	}
	snap, err := c.weather.Current(ctx.Request().Context(), lat, lon)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to fetch current weather", 0)
	}
	return ctx.JSON(http.StatusOK, c.snapshotResponse(snap))
}

// GetForecast handles GET /api/v1/weather/forecast
func (c *Controller) GetForecast(ctx echo.Context) error {
	lat, lon, err := c.coordinates(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid coordinates", http.StatusBadRequest)
	}
	days := 3
	if raw := ctx.QueryParam("days"); raw != "" {
		if days, err = strconv.Atoi(raw); err != nil {
			return c.HandleError(ctx, badParam("days", raw), "Invalid forecast length", http.StatusBadRequest)
		}
	}
	snaps, err := c.weather.Forecast(ctx.Request().Context(), lat, lon, days)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to fetch forecast", 0)
	}
	out := make([]SnapshotResponse, 0, len(snaps))
	for i := range snaps {
		out = append(out, c.snapshotResponse(&snaps[i]))
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetCityWeather handles GET /api/v1/weather/city/:name
func (c *Controller) GetCityWeather(ctx echo.Context) error {
	name := strings.TrimSpace(ctx.Param("name"))
	if name == "" {
		return c.HandleError(ctx, badParam("name", name), "City name is required", http.StatusBadRequest)
	}
	snap, err := c.weather.ByCity(ctx.Request().Context(), name)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to fetch city weather", 0)
	}
	return ctx.JSON(http.StatusOK, c.snapshotResponse(snap))
}

// GetAstronomy handles GET /api/v1/weather/astronomy?lat&lon&date
func (c *Controller) GetAstronomy(ctx echo.Context) error {
	lat, lon, err := c.coordinates(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid coordinates", http.StatusBadRequest)
	}
	date := time.Now()
	if raw := ctx.QueryParam("date"); raw != "" {
		if date, err = time.ParseInLocation(time.DateOnly, raw, time.Local); err != nil {
			return c.HandleError(ctx, badParam("date", raw), "Date must be YYYY-MM-DD", http.StatusBadRequest)
		}
	}
	astro, err := c.weather.Astronomy(ctx.Request().Context(), lat, lon, date)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to fetch astronomy", 0)
	}
	return ctx.JSON(http.StatusOK, astro)
}
