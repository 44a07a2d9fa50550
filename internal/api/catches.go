package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/location"
)

// CatchRequest is the body of POST /api/v1/catches. Without coordinates
// the catch is logged at the current location.
type CatchRequest struct {
	Species   string     `json:"species"`
	Weight    float64    `json:"weight"`
	Length    float64    `json:"length"`
	Notes     string     `json:"notes"`
	LureID    string     `json:"lure_id"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Timestamp *time.Time `json:"timestamp"`
}

func (r *CatchRequest) validate() error {
	var problems []string
	if strings.TrimSpace(r.Species) == "" {
		problems = append(problems, "species is required")
	}
	if r.Weight < 0 || r.Length < 0 {
		problems = append(problems, "weight and length must not be negative")
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		problems = append(problems, "latitude and longitude must be given together")
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.Newf("%s", strings.Join(problems, "; ")).
		Component("api").
		Category(errors.CategoryValidation).
		Build()
}

// ListCatches handles GET /api/v1/catches with an optional from/to range
// (RFC 3339 or YYYY-MM-DD).
func (c *Controller) ListCatches(ctx echo.Context) error {
	fromRaw, toRaw := ctx.QueryParam("from"), ctx.QueryParam("to")
	reqCtx := ctx.Request().Context()

	if fromRaw == "" && toRaw == "" {
		catches, err := c.store.GetAllCatches(reqCtx)
		if err != nil {
			return c.HandleError(ctx, err, "Failed to list catches", 0)
		}
		return ctx.JSON(http.StatusOK, catches)
	}

	from, err := parseTime(fromRaw)
	if err != nil {
		return c.HandleError(ctx, badParam("from", fromRaw), "Invalid range start", http.StatusBadRequest)
	}
	to := time.Now()
	if toRaw != "" {
		if to, err = parseTime(toRaw); err != nil {
			return c.HandleError(ctx, badParam("to", toRaw), "Invalid range end", http.StatusBadRequest)
		}
	}
	catches, err := c.store.GetCatchesInRange(reqCtx, from, to)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list catches", 0)
	}
	return ctx.JSON(http.StatusOK, catches)
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, raw, time.Local)
}

// GetTodaysCatches handles GET /api/v1/catches/today
func (c *Controller) GetTodaysCatches(ctx echo.Context) error {
	catches, err := c.store.GetTodaysCatches(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list today's catches", 0)
	}
	return ctx.JSON(http.StatusOK, catches)
}

// CreateCatch handles POST /api/v1/catches
func (c *Controller) CreateCatch(ctx echo.Context) error {
	var req CatchRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if err := req.validate(); err != nil {
		return c.HandleError(ctx, err, "Invalid catch", http.StatusBadRequest)
	}
	reqCtx := ctx.Request().Context()

	var fix location.Fix
	if req.Latitude != nil {
		fix = location.Fix{Latitude: *req.Latitude, Longitude: *req.Longitude, Timestamp: time.Now()}
		if !fix.Valid() {
			return c.HandleError(ctx, badParam("latitude/longitude", fix.String()), "Coordinates out of range", http.StatusBadRequest)
		}
	} else {
		if c.location == nil {
			return c.HandleError(ctx, errors.Newf("no location provider configured").
				Component("api").
				Category(errors.CategoryLocationUnavailable).
				Build(), "Location unavailable", http.StatusServiceUnavailable)
		}
		var err error
		if fix, err = c.location.CurrentLocation(reqCtx); err != nil {
			return c.HandleError(ctx, err, "Could not determine location", 0)
		}
	}

	record := &datastore.CatchRecord{
		Location: fix.Entity(),
		FishInfo: &datastore.FishInfo{CommonName: strings.TrimSpace(req.Species)},
		Weight:   req.Weight,
		Length:   req.Length,
		Notes:    strings.TrimSpace(req.Notes),
	}
	if req.Timestamp != nil {
		record.Timestamp = *req.Timestamp
	}
	if req.LureID != "" {
		lureID := req.LureID
		record.LureID = &lureID
	}

	program, err := c.store.GetActiveProgram(reqCtx)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read active program", 0)
	}
	if program != nil {
		record.ProgramID = &program.ID
		record.Program = program
	}

	if err := c.store.SaveCatch(reqCtx, record); err != nil {
		return c.HandleError(ctx, err, "Failed to save catch", 0)
	}
	return ctx.JSON(http.StatusCreated, record)
}

// GetCatch handles GET /api/v1/catches/:id
func (c *Controller) GetCatch(ctx echo.Context) error {
	catch, err := c.store.GetCatch(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get catch", 0)
	}
	return ctx.JSON(http.StatusOK, catch)
}

// DeleteCatch handles DELETE /api/v1/catches/:id
func (c *Controller) DeleteCatch(ctx echo.Context) error {
	if err := c.store.DeleteCatch(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return c.HandleError(ctx, err, "Failed to delete catch", 0)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// GetStatistics handles GET /api/v1/stats
func (c *Controller) GetStatistics(ctx echo.Context) error {
	stats, err := c.store.GetCatchStatistics(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute statistics", 0)
	}
	return ctx.JSON(http.StatusOK, stats)
}

// ListLures handles GET /api/v1/lures
func (c *Controller) ListLures(ctx echo.Context) error {
	lures, err := c.store.GetLures(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list lures", 0)
	}
	return ctx.JSON(http.StatusOK, lures)
}

// GetDashboard handles GET /api/v1/dashboard. The first call initialises
// the page; ?refresh=true reloads it.
func (c *Controller) GetDashboard(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	if ctx.QueryParam("refresh") == "true" && c.dashboard.State().Initialized {
		c.dashboard.Refresh(reqCtx)
	} else {
		c.dashboard.Initialize(reqCtx)
	}
	return ctx.JSON(http.StatusOK, c.dashboard.State())
}
