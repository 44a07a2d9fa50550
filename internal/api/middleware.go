package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
	"github.com/trolltrack/trolltrack/internal/observability/metrics"
)

// maxRequestIDLength caps client supplied request ids.
const maxRequestIDLength = 64

// failureCategoryKey carries the category of an error a handler already
// answered through HandleError.
const failureCategoryKey = "failure_category"

// TraceID gives every request a trace id. A client supplied X-Request-ID
// is kept; otherwise a uuid is generated. The id is echoed in the response
// and attached to the request context for the logger.
func TraceID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" || len(id) > maxRequestIDLength {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			c.SetRequest(req.WithContext(logger.WithTraceID(req.Context(), id)))
			return next(c)
		}
	}
}

// RequestLogger logs one line per request at info, or warn for server
// errors.
func RequestLogger(log logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:     func(c echo.Context) bool { return c.Path() == "/health" },
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			l := log.WithContext(c.Request().Context())
			if v.Status >= 500 {
				l.Warn("request", fields...)
			} else {
				l.Info("request", fields...)
			}
			return nil
		},
	})
}

// APIMetrics records requests, latency and response sizes by route
// pattern, so ids in paths do not explode label cardinality. Handler errors
// are counted by error category.
func APIMetrics(m *metrics.APIMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := routeLabel(c)
			status := c.Response().Status
			if err != nil {
				// the error handler has not run yet
				status = StatusForError(err)
				m.RecordFailure(route, failureCategory(err))
			} else if category, ok := c.Get(failureCategoryKey).(string); ok {
				m.RecordFailure(route, category)
			}
			m.RecordRequest(route, c.Request().Method, status, time.Since(start), c.Response().Size)
			return err
		}
	}
}

func failureCategory(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return "routing"
	}
	return string(errors.CategoryOf(err))
}

func routeLabel(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}
