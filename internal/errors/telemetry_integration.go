package errors

import (
	"fmt"
	"regexp"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// InitSentry initializes the Sentry SDK and installs a SentryReporter.
// An empty DSN leaves telemetry disabled.
func InitSentry(dsn, release string) error {
	if dsn == "" {
		SetTelemetryReporter(nil)
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		AttachStacktrace: false,
		SendDefaultPII:   false,
	}); err != nil {
		return fmt.Errorf("sentry init failed: %w", err)
	}
	SetTelemetryReporter(NewSentryReporter(true))
	return nil
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError reports an enhanced error to Sentry with secrets scrubbed
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() || !isReportable(ee.Category) {
		return
	}

	message := scrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Error()))

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetLevel(levelFor(ee.Category))
		scope.SetFingerprint([]string{ee.Component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = levelFor(ee.Category)
		event.Exception = []sentry.Exception{{Type: ee.Component + " " + string(ee.Category), Value: message}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// isReportable filters out expected user-facing conditions.
func isReportable(category ErrorCategory) bool {
	switch category {
	case CategoryNotFound, CategoryValidation, CategoryPermissionDenied, CategoryAPINotConfigured:
		return false
	default:
		return true
	}
}

func levelFor(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryConnectivity, CategoryTimeout, CategoryRateLimited, CategoryLocationUnavailable:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

var (
	queryKeyPattern = regexp.MustCompile(`(?i)([?&](?:key|api_key|apikey|token)=)[^&\s]+`)
	apiKeyPattern   = regexp.MustCompile(`(?i)(api[_-]?key[=:]\s*)\S+`)
)

// scrubMessage removes API keys from URLs and key=value fragments.
func scrubMessage(message string) string {
	scrubbed := queryKeyPattern.ReplaceAllString(message, "${1}[REDACTED]")
	return apiKeyPattern.ReplaceAllString(scrubbed, "${1}[REDACTED]")
}

var globalTelemetryReporter atomic.Pointer[TelemetryReporter]

// SetTelemetryReporter sets the global telemetry reporter; nil disables reporting.
func SetTelemetryReporter(reporter TelemetryReporter) {
	if reporter == nil {
		globalTelemetryReporter.Store(nil)
		return
	}
	globalTelemetryReporter.Store(&reporter)
}

func reportToTelemetry(ee *EnhancedError) {
	r := globalTelemetryReporter.Load()
	if r == nil {
		return
	}
	if reporter := *r; reporter.IsEnabled() {
		reporter.ReportError(ee)
	}
}
