package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes GORM output into a module logger. Statements are logged
// at TRACE, so they only show with module_levels.datastore: trace.
type GormLogger struct {
	log  Logger
	slow time.Duration
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger returns a GORM logger writing to log. Statements slower than
// slow are raised to WARN; 0 turns that off.
func NewGormLogger(log Logger, slow time.Duration) *GormLogger {
	if log == nil {
		log = NewDiscardLogger()
	}
	return &GormLogger{log: log, slow: slow}
}

// LogMode is a no-op; levels come from the logging config.
func (g *GormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return g
}

// Info logs at DEBUG; GORM's notices are not interesting to anglers.
func (g *GormLogger) Info(_ context.Context, msg string, data ...any) {
	g.log.Debug(fmt.Sprintf(msg, data...))
}

func (g *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	g.log.Warn(fmt.Sprintf(msg, data...))
}

func (g *GormLogger) Error(_ context.Context, msg string, data ...any) {
	g.log.Error(fmt.Sprintf(msg, data...))
}

// Trace logs one statement. A missing row is routine (catch lookups by id)
// and stays at TRACE.
func (g *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	took := time.Since(begin)
	sql, rows := fc()
	fields := []Field{
		String("statement", statementKind(sql)),
		String("sql", sql),
		Int64("rows", rows),
		Duration("took", took),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		g.log.Warn("datastore statement failed", append(fields, Error(err))...)
	case g.slow > 0 && took > g.slow:
		g.log.Warn("slow datastore statement", append(fields, Duration("threshold", g.slow))...)
	default:
		g.log.Trace("datastore statement", fields...)
	}
}

// statementKind is the leading SQL verb, such as SELECT or INSERT.
func statementKind(sql string) string {
	verb, _, _ := strings.Cut(strings.TrimSpace(sql), " ")
	if verb == "" {
		return "unknown"
	}
	return strings.ToUpper(verb)
}
