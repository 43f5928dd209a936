package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// QueryLogConfig tunes SQL logging for the authorization store. Token
// columns make query logs sensitive, so bound parameters are never logged.
type QueryLogConfig struct {
	Level                gormlogger.LogLevel
	SlowThreshold        time.Duration
	IgnoreRecordNotFound bool
}

// DefaultQueryLogConfig keeps production logs to slow queries and errors.
// Token lookups miss routinely (a miss is how a foreign-region token is
// detected), so record-not-found stays out of the error stream.
func DefaultQueryLogConfig() QueryLogConfig {
	return QueryLogConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        150 * time.Millisecond,
		IgnoreRecordNotFound: true,
	}
}

// QueryLogger adapts the request-scoped zap logger to gorm's logger
// interface.
type QueryLogger struct {
	cfg QueryLogConfig
}

func NewQueryLogger(cfg QueryLogConfig) *QueryLogger {
	return &QueryLogger{cfg: cfg}
}

func (l *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.cfg.Level = level
	return &clone
}

func (l *QueryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, msg, data)
}

func (l *QueryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, msg, data)
}

func (l *QueryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, msg, data)
}

func (l *QueryLogger) message(ctx context.Context, at gormlogger.LogLevel, msg string, data []interface{}) {
	if l.cfg.Level < at {
		return
	}
	fields := []zap.Field{zap.String("component", "store")}
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}
	log := FromContext(ctx)
	switch at {
	case gormlogger.Error:
		log.Error(msg, fields...)
	case gormlogger.Warn:
		log.Warn(msg, fields...)
	default:
		log.Info(msg, fields...)
	}
}

// Trace reports each statement: errors at error level, slow statements at
// warn, everything else only when the level is turned up to Info.
func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	notFound := errors.Is(err, gormlogger.ErrRecordNotFound)

	switch {
	case err != nil && l.cfg.Level >= gormlogger.Error && !(notFound && l.cfg.IgnoreRecordNotFound):
		l.statement(ctx, fc, elapsed, err, gormlogger.Error)
	case l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold && l.cfg.Level >= gormlogger.Warn:
		l.statement(ctx, fc, elapsed, nil, gormlogger.Warn)
	case l.cfg.Level >= gormlogger.Info:
		l.statement(ctx, fc, elapsed, nil, gormlogger.Info)
	}
}

// ParamsFilter drops bound values. Raw token and secret values travel
// through these statements and must never reach the log stream.
func (l *QueryLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *QueryLogger) statement(ctx context.Context, fc func() (string, int64), elapsed time.Duration, err error, at gormlogger.LogLevel) {
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("component", "store"),
		zap.String("statement", statementVerb(sql)),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.Duration("elapsed", elapsed),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	log := FromContext(ctx)
	switch at {
	case gormlogger.Error:
		log.Error("db.query", fields...)
	case gormlogger.Warn:
		log.Warn("db.query", fields...)
	default:
		log.Debug("db.query", fields...)
	}
}

// statementVerb extracts the leading SQL verb, skipping CTE prefixes.
func statementVerb(sql string) string {
	for _, token := range strings.Fields(strings.ToUpper(sql)) {
		switch strings.Trim(token, "();") {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			return strings.Trim(token, "();")
		}
	}
	return "OTHER"
}

var _ gormlogger.Interface = (*QueryLogger)(nil)
