package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/homecook-backend/pkg/logger"
)

const maxLoggedSQL = 512

// queryLogger routes gorm diagnostics into the service logger. Only failed
// statements and statements slower than the threshold are logged; missing
// rows are an expected outcome of lookups and stay silent.
type queryLogger struct {
	logg      *logger.Logger
	slow      time.Duration
	silent    bool
	debugMode bool
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &queryLogger{logg: logg, slow: slow}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *q
	clone.silent = level == gormlogger.Silent
	clone.debugMode = level >= gormlogger.Info
	return &clone
}

func (q *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if !q.silent {
		q.logg.Debug(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if !q.silent {
		q.logg.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if !q.silent {
		q.logg.Error(ctx, "gorm", fmt.Errorf(msg, args...))
	}
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := q.slow > 0 && elapsed > q.slow
	if !failed && !slow && !q.debugMode {
		return
	}

	sql, rows := fc()
	if len(sql) > maxLoggedSQL {
		sql = sql[:maxLoggedSQL] + "..."
	}
	ctx = q.logg.WithFields(ctx, map[string]any{
		"sql":         sql,
		"rows":        rows,
		"duration_ms": elapsed.Milliseconds(),
	})
	switch {
	case failed:
		q.logg.Error(ctx, "query failed", err)
	case slow:
		q.logg.Warn(ctx, "slow query")
	default:
		q.logg.Debug(ctx, "query")
	}
}
