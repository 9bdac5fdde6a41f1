package db

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var _ gormLogger.Interface = (*logger)(nil)
var _ tracelog.Logger = (*pgxLogger)(nil)

var (
	levels = map[gormLogger.LogLevel]zap.AtomicLevel{
		gormLogger.Silent: zap.NewAtomicLevelAt(zap.InfoLevel),
		gormLogger.Error:  zap.NewAtomicLevelAt(zap.ErrorLevel),
		gormLogger.Warn:   zap.NewAtomicLevelAt(zap.WarnLevel),
		gormLogger.Info:   zap.NewAtomicLevelAt(zap.InfoLevel),
	}
)

type logger struct {
	logger *zap.Logger
	level  *zap.AtomicLevel
}

func (l logger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	if atomicLevel, ok := levels[level]; ok {
		l.level.SetLevel(atomicLevel.Level())
		return l
	}

	l.logger.Error("invalid log level", zap.Int("level", int(level)))
	return l
}

func (l logger) Info(ctx context.Context, s string, i ...interface{}) {
	l.logger.Info(s, interfacesToFields(i...)...)
}

func (l logger) Warn(ctx context.Context, s string, i ...interface{}) {
	l.logger.Warn(s, interfacesToFields(i...)...)
}

func (l logger) Error(ctx context.Context, s string, i ...interface{}) {
	l.logger.Error(s, interfacesToFields(i...)...)
}

func (l logger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level.Level() <= zap.DebugLevel {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return
		}

		sql, rowsAffected := fc()
		fields := []zap.Field{
			zap.String("sql", sql),
			zap.Int64("rows_affected", rowsAffected),
			zap.Duration("elapsed", time.Since(begin)),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		l.logger.Debug("trace", fields...)
	}
}

func newLogger(zlog *zap.Logger, zlogLevel *zap.AtomicLevel) *logger {
	return &logger{logger: zlog, level: zlogLevel}
}

func interfacesToFields(i ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0)
	for idx, v := range i {
		fields = append(fields, zap.Any(strconv.Itoa(idx), v))
	}
	return fields
}

// pgxLogger routes pgx trace output to zap at debug level. Stores log their
// own failures, so query errors are not repeated above debug.
type pgxLogger struct {
	logger *zap.Logger
}

func (l pgxLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	fields := make([]zap.Field, 0, len(data)+1)
	fields = append(fields, zap.Stringer("pgx_level", level))
	for k, v := range data {
		fields = append(fields, zap.Any(k, v))
	}

	l.logger.Debug(msg, fields...)
}

// newTracer returns nil unless debug logging is on.
func newTracer(zlog *zap.Logger, zlogLevel *zap.AtomicLevel) *tracelog.TraceLog {
	if zlogLevel.Level() > zapcore.DebugLevel {
		return nil
	}

	return &tracelog.TraceLog{
		Logger:   pgxLogger{logger: zlog.Named("pgx")},
		LogLevel: tracelog.LogLevelDebug,
	}
}
