package infra

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormLogger "gorm.io/gorm/logger"
)

// 超过该耗时的 SQL 按慢查询告警
const slowQueryThreshold = 200 * time.Millisecond

// zapGormLogger 把 GORM 日志桥接到 zap
// record not found 不算错误，由业务层自行判断
type zapGormLogger struct {
	log   *zap.Logger
	level gormLogger.LogLevel
}

func newGormLogger(log *zap.Logger, level gormLogger.LogLevel) gormLogger.Interface {
	return &zapGormLogger{log: log, level: level}
}

// LogMode 返回指定级别的副本
func (l *zapGormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *zapGormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormLogger.Info {
		l.log.Sugar().Infof(msg, args...)
	}
}

func (l *zapGormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormLogger.Warn {
		l.log.Sugar().Warnf(msg, args...)
	}
}

func (l *zapGormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormLogger.Error {
		l.log.Sugar().Errorf(msg, args...)
	}
}

// Trace 记录单条 SQL 的执行情况
func (l *zapGormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormLogger.Silent {
		return
	}

	sql, rows := fc()
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gormLogger.ErrRecordNotFound):
		l.log.Error("SQL 执行失败",
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	case elapsed >= slowQueryThreshold:
		l.log.Warn("SQL 慢查询",
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
		)
	case l.level >= gormLogger.Info:
		l.log.Debug("SQL 执行",
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
		)
	}
}
