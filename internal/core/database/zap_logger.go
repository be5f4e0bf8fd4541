package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	applog "marketplace-api/internal/core/logger"
)

const defaultSlowThreshold = 200 * time.Millisecond

// ZapLogger 把 gorm 日志写进 zap；请求 ctx 里有 logger 时带上 request_id
type ZapLogger struct {
	log   *zap.Logger
	level logger.LogLevel
	slow  time.Duration
}

func NewZapLogger(l *zap.Logger, level logger.LogLevel, slow time.Duration) *ZapLogger {
	if slow <= 0 {
		slow = defaultSlowThreshold
	}
	return &ZapLogger{log: l.WithOptions(zap.AddCallerSkip(3)), level: level, slow: slow}
}

func (z *ZapLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *z
	cp.level = level
	return &cp
}

func (z *ZapLogger) from(ctx context.Context) *zap.Logger {
	return applog.FromContext(ctx, z.log)
}

func (z *ZapLogger) Info(ctx context.Context, msg string, args ...any) {
	if z.level >= logger.Info {
		z.from(ctx).Info(fmt.Sprintf(msg, args...))
	}
}

func (z *ZapLogger) Warn(ctx context.Context, msg string, args ...any) {
	if z.level >= logger.Warn {
		z.from(ctx).Warn(fmt.Sprintf(msg, args...))
	}
}

func (z *ZapLogger) Error(ctx context.Context, msg string, args ...any) {
	if z.level >= logger.Error {
		z.from(ctx).Error(fmt.Sprintf(msg, args...))
	}
}

func (z *ZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if z.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	// 查不到记录由 repo 层处理，不算错误
	case err != nil && z.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		z.from(ctx).Error("sql failed", zap.Error(err), zap.Duration("elapsed", elapsed),
			zap.Int64("rows", rows), zap.String("sql", sql))
	case elapsed > z.slow && z.level >= logger.Warn:
		sql, rows := fc()
		z.from(ctx).Warn("slow sql", zap.Duration("elapsed", elapsed), zap.Duration("threshold", z.slow),
			zap.Int64("rows", rows), zap.String("sql", sql))
	case z.level >= logger.Info:
		sql, rows := fc()
		z.from(ctx).Debug("sql", zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	}
}
