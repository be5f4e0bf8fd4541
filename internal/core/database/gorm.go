package database

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
)

var ErrUnsupportedDriver = errors.New("unsupported db driver")

type Opts struct {
	Driver             string // postgres / mysql
	DSN                string
	Username           string // 仅 mysql URL 形式的 DSN 使用
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	LogLevel           string        // silent / error / warn / info
	SlowThreshold      time.Duration // 0 时取 200ms
	Log                *zap.Logger   // 为 nil 时不输出 SQL 日志
}

func dialector(o Opts) (gorm.Dialector, string, error) {
	switch o.Driver {
	case "postgres":
		return postgres.Open(o.DSN), maskDSN(o.DSN), nil
	case "mysql":
		dsn := normalizeMySQLDSN(o.DSN, o.Username, o.Password)
		return mysql.Open(dsn), maskDSN(dsn), nil
	}
	return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, o.Driver)
}

// NewGorm 打开连接并 Ping；返回的 *gorm.DB 默认不开隐式事务
func NewGorm(o Opts) (*gorm.DB, error) {
	dial, masked, err := dialector(o)
	if err != nil {
		return nil, err
	}
	l := o.Log
	if l == nil {
		l = zap.NewNop()
	}
	l.Info("db opening", zap.String("driver", o.Driver), zap.String("dsn", masked))

	db, err := gorm.Open(dial, &gorm.Config{
		Logger:                 NewZapLogger(l, parseLevel(o.LogLevel), o.SlowThreshold),
		TranslateError:         true, // 唯一索引冲突 -> gorm.ErrDuplicatedKey
		PrepareStmt:            true,
		CreateBatchSize:        200,
		SkipDefaultTransaction: true, // 写多表的地方自己开 Tx
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	sqlDB.SetMaxOpenConns(o.MaxOpenConns)
	sqlDB.SetMaxIdleConns(o.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(o.ConnMaxLifetimeMin) * time.Minute)
	return db, nil
}

func parseLevel(s string) logger.LogLevel {
	switch s {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	}
	return logger.Warn
}
