package gormstore

import (
	"fmt"
	"strings"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// NewGormLogger routes gorm output to the congresso logger.
func NewGormLogger(level string) gormlogger.Interface {
	var gormLevel gormlogger.LogLevel
	switch strings.ToUpper(level) {
	case "ERROR":
		gormLevel = gormlogger.Error
	case "WARN":
		gormLevel = gormlogger.Warn
	case "INFO", "DEBUG":
		gormLevel = gormlogger.Info
	default:
		gormLevel = gormlogger.Silent
	}
	return gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormLevel,
		IgnoreRecordNotFoundError: true,
	})
}

type gormWriter struct{}

// Printf treats SQL traces as DEBUG and everything else (slow queries, errors) as WARN.
func (gormWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	if strings.Contains(msg, "SLOW SQL") || strings.Contains(strings.ToLower(msg), "error") {
		logger.Warnf("[GORM] %s", msg)
		return
	}
	logger.Debugf("[GORM] %s", msg)
}
