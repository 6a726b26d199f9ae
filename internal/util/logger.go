package util

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger is shared by every component; Component derives named children from it.
var logger *zap.Logger

// InitLogger builds the process logger for env and installs it as zap's global.
// Every entry carries the service name.
func InitLogger(env string) error {
	var err error
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.InitialFields = map[string]interface{}{"service": serviceName}

	logger, err = config.Build()
	if err != nil {
		return err
	}

	zap.ReplaceGlobals(logger)
	return nil
}

// GetLogger returns the process logger, falling back to a development
// logger when InitLogger was never called (tests, the token CLI).
func GetLogger() *zap.Logger {
	if logger == nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger
}

// Component returns the global logger scoped to a named component.
func Component(name string) *zap.Logger {
	return GetLogger().Named(name)
}

// SyncLogger flushes buffered entries before exit
func SyncLogger() {
	if logger != nil {
		_ = logger.Sync()
	}
}
