// Package logging builds the application's zap logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production logger for the "production" environment and a
// development logger otherwise. "testing" gets a no-op logger.
//
//	logger, err := logging.New(cfg.App.Env, cfg.App.Debug)
func New(env string, debug bool) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	switch env {
	case "testing":
		return zap.NewNop(), nil
	case "production":
		zc := zap.NewProductionConfig()
		if debug {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
	default:
		zc := zap.NewDevelopmentConfig()
		if !debug {
			zc.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
		logger, err = zc.Build()
	}
	if err != nil {
		return nil, fmt.Errorf("logging: build %s logger: %w", env, err)
	}
	return logger.With(zap.String("env", env)), nil
}
