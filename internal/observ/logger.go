// Package observ builds the service logger.
package observ

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger picks the encoder by environment: JSON with ISO8601
// timestamps in production for log shippers, the console encoder
// everywhere else. Polling endpoints log each request at debug, so an
// unparsable level falls back to info rather than drowning the output.
func NewLogger(env, level string) (*zap.Logger, error) {
	var config zap.Config
	var opts []zap.Option

	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		opts = append(opts, zap.Fields(zap.String("service", "chatspace")))
	} else {
		config = zap.NewDevelopmentConfig()
	}

	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	return config.Build(opts...)
}
