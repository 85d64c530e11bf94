// Package logging builds the zap loggers used by the ratelog binaries.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the log file
const (
	defaultLogMaxSizeMB  = 50
	defaultLogMaxBackups = 5
	defaultLogMaxAgeDays = 14
)

// New creates a zap logger. format "json" selects the production encoder,
// anything else the development console encoder. A non-empty file sends
// output to a rotating log file instead of stderr.
func New(level, format, file string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var loggerConfig zap.Config
	if format == "json" {
		loggerConfig = zap.NewProductionConfig()
	} else {
		loggerConfig = zap.NewDevelopmentConfig()
	}
	loggerConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	if file == "" {
		return loggerConfig.Build()
	}

	return NewWithWriter(loggerConfig, &lumberjack.Logger{
		Filename:   file,
		MaxSize:    defaultLogMaxSizeMB,
		MaxBackups: defaultLogMaxBackups,
		MaxAge:     defaultLogMaxAgeDays,
		Compress:   true,
	}), nil
}

// NewWithWriter builds a logger from cfg that writes to w
func NewWithWriter(cfg zap.Config, w io.Writer) *zap.Logger {
	var encoder zapcore.Encoder
	if cfg.Encoding == "json" {
		encoder = zapcore.NewJSONEncoder(cfg.EncoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(cfg.EncoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), cfg.Level)
	return zap.New(core, zap.ErrorOutput(zapcore.AddSync(os.Stderr)))
}
