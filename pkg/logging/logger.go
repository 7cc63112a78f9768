// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package logging provides the leveled logger used across lcepoll.
//
// The default logger is backed by zap and writes to stderr. Its level is read from
// the LCEPOLL_LOGGING_LEVEL environment variable (debug, info, warn, error), falling
// back to info.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is used for logging formatted messages.
type Logger interface {
	// Debugf logs messages at DEBUG level.
	Debugf(format string, args ...interface{})
	// Infof logs messages at INFO level.
	Infof(format string, args ...interface{})
	// Warnf logs messages at WARN level.
	Warnf(format string, args ...interface{})
	// Errorf logs messages at ERROR level.
	Errorf(format string, args ...interface{})
	// Fatalf logs messages at FATAL level.
	Fatalf(format string, args ...interface{})
}

var (
	defaultLogger Logger
	defaultLevel  zapcore.Level
)

func init() {
	defaultLevel = ParseLevel(os.Getenv("LCEPOLL_LOGGING_LEVEL"))
	defaultLogger = NewZapLogger(defaultLevel)
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(name string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewZapLogger builds a sugared zap logger at the given level.
func NewZapLogger(level zapcore.Level) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.Sampling = nil
	cfg.OutputPaths = []string{"stderr"}
	zl, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return &zapLogger{zl.Sugar()}
}

// zapLogger adds Printf so the same logger can be handed to ants.
type zapLogger struct {
	*zap.SugaredLogger
}

func (l *zapLogger) Printf(format string, args ...interface{}) {
	l.Infof(format, args...)
}

// GetDefaultLogger returns the package-wide logger.
func GetDefaultLogger() Logger {
	return defaultLogger
}

// SetDefaultLogger replaces the package-wide logger, nil is ignored.
func SetDefaultLogger(l Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Printer adapts a Logger to the Printf-only interface some libraries expect.
type Printer struct {
	Logger Logger
}

// Printf logs at INFO level.
func (p Printer) Printf(format string, args ...interface{}) {
	p.Logger.Infof(format, args...)
}

// Error logs err at ERROR level if it is not nil.
func Error(err error) {
	if err != nil {
		defaultLogger.Errorf("error occurs during runtime, %v", err)
	}
}
