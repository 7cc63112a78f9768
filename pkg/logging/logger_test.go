// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

type recordLogger struct {
	lines []string
}

func (r *recordLogger) record(level, format string, args ...interface{}) {
	r.lines = append(r.lines, level+" "+fmt.Sprintf(format, args...))
}

func (r *recordLogger) Debugf(format string, args ...interface{}) { r.record("DEBUG", format, args...) }
func (r *recordLogger) Infof(format string, args ...interface{})  { r.record("INFO", format, args...) }
func (r *recordLogger) Warnf(format string, args ...interface{})  { r.record("WARN", format, args...) }
func (r *recordLogger) Errorf(format string, args ...interface{}) { r.record("ERROR", format, args...) }
func (r *recordLogger) Fatalf(format string, args ...interface{}) { r.record("FATAL", format, args...) }

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" DEBUG ": zapcore.DebugLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for name, want := range cases {
		assert.Equal(t, want, ParseLevel(name), name)
	}
}

func TestDefaultLoggerSwap(t *testing.T) {
	prev := GetDefaultLogger()
	defer SetDefaultLogger(prev)

	rec := &recordLogger{}
	SetDefaultLogger(rec)
	SetDefaultLogger(nil)
	assert.Equal(t, rec, GetDefaultLogger())

	Error(nil)
	Error(fmt.Errorf("disk on fire"))
	assert.Equal(t, []string{"ERROR error occurs during runtime, disk on fire"}, rec.lines)
}

func TestPrinterLogsAtInfo(t *testing.T) {
	rec := &recordLogger{}
	Printer{Logger: rec}.Printf("worker %d exited", 3)
	assert.Equal(t, []string{"INFO worker 3 exited"}, rec.lines)
}

func TestNewZapLogger(t *testing.T) {
	l := NewZapLogger(zapcore.ErrorLevel)
	assert.NotNil(t, l)
	l.Debugf("suppressed %d", 1)
	_, ok := l.(interface {
		Printf(string, ...interface{})
	})
	assert.True(t, ok)
}
