// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package log is the leveled logger used by every component of the collector.
// It wraps a seelog logger behind package-level functions so that components
// never carry a logger reference around.
package log

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cihub/seelog"
)

var (
	logger *CoreLogger

	// Log lines emitted before SetupLogger is called are kept here and
	// replayed once the logger exists. Loading the configuration happens
	// before the logger can be built, so this buffer is short lived.
	logsBuffer           = []func(){}
	bufferLogsBeforeInit = true
	bufferMutex          sync.Mutex
)

// CoreLogger wraps a seelog logger with a runtime-changeable level.
type CoreLogger struct {
	inner seelog.LoggerInterface
	level seelog.LogLevel
	l     sync.RWMutex
}

// SetupLogger installs l as the process logger and replays buffered lines.
func SetupLogger(l seelog.LoggerInterface, level string) {
	lvl, ok := seelog.LogLevelFromString(strings.ToLower(level))
	if !ok {
		lvl = seelog.InfoLvl
	}

	bufferMutex.Lock()
	defer bufferMutex.Unlock()

	if logger != nil && logger.inner != nil {
		logger.inner.Flush()
	}
	logger = &CoreLogger{inner: l, level: lvl}

	bufferLogsBeforeInit = false
	for _, logLine := range logsBuffer {
		logLine()
	}
	logsBuffer = []func(){}
}

// ChangeLogLevel changes the level of the installed logger.
func ChangeLogLevel(level string) error {
	if logger == nil {
		return errors.New("cannot change log level: logger not initialized")
	}
	lvl, ok := seelog.LogLevelFromString(strings.ToLower(level))
	if !ok {
		return fmt.Errorf("bad log level %q", level)
	}
	logger.l.Lock()
	logger.level = lvl
	logger.l.Unlock()
	return nil
}

// GetLogLevel returns the current level of the installed logger.
func GetLogLevel() (seelog.LogLevel, error) {
	if logger == nil {
		return seelog.InfoLvl, errors.New("cannot get log level: logger not initialized")
	}
	logger.l.RLock()
	defer logger.l.RUnlock()
	return logger.level, nil
}

// ShouldLog returns whether a line at lvl would be written.
func ShouldLog(lvl seelog.LogLevel) bool {
	if logger == nil {
		return true
	}
	return logger.shouldLog(lvl)
}

// Flush flushes the underlying logger.
func Flush() {
	if logger != nil && logger.inner != nil {
		logger.inner.Flush()
	}
}

func (sw *CoreLogger) shouldLog(level seelog.LogLevel) bool {
	sw.l.RLock()
	defer sw.l.RUnlock()
	return level >= sw.level
}

func (sw *CoreLogger) write(level seelog.LogLevel, msg string) {
	sw.l.RLock()
	defer sw.l.RUnlock()

	switch level {
	case seelog.TraceLvl:
		sw.inner.Trace(msg)
	case seelog.DebugLvl:
		sw.inner.Debug(msg)
	case seelog.InfoLvl:
		sw.inner.Info(msg)
	case seelog.WarnLvl:
		sw.inner.Warn(msg) //nolint:errcheck
	case seelog.ErrorLvl:
		sw.inner.Error(msg) //nolint:errcheck
	case seelog.CriticalLvl:
		sw.inner.Critical(msg) //nolint:errcheck
	}
}

// logMessage writes msg at level, or buffers it until the logger is set up.
func logMessage(level seelog.LogLevel, msg func() string) {
	bufferMutex.Lock()
	if bufferLogsBeforeInit {
		logsBuffer = append(logsBuffer, func() {
			if logger != nil && logger.shouldLog(level) {
				logger.write(level, msg())
			}
		})
		bufferMutex.Unlock()
		return
	}
	bufferMutex.Unlock()

	if logger != nil && logger.shouldLog(level) {
		logger.write(level, msg())
	}
}

func formatf(format string, params []interface{}) func() string {
	return func() string { return fmt.Sprintf(format, params...) }
}

func format(params []interface{}) func() string {
	return func() string { return strings.TrimSuffix(fmt.Sprintln(params...), "\n") }
}

// Tracef logs at the trace level.
func Tracef(format string, params ...interface{}) {
	logMessage(seelog.TraceLvl, formatf(format, params))
}

// Debugf logs at the debug level.
func Debugf(format string, params ...interface{}) {
	logMessage(seelog.DebugLvl, formatf(format, params))
}

// Infof logs at the info level.
func Infof(format string, params ...interface{}) {
	logMessage(seelog.InfoLvl, formatf(format, params))
}

// Warnf logs at the warn level and returns the message as an error.
func Warnf(format string, params ...interface{}) error {
	msg := fmt.Sprintf(format, params...)
	logMessage(seelog.WarnLvl, func() string { return msg })
	return errors.New(msg)
}

// Errorf logs at the error level and returns the message as an error.
func Errorf(format string, params ...interface{}) error {
	msg := fmt.Sprintf(format, params...)
	logMessage(seelog.ErrorLvl, func() string { return msg })
	return errors.New(msg)
}

// Criticalf logs at the critical level and returns the message as an error.
func Criticalf(format string, params ...interface{}) error {
	msg := fmt.Sprintf(format, params...)
	logMessage(seelog.CriticalLvl, func() string { return msg })
	return errors.New(msg)
}

// Trace logs at the trace level.
func Trace(v ...interface{}) {
	logMessage(seelog.TraceLvl, format(v))
}

// Debug logs at the debug level.
func Debug(v ...interface{}) {
	logMessage(seelog.DebugLvl, format(v))
}

// Info logs at the info level.
func Info(v ...interface{}) {
	logMessage(seelog.InfoLvl, format(v))
}

// Warn logs at the warn level and returns the message as an error.
func Warn(v ...interface{}) error {
	msg := format(v)()
	logMessage(seelog.WarnLvl, func() string { return msg })
	return errors.New(msg)
}

// Error logs at the error level and returns the message as an error.
func Error(v ...interface{}) error {
	msg := format(v)()
	logMessage(seelog.ErrorLvl, func() string { return msg })
	return errors.New(msg)
}

// Critical logs at the critical level and returns the message as an error.
func Critical(v ...interface{}) error {
	msg := format(v)()
	logMessage(seelog.CriticalLvl, func() string { return msg })
	return errors.New(msg)
}
