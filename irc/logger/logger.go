// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

// Package logger wraps a structured backend behind the small
// level/subsystem/message call shape the rest of the daemon logs
// through (spec §7: every recoverable error is logged, not just
// returned).
package logger

import (
	"github.com/sirupsen/logrus"
)

// Level mirrors the original's LogLevel enum.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
	Fatal
)

// Manager is a server-owned logger handed down to every component
// that needs to log, instead of a package-level global.
type Manager struct {
	backend *logrus.Logger
}

// NewManager builds a Manager backed by logrus, writing leveled,
// subsystem-tagged entries.
func NewManager(level Level) *Manager {
	backend := logrus.New()
	backend.SetLevel(toLogrusLevel(level))
	return &Manager{backend: backend}
}

func toLogrusLevel(l Level) logrus.Level {
	switch l {
	case Debug:
		return logrus.DebugLevel
	case Info:
		return logrus.InfoLevel
	case Warn:
		return logrus.WarnLevel
	case Error:
		return logrus.ErrorLevel
	case Fatal:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// Log writes a single leveled, subsystem-tagged entry.
func (m *Manager) Log(level Level, subsystem, format string, args ...interface{}) {
	entry := m.backend.WithField("subsystem", subsystem)
	switch level {
	case Debug:
		entry.Debugf(format, args...)
	case Info:
		entry.Infof(format, args...)
	case Warn:
		entry.Warnf(format, args...)
	case Error:
		entry.Errorf(format, args...)
	case Fatal:
		entry.Fatalf(format, args...)
	}
}

func (m *Manager) Debug(subsystem, format string, args ...interface{}) {
	m.Log(Debug, subsystem, format, args...)
}

func (m *Manager) Info(subsystem, format string, args ...interface{}) {
	m.Log(Info, subsystem, format, args...)
}

func (m *Manager) Warn(subsystem, format string, args ...interface{}) {
	m.Log(Warn, subsystem, format, args...)
}

func (m *Manager) Error(subsystem, format string, args ...interface{}) {
	m.Log(Error, subsystem, format, args...)
}

func (m *Manager) Fatal(subsystem, format string, args ...interface{}) {
	m.Log(Fatal, subsystem, format, args...)
}
