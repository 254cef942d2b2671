package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewManagerDoesNotPanicAtAnyLevel(t *testing.T) {
	for _, lvl := range []Level{Debug, Info, Warn, Error, Fatal} {
		m := NewManager(lvl)
		assert.NotPanics(t, func() {
			m.Log(Info, "test", "hello %s", "world")
		})
	}
}

func TestConvenienceMethodsBelowFatalDoNotPanic(t *testing.T) {
	m := NewManager(Debug)
	assert.NotPanics(t, func() {
		m.Debug("test", "a")
		m.Info("test", "b")
		m.Warn("test", "c")
		m.Error("test", "d")
	})
}
