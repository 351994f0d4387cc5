// Package logging holds the logger shared by every package of the module.
//
// The logger is silent until a caller installs one through kriging.SetLogger.
package logging

import (
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var loggerPtr atomic.Pointer[logrus.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

func newNopLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

// Logger returns the active logger. Safe for concurrent use.
func Logger() *logrus.Logger {
	return loggerPtr.Load()
}

// SetLogger replaces the active logger. A nil logger restores the silent default.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// WithComponent returns an entry tagged with the emitting component.
func WithComponent(name string) *logrus.Entry {
	return Logger().WithField("component", name)
}
