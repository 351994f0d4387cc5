package kriging

import (
	"github.com/sirupsen/logrus"

	"github.com/flywave/go-kriging-gpu/internal/logging"
)

// SetLogger configures the logger used by this module and all its sub-packages.
// By default nothing is logged. Pass nil to restore the silent default.
//
// Levels in use:
//   - Debug: solver choice, pipeline state transitions, cache hits
//   - Info: training results, context creation, job completion
//   - Warn: solver fallback, GPU unavailable and CPU-only degradation
func SetLogger(l *logrus.Logger) {
	logging.SetLogger(l)
}

// Logger returns the logger currently in use.
func Logger() *logrus.Logger {
	return logging.Logger()
}
