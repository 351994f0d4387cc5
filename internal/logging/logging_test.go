package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestDefaultLoggerSilent(t *testing.T) {
	a := assert.New(t)

	l := Logger()
	a.NotNil(l)
	a.False(l.IsLevelEnabled(logrus.InfoLevel))
	a.False(l.IsLevelEnabled(logrus.WarnLevel))
}

func TestSetLogger(t *testing.T) {
	a := assert.New(t)
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)
	SetLogger(l)

	WithComponent("trainer").Info("fitted")
	a.True(strings.Contains(buf.String(), "component=trainer"))

	SetLogger(nil)
	a.False(Logger().IsLevelEnabled(logrus.InfoLevel))
}
