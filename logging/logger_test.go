package logging

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerSingleton(t *testing.T) {
	t.Setenv("STUDIO_HOME", t.TempDir())

	a := NewLogger("test-component")
	b := NewLogger("test-component")
	assert.Same(t, a, b)

	c := NewLogger("other-component")
	assert.NotSame(t, a, c)
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv("STUDIO_HOME", t.TempDir())
	t.Setenv("STUDIO_LOG_LEVEL", "debug")

	entry := NewLogger("env-level")
	assert.Equal(t, logrus.DebugLevel, entry.Logger.GetLevel())
}

func TestTextFormatter(t *testing.T) {
	f := &TextFormatter{Config: FormatConfig{DisableTimestamp: true}}
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Now(),
		Level:   logrus.WarnLevel,
		Message: "cache miss",
		Data:    logrus.Fields{"component": "store", "path": "/repo/src"},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Contains(t, string(out), "[WARN]")
	assert.Contains(t, string(out), "[store]")
	assert.Contains(t, string(out), "cache miss")
	assert.Contains(t, string(out), "path=/repo/src")
}
