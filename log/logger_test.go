package log

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCapturedLogger(level Level) (*DefaultLogger, *strings.Builder) {
	var buf strings.Builder
	l := NewCustomLogger(&buf, level)
	l.now = func() time.Time { return time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC) }
	return l, &buf
}

func TestDefaultLogger_LineFormat(t *testing.T) {
	l, buf := newCapturedLogger(LevelDebug)

	l.Info("ingested %s with %d chunks", "record.pdf", 3)

	line := buf.String()
	assert.Equal(t, "[medrag] 2024/03/01 10:30:00 [INFO] ingested record.pdf with 3 chunks\n", line)
}

func TestDefaultLogger_LevelFiltering(t *testing.T) {
	l, buf := newCapturedLogger(LevelWarn)

	l.Debug("dropped")
	l.Info("dropped")
	l.Warn("vector store degraded")
	l.Error("document store write failed")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "[WARN] vector store degraded")
	assert.Contains(t, out, "[ERROR] document store write failed")
}

func TestDefaultLogger_NoneSilencesAll(t *testing.T) {
	l, buf := newCapturedLogger(LevelNone)

	l.Error("still dropped")
	assert.Empty(t, buf.String())
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "NONE", LevelNone.String())
	assert.Equal(t, "UNKNOWN(9)", Level(9).String())
}

func TestSetLogLevelReplacesPackageLogger(t *testing.T) {
	orig := GetDefaultLogger()
	defer SetDefaultLogger(orig)

	SetLogLevel(LevelError)
	l, ok := GetDefaultLogger().(*DefaultLogger)
	require.True(t, ok)
	assert.Equal(t, LevelError, l.level)
}
