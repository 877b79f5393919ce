package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"quickflare/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogLevelFromString(t *testing.T) {
	assert.Equal(t, DEBUG, GetLogLevelFromString("DEBUG"))
	assert.Equal(t, INFO, GetLogLevelFromString("info"))
	assert.Equal(t, WARN, GetLogLevelFromString("warn"))
	assert.Equal(t, ERROR, GetLogLevelFromString("error"))
	assert.Equal(t, WARN, GetLogLevelFromString("verbose"))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerWithWriter("warn", &buf)
	t.Cleanup(func() { defaultLogger = nil })

	Debugf("debug %d", 1)
	Infof("info %d", 2)
	Warnf("warn %d", 3)
	Error("error", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "WARN: ")
	assert.Contains(t, out, "warn 3")
	assert.Contains(t, out, "error 4")
	assert.Contains(t, out, "logger_test.go")
}

func TestInitLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "quickflare.log")
	InitLogger(&config.LogConfig{Level: "info", Path: path})
	t.Cleanup(func() { defaultLogger = nil })

	Info("tunnel started")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tunnel started")
}
