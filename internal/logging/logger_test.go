package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelValid(t *testing.T) {
	for _, l := range []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		assert.True(t, l.Valid(), string(l))
	}
	assert.False(t, LogLevel("trace").Valid())
	assert.False(t, LogLevel("").Valid())
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelWarn, Console: &buf})
	require.NoError(t, err)

	logger.Info("shader", "compiled", nil)
	assert.Empty(t, buf.String())

	logger.Warn("watch", "auto-reload disabled", map[string]interface{}{"path": "screen.frag"})
	assert.Contains(t, buf.String(), "auto-reload disabled")
	assert.Contains(t, buf.String(), "screen.frag")
}

func TestLoggerErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelDebug, Console: &buf})
	require.NoError(t, err)

	logger.Error("screenshot", "capture failed", errors.New("disk full"), nil)
	assert.Contains(t, buf.String(), "disk full")
}

func TestLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "shadertool.log")
	logger, err := New(&Config{Level: LevelInfo, File: path, Console: &bytes.Buffer{}})
	require.NoError(t, err)

	logger.Info("app", "hello", nil)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.Equal(t, path, logger.GetLogPath())
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelInfo, File: "", Console: &buf})
	require.NoError(t, err)

	zl := logger.Component("renderer")
	zl.Info().Msg("frame")
	assert.Contains(t, buf.String(), "renderer")
}
