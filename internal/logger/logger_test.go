package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaminmoo/blesync/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("chatty"))
}

func TestNewFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blesync.log")

	log, closer, err := New(config.LoggerConfig{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("reading stored", "count", 3)
	log.Debug("hidden")
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"reading stored"`)
	assert.Contains(t, string(data), `"count":3`)
	assert.NotContains(t, string(data), "hidden")
}

func TestVerboseForcesDebug(t *testing.T) {
	config.Verbose = true
	t.Cleanup(func() { config.Verbose = false })

	log, closer, err := New(config.LoggerConfig{Level: "error", Output: "stderr"})
	require.NoError(t, err)
	defer closer()

	assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))
}

func TestNewBadOutput(t *testing.T) {
	_, _, err := New(config.LoggerConfig{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}
