package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFromEnv(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"prod":  slog.LevelError,
		"trace": LevelTrace,
		"???":   slog.LevelError,
	}
	for env, want := range tests {
		t.Run(env, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", env)
			assert.Equal(t, want, levelFromEnv())
		})
	}
}

func TestPionLoggerWritesScope(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	l := PionFactory().NewLogger("ice")
	l.Debugf("hidden %d", 1)
	l.Warnf("candidate %s failed", "host")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "candidate host failed")
	assert.Contains(t, out, "scope=ice")
}

func TestInitFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	t.Setenv("LOG_LEVEL", "info")

	path := filepath.Join(t.TempDir(), "warpchat.log")
	closer, err := InitFile(path)
	require.NoError(t, err)

	slog.Info("to the file", "room", "abc")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to the file")
	assert.Contains(t, string(data), "room=abc")
}
