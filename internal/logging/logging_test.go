package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer

	l := New(&buf, slog.LevelWarn)

	l.Info("hidden")
	l.Warn("room degraded", slog.String("room_id", "abc123"))

	var rec map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "room degraded", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "abc123", rec["room_id"])
}

func TestSetupWritesToFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "log", "respawn.log")

	closer := Setup(Options{Path: path, Level: slog.LevelDebug})

	slog.Debug("timer finished", slog.String("timer_id", "t1"))

	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"timer_id":"t1"`)
}
