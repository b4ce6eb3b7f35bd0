package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/amirphl/Omikuji/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "json", Level: slog.LevelInfo})

	log.Debug("hidden")
	log.Info("draw", slog.String("owner_key", "alice"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "draw", entry["msg"])
	assert.Equal(t, "alice", entry["owner_key"])
}

func TestNewDefaultsToTextOutsideProduction(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Writer: &buf, Environment: "development"}).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestNewWriterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	w, closer := NewWriter(config.LoggingConfig{Output: "file", FilePath: path, MaxSize: 1})

	_, err := w.Write([]byte("line\n"))
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}

func TestNewWriterStdout(t *testing.T) {
	w, closer := NewWriter(config.LoggingConfig{Output: "stdout"})
	assert.Equal(t, os.Stdout, w)
	assert.NoError(t, closer.Close())
}
