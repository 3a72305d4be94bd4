package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLines int
	}{
		{name: "debug logs everything", level: "debug", wantLines: 4},
		{name: "info drops debug", level: "info", wantLines: 3},
		{name: "warn keeps warn and error", level: "warn", wantLines: 2},
		{name: "error keeps error", level: "error", wantLines: 1},
		{name: "unknown falls back to info", level: "verbose", wantLines: 3},
		{name: "upper case accepted", level: "WARN", wantLines: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &bytes.Buffer{}
			l, err := New(&Config{Level: tt.level, Format: "json", writer: output})
			require.NoError(t, err)

			l.Debug("d")
			l.Info("i")
			l.Warn("w")
			l.Error("e")

			lines := strings.Split(strings.TrimSpace(output.String()), "\n")
			assert.Len(t, lines, tt.wantLines)
		})
	}
}

func TestNew_JSONAttributes(t *testing.T) {
	output := &bytes.Buffer{}
	l, err := New(&Config{Level: "info", Format: "json", writer: output})
	require.NoError(t, err)

	l.With(slog.String("queue", "profile_image")).Info("job completed",
		slog.String("review_id", "rev-42"),
		slog.Int("attempt", 1),
	)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(output.Bytes(), &entry))

	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "job completed", entry["msg"])
	assert.Equal(t, "profile_image", entry["queue"])
	assert.Equal(t, "rev-42", entry["review_id"])
	assert.Equal(t, float64(1), entry["attempt"])
}

func TestNew_ConsoleFormat(t *testing.T) {
	output := &bytes.Buffer{}
	l, err := New(&Config{Level: "info", Format: "console", writer: output})
	require.NoError(t, err)

	l.Info("console message", slog.String("key", "value"))

	assert.Contains(t, output.String(), "console message")
	assert.Contains(t, output.String(), "value")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")

	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	l.Info("written to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNew_FileOutputError(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open log file")
}

func TestNewDefault(t *testing.T) {
	l := NewDefault()
	require.NotNil(t, l)
	assert.NoError(t, l.Close())
}
