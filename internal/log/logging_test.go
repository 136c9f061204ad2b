package log_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mirrorctl/relook/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	type testCase struct {
		in       string
		expected slog.Level
	}
	testCases := []testCase{
		{in: "trace", expected: log.LevelTrace},
		{in: "DEBUG", expected: slog.LevelDebug},
		{in: " warn ", expected: slog.LevelWarn},
		{in: "error", expected: slog.LevelError},
		{in: "", expected: slog.LevelInfo},
		{in: "verbose", expected: slog.LevelInfo},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.expected, log.ParseLevel(tc.in))
		})
	}
}

func TestFanoutSplitsByLevel(t *testing.T) {
	var low, high bytes.Buffer
	logger := slog.New(log.Fanout(
		log.Filter(func(l slog.Level) bool { return l < slog.LevelError }, log.NewHandler(&low, false, log.LevelTrace)),
		log.Filter(func(l slog.Level) bool { return l >= slog.LevelError }, log.NewHandler(&high, false, slog.LevelError)),
	)).With("serial", "R58M")

	log.Trace(logger, "tick")
	logger.Info("armed")
	logger.Error("capture failed")

	assert.Contains(t, low.String(), "level=TRACE msg=tick")
	assert.Contains(t, low.String(), "msg=armed serial=R58M")
	assert.NotContains(t, low.String(), "capture failed")
	assert.Contains(t, high.String(), "msg=\"capture failed\" serial=R58M")
	assert.NotContains(t, high.String(), "armed")
}

func TestSetupLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relook.log")
	logger, closers, err := log.SetupLogger("debug", path, "json")
	require.NoError(t, err)
	require.Len(t, closers, 1)

	logger.Debug("frame size changed", "frame", "1080x1920")
	log.Trace(logger, "dropped")
	require.NoError(t, closers[0].Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "frame size changed", rec["msg"])
	assert.Equal(t, "1080x1920", rec["frame"])
}

func TestRawLogger(t *testing.T) {
	var buf bytes.Buffer
	raw := log.NewRaw(&buf)
	raw.Log("assist", true, []byte{0x41, 0x49, 0x44, 0x31})
	raw.Log("control", false, nil)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "assist in  4 bytes: 41 49 44 31")

	// A nil writer discards.
	log.NewRaw(nil).Log("assist", true, []byte{1})
}
