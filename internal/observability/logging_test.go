package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/impostor/internal/config"
)

func TestNewLogger_Levels(t *testing.T) {
	cases := []struct {
		level     string
		format    string
		debugOn   bool
		expectErr bool
	}{
		{level: "debug", format: "console", debugOn: true},
		{level: "info", format: "json"},
		{level: "warn", format: "json"},
		{level: "error", format: "console"},
		{level: "trace", format: "json", expectErr: true},
		{level: "info", format: "xml", expectErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.level+"/"+tc.format, func(t *testing.T) {
			logger, err := NewLogger(config.LoggingConfig{Level: tc.level, Format: tc.format}, "impostor")
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.debugOn, logger.Core().Enabled(zapcore.DebugLevel))
		})
	}
}

func TestNewLogger_WritesServiceField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	logger, err := NewLogger(config.LoggingConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{path},
	}, "impostor")
	require.NoError(t, err)

	logger.Info("room opened", zap.String("code", "ABCD"))
	require.NoError(t, logger.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, "impostor", entry["service"])
	assert.Equal(t, "ABCD", entry["code"])
	assert.Equal(t, "room opened", entry["msg"])
}

func TestNewLogger_NoServiceField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	logger, err := NewLogger(config.LoggingConfig{Level: "info", Format: "json", OutputPaths: []string{path}}, "")
	require.NoError(t, err)

	logger.Info("started")
	require.NoError(t, logger.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"service"`)
}

func TestNewLogger_SamplingDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	logger, err := NewLogger(config.LoggingConfig{Level: "info", Format: "json", OutputPaths: []string{path}}, "impostor")
	require.NoError(t, err)

	for i := 0; i < 250; i++ {
		logger.Warn("dropping event")
	}
	require.NoError(t, logger.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := 0
	for _, b := range raw {
		if b == '\n' {
			lines++
		}
	}
	assert.Equal(t, 250, lines)
}
