package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eggybyte-technology/clientgen/internal/core/log"
)

func TestNewLogfmt(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithLevel(slog.LevelInfo))

	logger.Info("schema written", "service", "billing")

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, `msg="schema written"`)
	assert.Contains(t, out, `service="billing"`)
	assert.NotContains(t, out, "time=")
}

func TestDefaultLevelIsWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf))

	logger.Info("hidden")
	logger.Debug("hidden too")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `msg="shown"`)
}

func TestFieldSorting(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithLevel(slog.LevelInfo))

	logger.Info("test", "zebra", "z", "alpha", "a", "beta", "b")

	out := buf.String()
	alpha := strings.Index(out, `alpha="a"`)
	beta := strings.Index(out, `beta="b"`)
	zebra := strings.Index(out, `zebra="z"`)
	require.True(t, alpha >= 0 && beta >= 0 && zebra >= 0, out)
	assert.Less(t, alpha, beta)
	assert.Less(t, beta, zebra)
}

func TestHelpersAndWith(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithLevel(slog.LevelDebug)).With("run_id", "r-1")

	logger.Debug("command finished", log.Str("tool", "python"), log.Int("exit", 0), log.Dur("took", 1500*time.Millisecond))

	out := buf.String()
	assert.Contains(t, out, `run_id="r-1"`)
	assert.Contains(t, out, `tool="python"`)
	assert.Contains(t, out, "exit=0")
	assert.Contains(t, out, "took=1500")
}

func TestErrorField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf))

	logger.Error(errors.New("exit status 2"), "extraction failed", "module", "ab_service.x.main")

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, `error="exit status 2"`)
	assert.Contains(t, out, `module="ab_service.x.main"`)
}

func TestPayloadLimit(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithPayloadLimit(4))

	logger.Warn("stderr", "output", "abcdefgh")

	assert.Contains(t, buf.String(), `output="abcd...(truncated, 8 bytes)"`)
}

func TestSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithSensitiveFields("token"))

	logger.Warn("env", "TOKEN", "secret")

	assert.Contains(t, buf.String(), `TOKEN="***REDACTED***"`)
	assert.NotContains(t, buf.String(), "secret")
}

func TestColorization(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithColor(true))

	logger.Warn("test")

	assert.Contains(t, buf.String(), "\033[33mWARN\033[0m")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithFormat(FormatJSON), WithLevel(slog.LevelInfo))

	logger.Info("done", "services", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "done", entry["msg"])
	assert.Equal(t, float64(2), entry["services"])
	_, hasTime := entry["time"]
	assert.False(t, hasTime)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
