package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/danmuck/apptree/internal/config"
	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want zerolog.Level
		ok   bool
	}{
		{raw: "debug", want: zerolog.DebugLevel, ok: true},
		{raw: " WARNING ", want: zerolog.WarnLevel, ok: true},
		{raw: "off", want: zerolog.Disabled, ok: true},
		{raw: "", want: zerolog.InfoLevel, ok: false},
		{raw: "loud", want: zerolog.InfoLevel, ok: false},
	}
	for _, tc := range tests {
		got, ok := ParseLevel(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseLevel(%q) = %v,%v want %v,%v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestEnvOverridesConfig(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	s := defaultSettings(ProfileRuntime)
	applyConfig(&s, config.Logging{Level: "debug", Format: "console"})
	applyEnvOverrides(&s)
	if s.Level != zerolog.ErrorLevel {
		t.Fatalf("expected env level error, got %v", s.Level)
	}
	if !s.JSON {
		t.Fatalf("expected env json format")
	}
}

func TestForAppTagsName(t *testing.T) {
	var buf bytes.Buffer
	base := New(Settings{Level: zerolog.DebugLevel, JSON: true, Out: &buf})
	logger := ForApp(base, "MAIN.App1")
	logger.Info().Msg("launch")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["app"] != "MAIN.App1" || line["message"] != "launch" || line["level"] != "info" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestConsoleWithoutTimestamp(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Settings{Level: zerolog.InfoLevel, NoColor: true, Out: &buf})
	logger.Debug().Msg("hidden")
	logger.Info().Str("app", "MAIN").Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") || !strings.Contains(out, "app=MAIN") {
		t.Fatalf("unexpected console output: %q", out)
	}
}
