package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/apptree/internal/config"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "APPTREE_LOG_LEVEL"
	EnvLogTimestamp = "APPTREE_LOG_TIMESTAMP"
	EnvLogNoColor   = "APPTREE_LOG_NOCOLOR"
	EnvLogFormat    = "APPTREE_LOG_FORMAT"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Settings is the resolved logger configuration.
type Settings struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	JSON      bool
	Out       io.Writer
}

var testOnce sync.Once

// ConfigureTests installs a debug-level global logger once per test binary.
func ConfigureTests() {
	testOnce.Do(func() {
		Configure(ProfileTest, config.Logging{})
	})
}

// Configure resolves settings from profile defaults, cfg and the
// environment, installs the result as the global logger and returns it.
func Configure(profile Profile, cfg config.Logging) zerolog.Logger {
	s := defaultSettings(profile)
	applyConfig(&s, cfg)
	applyEnvOverrides(&s)
	logger := New(s)
	zerolog.SetGlobalLevel(s.Level)
	log.Logger = logger
	return logger
}

// New builds a logger from s without touching global state.
func New(s Settings) zerolog.Logger {
	out := s.Out
	if out == nil {
		out = os.Stderr
	}
	if !s.JSON {
		noColor := s.NoColor
		if f, ok := out.(*os.File); ok && !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
			noColor = true
		}
		cw := zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    noColor,
			TimeFormat: time.RFC3339,
		}
		if !s.Timestamp {
			cw.PartsExclude = []string{zerolog.TimestampFieldName}
		}
		out = cw
	}
	ctx := zerolog.New(out).Level(s.Level).With()
	if s.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

// ForApp tags base with the absolute app name.
func ForApp(base zerolog.Logger, appName string) zerolog.Logger {
	return base.With().Str("app", appName).Logger()
}

func defaultSettings(profile Profile) Settings {
	switch profile {
	case ProfileTest:
		return Settings{Level: zerolog.DebugLevel, Timestamp: false, NoColor: true}
	default:
		return Settings{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

func applyConfig(s *Settings, cfg config.Logging) {
	if lvl, ok := ParseLevel(cfg.Level); ok {
		s.Level = lvl
	}
	if cfg.Level != "" {
		s.Timestamp = cfg.Timestamp
	}
	if cfg.NoColor {
		s.NoColor = true
	}
	if strings.EqualFold(cfg.Format, "json") {
		s.JSON = true
	}
}

func applyEnvOverrides(s *Settings) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		s.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		s.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		s.NoColor = v
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvLogFormat))) {
	case "json":
		s.JSON = true
	case "console":
		s.JSON = false
	}
}

// ParseLevel maps a level name to a zerolog level. Unknown or empty names
// report false.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
