package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Engine holds engine-wide settings shared by every node in a run.
type Engine struct {
	Logging Logging `toml:"logging"`
	Store   Store   `toml:"store"`
	Status  Status  `toml:"status"`
}

type Logging struct {
	Level     string `toml:"level"`
	Timestamp bool   `toml:"timestamp"`
	NoColor   bool   `toml:"no_color"`
	Format    string `toml:"format"`
}

type Store struct {
	RunDir          string   `toml:"run_dir"`
	DialTimeout     Duration `toml:"dial_timeout"`
	MaxPayloadBytes uint64   `toml:"max_payload_bytes"`
}

type Status struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

// Duration decodes from TOML strings such as "5s".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

const defaultEngineToml = `[logging]
level = "info"
timestamp = true
no_color = false
format = "console"

[store]
run_dir = ""
dial_timeout = "5s"
max_payload_bytes = 8388608

[status]
addr = ""
cors_origins = []
`

// DefaultEngine returns the built-in engine settings.
func DefaultEngine() Engine {
	cfg, err := decodeEngine(defaultEngineToml)
	if err != nil {
		panic(fmt.Sprintf("config: built-in engine defaults invalid: %v", err))
	}
	return cfg
}

// LoadEngine deep-merges the file at path over the built-in defaults. An
// empty path yields the defaults.
func LoadEngine(path string) (Engine, error) {
	var base map[string]any
	if _, err := toml.Decode(defaultEngineToml, &base); err != nil {
		return Engine{}, fmt.Errorf("config defaults parse failed: %w", err)
	}
	if path != "" {
		var user map[string]any
		if _, err := toml.DecodeFile(path, &user); err != nil {
			return Engine{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
		base = DeepUpdate(base, user)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(base); err != nil {
		return Engine{}, fmt.Errorf("config merge failed (%s): %w", path, err)
	}
	cfg, err := decodeEngine(buf.String())
	if err != nil {
		return Engine{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := ValidateEngine(cfg); err != nil {
		return Engine{}, fmt.Errorf("config validate failed (%s): %w", path, err)
	}
	return cfg, nil
}

func decodeEngine(data string) (Engine, error) {
	var cfg Engine
	meta, err := toml.Decode(data, &cfg)
	if err != nil {
		return Engine{}, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Engine{}, fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	return cfg, nil
}

func ValidateEngine(cfg Engine) error {
	switch strings.ToLower(cfg.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", cfg.Logging.Format)
	}
	if cfg.Store.DialTimeout.Duration <= 0 {
		return fmt.Errorf("store.dial_timeout must be positive")
	}
	if cfg.Store.MaxPayloadBytes == 0 {
		return fmt.Errorf("store.max_payload_bytes must be positive")
	}
	if cfg.Store.RunDir != "" {
		if info, err := os.Stat(cfg.Store.RunDir); err == nil && !info.IsDir() {
			return fmt.Errorf("store.run_dir %q is not a directory", cfg.Store.RunDir)
		}
	}
	return nil
}

// DeepUpdate merges src into dst. Nested tables merge key by key, any other
// value in src replaces the one in dst. dst is modified and returned.
func DeepUpdate(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		srcTable, srcOK := v.(map[string]any)
		dstTable, dstOK := dst[k].(map[string]any)
		if srcOK && dstOK {
			dst[k] = DeepUpdate(dstTable, srcTable)
			continue
		}
		dst[k] = v
	}
	return dst
}
