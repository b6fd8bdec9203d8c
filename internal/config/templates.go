package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Template returns the scaffold content for kind ("project" or "engine").
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "project":
		return projectTemplate, nil
	case "engine":
		return defaultEngineToml, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// WriteProjectTemplate scaffolds a runnable project in dir.
func WriteProjectTemplate(dir string, overwrite bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	if err := WriteTemplate(filepath.Join(dir, DefaultProjectFile), "project", overwrite); err != nil {
		return err
	}
	return WriteTemplate(filepath.Join(dir, DefaultEngineFile), "engine", overwrite)
}

const projectTemplate = `# App tree. Each app names a registered path and runs on its own
# thread (thread = true) or in its own process (thread = false).

[apps.Counter]
path = "apptree.demo.counter"
thread = false
frame_rate = 10

[apps.Counter.apps.Watcher]
path = "apptree.demo.watcher"
thread = true
frame_rate = 2

[apps.Ticker]
path = "apptree.demo.ticker"
thread = true
frame_rate = 1
`
