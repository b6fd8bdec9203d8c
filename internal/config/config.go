package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/danmuck/apptree/internal/name"
)

const (
	// RootName is the reserved absolute name of the launcher node.
	RootName = "MAIN"
	// LauncherPath is the registry path of the launcher node.
	LauncherPath = "apptree.launcher"

	DefaultProjectFile = "config.toml"
	DefaultEngineFile  = "engine.toml"
)

// App is one node record of the app tree. Apps keeps declaration order.
type App struct {
	Name      string   `toml:"name" yaml:"-"`
	Path      string   `toml:"path" yaml:"path"`
	Thread    bool     `toml:"thread" yaml:"thread"`
	FrameRate *float64 `toml:"frame_rate,omitempty" yaml:"frame_rate,omitempty"`
	Apps      []App    `toml:"apps,omitempty" yaml:"-"`
}

// ProjectRoot wraps the user apps under the launcher record.
func ProjectRoot(apps []App) App {
	return App{
		Name:   RootName,
		Path:   LauncherPath,
		Thread: false,
		Apps:   apps,
	}
}

// Child returns the direct child with the given short name.
func (a App) Child(short string) (App, bool) {
	for _, c := range a.Apps {
		if c.Name == short {
			return c, true
		}
	}
	return App{}, false
}

// Find returns the record at absolute name abs. root is named by its own
// Name field.
func Find(root App, abs string) (App, bool) {
	segs := name.Split(abs)
	if len(segs) == 0 || segs[0] != root.Name {
		return App{}, false
	}
	cur := root
	for _, seg := range segs[1:] {
		next, ok := cur.Child(seg)
		if !ok {
			return App{}, false
		}
		cur = next
	}
	return cur, true
}

// Walk visits every record depth-first in declaration order.
func Walk(root App, fn func(abs string, a App) error) error {
	return walk(root.Name, root, fn)
}

func walk(abs string, a App, fn func(string, App) error) error {
	if err := fn(abs, a); err != nil {
		return err
	}
	for _, c := range a.Apps {
		if err := walk(name.Join(abs, c.Name), c, fn); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks every record in the tree rooted at root.
func Validate(root App) error {
	return Walk(root, func(abs string, a App) error {
		if err := ValidateApp(a); err != nil {
			return fmt.Errorf("app %q invalid: %w", abs, err)
		}
		seen := make(map[string]struct{}, len(a.Apps))
		for _, c := range a.Apps {
			if _, dup := seen[c.Name]; dup {
				return fmt.Errorf("app %q invalid: duplicate child %q", abs, c.Name)
			}
			seen[c.Name] = struct{}{}
		}
		return nil
	})
}

func ValidateApp(a App) error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.Contains(a.Name, name.Sep) {
		return fmt.Errorf("name %q must not contain %q", a.Name, name.Sep)
	}
	if strings.TrimSpace(a.Path) == "" {
		return fmt.Errorf("path is required")
	}
	if a.FrameRate != nil && (math.IsNaN(*a.FrameRate) || math.IsInf(*a.FrameRate, 0)) {
		return fmt.Errorf("frame_rate must be finite")
	}
	return nil
}
