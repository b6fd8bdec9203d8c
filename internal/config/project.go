package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var ErrUnknownFormat = errors.New("config: unknown project file format")

type tomlApp struct {
	Path      string             `toml:"path"`
	Thread    bool               `toml:"thread"`
	FrameRate *float64           `toml:"frame_rate"`
	Apps      map[string]tomlApp `toml:"apps"`
}

// LoadProject reads the app tree from a TOML or YAML file and returns the
// user apps in declaration order.
func LoadProject(path string) ([]App, error) {
	var (
		apps []App
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		apps, err = loadProjectToml(path)
	case ".yaml", ".yml":
		apps, err = loadProjectYaml(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err != nil {
		return nil, err
	}
	if err := Validate(ProjectRoot(apps)); err != nil {
		return nil, fmt.Errorf("config validate failed (%s): %w", path, err)
	}
	return apps, nil
}

func loadProjectToml(path string) ([]App, error) {
	var raw struct {
		Apps map[string]tomlApp `toml:"apps"`
	}
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}
	return tomlChildren(raw.Apps, nil, meta.Keys()), nil
}

// tomlChildren orders apps by the first appearance of prefix.apps.<name>
// among the decoded keys.
func tomlChildren(apps map[string]tomlApp, prefix []string, keys []toml.Key) []App {
	depth := len(prefix) + 2
	out := make([]App, 0, len(apps))
	seen := make(map[string]struct{}, len(apps))
	for _, k := range keys {
		if len(k) < depth || k[depth-2] != "apps" || !hasPrefix(k, prefix) {
			continue
		}
		short := k[depth-1]
		raw, ok := apps[short]
		if !ok {
			continue
		}
		if _, dup := seen[short]; dup {
			continue
		}
		seen[short] = struct{}{}
		childPrefix := append([]string{}, k[:depth]...)
		out = append(out, App{
			Name:      short,
			Path:      raw.Path,
			Thread:    raw.Thread,
			FrameRate: raw.FrameRate,
			Apps:      tomlChildren(raw.Apps, childPrefix, keys),
		})
	}
	return out
}

func hasPrefix(k toml.Key, prefix []string) bool {
	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}
	return true
}

func loadProjectYaml(path string) ([]App, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	top := doc.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config parse failed (%s): top level must be a mapping", path)
	}
	var apps []App
	for i := 0; i+1 < len(top.Content); i += 2 {
		key, val := top.Content[i], top.Content[i+1]
		if key.Value != "apps" {
			return nil, fmt.Errorf("config parse failed (%s): unknown key %q", path, key.Value)
		}
		apps, err = yamlChildren(val)
		if err != nil {
			return nil, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	}
	return apps, nil
}

func yamlChildren(n *yaml.Node) ([]App, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: apps must be a mapping", n.Line)
	}
	out := make([]App, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		a, err := yamlApp(key.Value, val)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func yamlApp(short string, n *yaml.Node) (App, error) {
	if n.Kind != yaml.MappingNode {
		return App{}, fmt.Errorf("line %d: app %q must be a mapping", n.Line, short)
	}
	a := App{Name: short}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		var err error
		switch key.Value {
		case "path":
			err = val.Decode(&a.Path)
		case "thread":
			err = val.Decode(&a.Thread)
		case "frame_rate":
			var rate float64
			err = val.Decode(&rate)
			a.FrameRate = &rate
		case "apps":
			a.Apps, err = yamlChildren(val)
		default:
			err = fmt.Errorf("line %d: unknown key %q in app %q", key.Line, key.Value, short)
		}
		if err != nil {
			return App{}, err
		}
	}
	return a, nil
}
