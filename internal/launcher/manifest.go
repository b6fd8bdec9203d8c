package launcher

import (
	"fmt"
	"os"

	"github.com/danmuck/apptree/internal/config"
	"github.com/pelletier/go-toml/v2"
)

const manifestFile = "manifest.toml"

// Manifest is everything a child process needs to rebuild its part of the
// tree. The run token is not part of it; it travels in the environment.
type Manifest struct {
	RunID      string        `toml:"run_id"`
	ProjectDir string        `toml:"project_dir"`
	Engine     config.Engine `toml:"engine"`
	Root       config.App    `toml:"root"`
}

func WriteManifest(path string, m Manifest) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("manifest encode failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("manifest write failed (%s): %w", path, err)
	}
	return nil
}

func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest load failed (%s): %w", path, err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("manifest parse failed (%s): %w", path, err)
	}
	if err := config.Validate(m.Root); err != nil {
		return Manifest{}, fmt.Errorf("manifest validate failed (%s): %w", path, err)
	}
	return m, nil
}
