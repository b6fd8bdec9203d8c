package launcher

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/apptree/internal/config"
	"github.com/stretchr/testify/require"
)

func TestManifestRoundTrip(t *testing.T) {
	engine := config.DefaultEngine()
	engine.Store.DialTimeout = config.Duration{Duration: 3 * time.Second}
	engine.Logging.Level = "debug"
	root := config.ProjectRoot([]config.App{
		{Name: "A", Path: "x.a", Thread: false, FrameRate: rate(10), Apps: []config.App{
			{Name: "B", Path: "x.b", Thread: true},
		}},
		{Name: "C", Path: "x.c", Thread: true},
	})
	path := filepath.Join(t.TempDir(), manifestFile)
	require.NoError(t, WriteManifest(path, Manifest{RunID: "run-1", ProjectDir: "/p", Engine: engine, Root: root}))

	got, err := ReadManifest(path)
	require.NoError(t, err)
	require.Equal(t, "run-1", got.RunID)
	require.Equal(t, "/p", got.ProjectDir)
	require.Equal(t, 3*time.Second, got.Engine.Store.DialTimeout.Duration)
	require.Equal(t, "debug", got.Engine.Logging.Level)

	b, ok := config.Find(got.Root, "MAIN.A.B")
	require.True(t, ok)
	require.Equal(t, "x.b", b.Path)
	require.True(t, b.Thread)
	a, ok := config.Find(got.Root, "MAIN.A")
	require.True(t, ok)
	require.NotNil(t, a.FrameRate)
	require.Equal(t, 10.0, *a.FrameRate)
	require.Equal(t, "C", got.Root.Apps[1].Name)
}

func TestReadManifestMissing(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
