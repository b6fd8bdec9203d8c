package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/danmuck/apptree/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	dir      string
	project  string
	engine   string
	logLevel string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "apptree",
		Short:         "Run trees of apps across threads and processes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.dir, "dir", "d", ".", "project directory")
	cmd.PersistentFlags().StringVarP(&opts.project, "config", "c", config.DefaultProjectFile, "project config, relative to --dir")
	cmd.PersistentFlags().StringVarP(&opts.engine, "engine", "e", config.DefaultEngineFile, "engine config, relative to --dir")
	cmd.PersistentFlags().StringVarP(&opts.logLevel, "log-level", "l", "", "log level override (trace|debug|info|warn|error)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newCreateCommand(opts))
	cmd.AddCommand(newTreeCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	return cmd
}

func (o *rootOptions) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(o.dir, p)
}

func (o *rootOptions) loadProject() ([]config.App, error) {
	return config.LoadProject(o.resolve(o.project))
}

// loadEngine falls back to the built-in defaults when the engine file does
// not exist.
func (o *rootOptions) loadEngine() (config.Engine, error) {
	path := o.resolve(o.engine)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		path = ""
	}
	engine, err := config.LoadEngine(path)
	if err != nil {
		return config.Engine{}, err
	}
	if o.logLevel != "" {
		engine.Logging.Level = o.logLevel
	}
	return engine, nil
}
