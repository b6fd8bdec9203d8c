package main

import (
	"fmt"

	"github.com/danmuck/apptree/internal/config"
	"github.com/danmuck/apptree/internal/launcher"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// newValidateCommand loads both configs and builds the whole tree without
// running it, so unknown paths fail here instead of at launch.
func newValidateCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the project and engine config and resolve every app",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := root.loadEngine()
			if err != nil {
				return err
			}
			apps, err := root.loadProject()
			if err != nil {
				return err
			}
			if _, err := launcher.New(launcher.Options{
				ProjectDir: root.dir,
				Apps:       apps,
				Engine:     engine,
				Logger:     zerolog.Nop(),
			}); err != nil {
				return err
			}

			count := 0
			_ = config.Walk(config.ProjectRoot(apps), func(string, config.App) error {
				count++
				return nil
			})
			fmt.Fprintln(cmd.OutOrStdout(), successMsg("%d apps resolved", count-1))
			return nil
		},
	}
}
