package main

import (
	"fmt"

	"github.com/danmuck/apptree/internal/config"
	"github.com/spf13/cobra"
)

func newCreateCommand(root *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Scaffold a runnable project in --dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteProjectTemplate(root.dir, force); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMsg("created project in %s", root.dir))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config files")
	return cmd
}
