package main

import (
	"fmt"
	"strings"

	"github.com/danmuck/apptree/internal/config"
	"github.com/spf13/cobra"
)

func newTreeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the project's app tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apps, err := root.loadProject()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTree(config.ProjectRoot(apps)))
			return nil
		},
	}
}

func renderTree(root config.App) string {
	var b strings.Builder
	b.WriteString(nodeLine(root) + "\n")
	renderChildren(&b, root.Apps, "")
	return b.String()
}

func renderChildren(b *strings.Builder, apps []config.App, indent string) {
	for i, a := range apps {
		branch, next := "├── ", "│   "
		if i == len(apps)-1 {
			branch, next = "└── ", "    "
		}
		b.WriteString(faint(indent+branch) + nodeLine(a) + "\n")
		renderChildren(b, a.Apps, indent+next)
	}
}

func nodeLine(a config.App) string {
	mode := "process"
	if a.Thread {
		mode = "thread"
	}
	line := bold(a.Name) + " " + modeLabel(mode) + " " + muted(a.Path)
	if a.FrameRate != nil {
		line += " " + muted(fmt.Sprintf("%gfps", *a.FrameRate))
	}
	return line
}
