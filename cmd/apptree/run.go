package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/apptree/internal/launcher"
	"github.com/danmuck/apptree/internal/logging"
	"github.com/spf13/cobra"
)

type runOptions struct {
	runFor time.Duration
	inline bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the project's app tree until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProject(cmd.Context(), root, opts)
		},
	}
	cmd.Flags().DurationVar(&opts.runFor, "run-for", 0, "shut down after this long (0 runs until interrupted)")
	cmd.Flags().BoolVar(&opts.inline, "inline", false, "run process apps on goroutines of this process")
	return cmd
}

func runProject(ctx context.Context, root *rootOptions, opts *runOptions) error {
	engine, err := root.loadEngine()
	if err != nil {
		return err
	}
	logger := logging.Configure(logging.ProfileRuntime, engine.Logging)
	apps, err := root.loadProject()
	if err != nil {
		return err
	}

	l, err := launcher.New(launcher.Options{
		ProjectDir: root.dir,
		Apps:       apps,
		Engine:     engine,
		Logger:     logger,
		Inline:     opts.inline,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.runFor)
		defer cancel()
	}

	logger.Info().Str("run", l.RunID()).Str("dir", root.dir).Int("apps", len(apps)).Msg("run")
	if err := l.Run(ctx); err != nil {
		return err
	}
	logger.Info().Str("run", l.RunID()).Msg("run finished")
	return nil
}
