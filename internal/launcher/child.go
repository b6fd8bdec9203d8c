package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"time"

	"github.com/danmuck/apptree/internal/app"
	"github.com/danmuck/apptree/internal/auth"
	"github.com/danmuck/apptree/internal/config"
	"github.com/danmuck/apptree/internal/logging"
	"github.com/danmuck/apptree/internal/sharedvalue"
	"github.com/rs/zerolog"
)

// Environment handed to child processes.
const (
	EnvChildApp = "APPTREE_CHILD_APP"
	EnvManifest = "APPTREE_MANIFEST"
	EnvStore    = "APPTREE_STORE"
	EnvToken    = "APPTREE_TOKEN"
)

// ExecSpawner runs each process node in a re-executed copy of the current
// binary.
type ExecSpawner struct {
	Executable string
	Args       []string
	Manifest   string
	Token      auth.RunToken
	Logger     zerolog.Logger
	Stdout     io.Writer
	Stderr     io.Writer
}

type endpointer interface {
	Endpoint() string
}

func (s *ExecSpawner) Spawn(a app.App, store sharedvalue.Store) (app.Process, error) {
	ep, ok := store.(endpointer)
	if !ok || ep.Endpoint() == "" {
		return nil, ErrNoEndpoint
	}
	exe := s.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return nil, fmt.Errorf("launcher: resolve executable: %w", err)
		}
	}

	name := app.BaseOf(a).Name()
	cmd := exec.Command(exe, s.Args...)
	cmd.Env = append(os.Environ(),
		EnvChildApp+"="+name,
		EnvManifest+"="+s.Manifest,
		EnvStore+"="+ep.Endpoint(),
		EnvToken+"="+s.Token.String(),
	)
	cmd.Stdout = s.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = s.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launcher: start %s: %w", name, err)
	}
	s.Logger.Debug().Str("child", name).Int("pid", cmd.Process.Pid).Msg("process spawned")
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Wait() error {
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: exit code %d", ErrChildExit, exitErr.ExitCode())
	}
	return err
}

// IsChild reports whether this process was started by ExecSpawner.
func IsChild() bool {
	return os.Getenv(EnvChildApp) != ""
}

// RunChild rebuilds the app named by the environment from the manifest,
// connects to the parent's store and runs the launch protocol for it.
// Node failures are logged, not returned.
func RunChild() error {
	if !IsChild() {
		return ErrNotChild
	}
	// Interrupts reach the whole process group; children stop through the
	// shutdown flag instead.
	signal.Ignore(os.Interrupt)

	abs := os.Getenv(EnvChildApp)
	path := os.Getenv(EnvManifest)
	m, err := ReadManifest(path)
	if err != nil {
		return err
	}
	logger := logging.Configure(logging.ProfileRuntime, m.Engine.Logging).
		With().Str("run", m.RunID).Int("pid", os.Getpid()).Logger()

	cfg, ok := config.Find(m.Root, abs)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChild, abs)
	}
	token := auth.RunToken(os.Getenv(EnvToken))
	env := &app.Env{
		Engine:     m.Engine,
		Project:    m.Root,
		ProjectDir: m.ProjectDir,
		Logger:     logger,
		Registry:   app.DefaultRegistry,
		Spawner:    &ExecSpawner{Manifest: path, Token: token, Logger: logger},
	}
	a, err := app.New(abs, cfg, env)
	if err != nil {
		logger.Error().Err(err).Str("app", abs).Msg("child construction failed")
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout(m.Engine))
	client, err := sharedvalue.Dial(ctx, os.Getenv(EnvStore), token,
		sharedvalue.WithClientLimits(limitsFor(m.Engine)),
	)
	cancel()
	if err != nil {
		logger.Error().Err(err).Str("app", abs).Msg("child store dial failed")
		return err
	}
	defer client.Close()

	app.Launch(a, client)
	return nil
}

func dialTimeout(engine config.Engine) time.Duration {
	if d := engine.Store.DialTimeout.Duration; d > 0 {
		return d
	}
	return 5 * time.Second
}
