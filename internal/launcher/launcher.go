package launcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/danmuck/apptree/internal/app"
	"github.com/danmuck/apptree/internal/auth"
	"github.com/danmuck/apptree/internal/config"
	"github.com/danmuck/apptree/internal/protocol/frame"
	"github.com/danmuck/apptree/internal/sharedvalue"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const storeSocket = "store.sock"

// Options configures one run.
type Options struct {
	ProjectDir string
	Apps       []config.App
	Engine     config.Engine
	Logger     zerolog.Logger
	// Registry resolves app paths. Nil means app.DefaultRegistry.
	Registry *app.Registry
	// Inline runs process nodes on goroutines instead of child processes.
	Inline bool
	// Executable is re-executed for process nodes. Empty means
	// os.Executable().
	Executable string
}

// Launcher owns the root node and the process-scope store of one run.
type Launcher struct {
	opts   Options
	runID  string
	token  auth.RunToken
	logger zerolog.Logger
	env    *app.Env
	root   app.App

	store    *sharedvalue.LocalStore
	shutdown *sharedvalue.Cell
	server   *sharedvalue.Server
	runDir   string

	launched atomic.Bool
	done     chan struct{}
	cleanup  sync.Once
	closeErr error
}

// New builds the whole tree under MAIN. Construction errors abort before
// anything runs.
func New(opts Options) (*Launcher, error) {
	reg := opts.Registry
	if reg == nil {
		reg = app.DefaultRegistry
	}
	if err := ensureRoot(reg); err != nil {
		return nil, err
	}
	cfg := config.ProjectRoot(opts.Apps)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	l := &Launcher{
		opts:   opts,
		runID:  runID,
		token:  auth.NewRunToken(),
		logger: opts.Logger.With().Str("run", runID).Logger(),
		done:   make(chan struct{}),
	}
	l.env = &app.Env{
		Engine:     opts.Engine,
		Project:    cfg,
		ProjectDir: opts.ProjectDir,
		Logger:     l.logger,
		Registry:   reg,
	}
	root, err := app.New(config.RootName, cfg, l.env)
	if err != nil {
		return nil, err
	}
	l.root = root
	return l, nil
}

func (l *Launcher) RunID() string { return l.runID }

func (l *Launcher) Root() app.App { return l.root }

// Store returns the process-scope store, or nil before PrepareForLaunching.
func (l *Launcher) Store() *sharedvalue.LocalStore { return l.store }

// Done is closed when the tree has ended.
func (l *Launcher) Done() <-chan struct{} { return l.done }

// Running reports whether the tree has been launched and not yet ended.
func (l *Launcher) Running() bool {
	if !l.launched.Load() {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

// Run states reported by State.
const (
	StateNew      = "new"
	StatePrepared = "prepared"
	StateRunning  = "running"
	StateEnded    = "ended"
)

// State names the stage the run has reached.
func (l *Launcher) State() string {
	switch {
	case l.store == nil:
		return StateNew
	case !l.launched.Load():
		return StatePrepared
	case l.Running():
		return StateRunning
	default:
		return StateEnded
	}
}

// PrepareForLaunching creates the process-scope store with the shutdown
// flag, registers every node's process values and, when the tree has
// process nodes, serves the store to child processes.
func (l *Launcher) PrepareForLaunching() (*sharedvalue.LocalStore, error) {
	if l.store != nil {
		return nil, ErrAlreadyPrepared
	}
	store := sharedvalue.NewLocalStore(sharedvalue.WithWireValues())
	flag := sharedvalue.NewBool(false)
	if err := store.Register(sharedvalue.ShutdownName, "", flag); err != nil {
		return nil, err
	}
	if err := app.PrepareProcessValues(l.root, store); err != nil {
		return nil, err
	}
	l.store = store
	l.shutdown = flag

	if l.opts.Inline || !spawnsProcesses(l.root) {
		l.env.Spawner = app.InProcessSpawner{}
		return store, nil
	}
	spawner, err := l.serve(store)
	if err != nil {
		l.close()
		return nil, err
	}
	l.env.Spawner = spawner
	return store, nil
}

func (l *Launcher) serve(store *sharedvalue.LocalStore) (*ExecSpawner, error) {
	base := l.opts.Engine.Store.RunDir
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o700); err != nil {
		return nil, fmt.Errorf("launcher: run dir: %w", err)
	}
	dir, err := os.MkdirTemp(base, "apptree-")
	if err != nil {
		return nil, fmt.Errorf("launcher: run dir: %w", err)
	}
	l.runDir = dir

	manifest := filepath.Join(dir, manifestFile)
	err = WriteManifest(manifest, Manifest{
		RunID:      l.runID,
		ProjectDir: l.opts.ProjectDir,
		Engine:     l.opts.Engine,
		Root:       l.env.Project,
	})
	if err != nil {
		return nil, err
	}

	srv, err := sharedvalue.Serve(store, filepath.Join(dir, storeSocket), l.token,
		sharedvalue.WithServerLogger(l.logger.With().Str("component", "store").Logger()),
		sharedvalue.WithServerLimits(limitsFor(l.opts.Engine)),
	)
	if err != nil {
		return nil, err
	}
	l.server = srv
	l.logger.Debug().Str("socket", srv.Addr()).Str("manifest", manifest).Msg("process store ready")

	return &ExecSpawner{
		Executable: l.opts.Executable,
		Manifest:   manifest,
		Token:      l.token,
		Logger:     l.logger,
	}, nil
}

// Launch starts the tree on a supervising goroutine locked to its own OS
// thread and returns immediately.
func (l *Launcher) Launch(store sharedvalue.Store) {
	if !l.launched.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(l.done)
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		app.Launch(l.root, store)
	}()
}

// Join blocks until the tree has ended, then releases the store socket and
// the run directory.
func (l *Launcher) Join() error {
	if !l.launched.Load() {
		return ErrNotLaunched
	}
	<-l.done
	return l.close()
}

// Shutdown raises the shutdown flag. Nodes notice it at the top of their
// next update iteration.
func (l *Launcher) Shutdown() error {
	if l.shutdown == nil {
		return ErrNotPrepared
	}
	l.logger.Info().Msg("shutdown")
	return l.shutdown.Store(true)
}

// Run prepares and launches the tree, raises the shutdown flag when ctx
// ends and waits for the tree. A status server is served for the duration
// when the engine config names an address.
func (l *Launcher) Run(ctx context.Context) error {
	store, err := l.PrepareForLaunching()
	if err != nil {
		return err
	}
	if addr := l.opts.Engine.Status.Addr; addr != "" {
		status := NewStatusServer(l, l.opts.Engine.Status.CorsOrigins)
		if err := status.Start(addr); err != nil {
			l.close()
			return err
		}
		defer func() {
			if err := status.Close(context.Background()); err != nil {
				l.logger.Warn().Err(err).Msg("status server close")
			}
		}()
	}

	l.Launch(store)
	select {
	case <-ctx.Done():
		if err := l.Shutdown(); err != nil {
			return err
		}
	case <-l.done:
	}
	return l.Join()
}

func (l *Launcher) close() error {
	l.cleanup.Do(func() {
		if l.server != nil {
			l.closeErr = l.server.Close()
		}
		if l.runDir != "" {
			if err := os.RemoveAll(l.runDir); err != nil && l.closeErr == nil {
				l.closeErr = err
			}
		}
	})
	return l.closeErr
}

func spawnsProcesses(root app.App) bool {
	found := false
	_ = app.Walk(root, func(a app.App) error {
		if a != root && !app.BaseOf(a).IsThread() {
			found = true
		}
		return nil
	})
	return found
}

func limitsFor(engine config.Engine) frame.Limits {
	limits := frame.DefaultLimits()
	if engine.Store.MaxPayloadBytes > 0 {
		limits.MaxPayloadBytes = engine.Store.MaxPayloadBytes
	}
	return limits
}
