package app

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/danmuck/apptree/internal/observability"
	"github.com/danmuck/apptree/internal/sharedvalue"
	"golang.org/x/sync/errgroup"
)

// PrepareProcessValues assigns store to every node, runs every
// RegisterProcessSharedValues hook top-down and clears the assignment
// again. Nodes re-acquire the store when they are launched.
func PrepareProcessValues(root App, store sharedvalue.Store) error {
	_ = Walk(root, func(a App) error {
		a.base().processValues = store
		return nil
	})
	defer func() {
		_ = Walk(root, func(a App) error {
			a.base().processValues = nil
			return nil
		})
	}()

	return Walk(root, func(a App) error {
		b := a.base()
		b.setPhase(PhaseRegistering)
		if err := guard(a.RegisterProcessSharedValues); err != nil {
			return fmt.Errorf("app %q: %w: %w", b.name, ErrRegister, err)
		}
		return nil
	})
}

// Launch runs the launch protocol for a on the calling goroutine and
// returns when a and everything it launched have ended. Failures are
// logged on a's logger and never returned; a failed node does not log
// "terminate".
func Launch(a App, store sharedvalue.Store) {
	b := a.base()
	done := observability.RecordLaunch(b.name, b.Mode())
	defer done()

	if err := run(a, store); err != nil {
		b.setPhase(PhaseFailed)
		return
	}
	b.setPhase(PhaseTerminated)
	b.logger.Debug().Msg("terminate")
}

func run(a App, store sharedvalue.Store) error {
	b := a.base()
	b.logger.Info().Str("mode", b.Mode()).Msg("launch")

	b.setPhase(PhaseAwake)
	if err := guard(a.Awake); err != nil {
		return b.fail(err)
	}

	b.processValues = store
	if !b.IsThread() {
		b.setPhase(PhaseThreadBootstrap)
		if err := bootstrapThreadValues(a); err != nil {
			return b.fail(err)
		}
	}

	b.setPhase(PhaseChildrenLaunching)
	kids, err := launchChildren(a, store)
	if err == nil {
		err = body(a)
	}
	if err != nil {
		err = b.fail(err)
	}

	b.setPhase(PhaseChildrenJoining)
	kids.wait(b)
	if err != nil {
		return err
	}

	b.setPhase(PhaseTerminating)
	if err := guard(a.Terminate); err != nil {
		return b.fail(err)
	}
	return nil
}

func body(a App) error {
	b := a.base()
	b.setPhase(PhaseStarting)
	if err := guard(a.Start); err != nil {
		return err
	}
	b.setPhase(PhaseUpdating)
	if err := periodicUpdate(a); err != nil {
		return err
	}
	b.setPhase(PhaseEnding)
	return guard(a.End)
}

// bootstrapThreadValues gives a and its thread subtree a fresh thread-scope
// store and runs their RegisterThreadSharedValues hooks top-down.
func bootstrapThreadValues(a App) error {
	store := sharedvalue.NewLocalStore()
	_ = walkThreads(a, func(x App) error {
		x.base().threadValues = store
		return nil
	})
	return walkThreads(a, func(x App) error {
		if err := guard(x.RegisterThreadSharedValues); err != nil {
			return fmt.Errorf("app %q: %w: %w", x.base().name, ErrRegister, err)
		}
		return nil
	})
}

type launched struct {
	threads errgroup.Group
	procs   []launchedProcess
}

type launchedProcess struct {
	name string
	proc Process
}

func launchChildren(a App, store sharedvalue.Store) (*launched, error) {
	b := a.base()
	kids := &launched{}
	for _, c := range b.threadChildren {
		c := c
		kids.threads.Go(func() error {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			Launch(c, store)
			return nil
		})
	}
	if len(b.processChildren) == 0 {
		return kids, nil
	}
	if b.env.Spawner == nil {
		return kids, ErrNoSpawner
	}
	for _, c := range b.processChildren {
		p, err := b.env.Spawner.Spawn(c, store)
		if err != nil {
			return kids, fmt.Errorf("spawn %q: %w", c.base().name, err)
		}
		kids.procs = append(kids.procs, launchedProcess{name: c.base().name, proc: p})
	}
	return kids, nil
}

// wait blocks until every launched thread and process has ended.
func (l *launched) wait(b *Base) {
	_ = l.threads.Wait()
	for _, p := range l.procs {
		if err := p.proc.Wait(); err != nil {
			b.logger.Debug().Str("child", p.name).Err(err).Msg("child process exited")
		}
	}
}

// fail logs err as the node's fault and returns it.
func (b *Base) fail(err error) error {
	phase := b.Phase()
	observability.RecordFailure(b.name, phase.String())
	event := b.logger.Error().Str("phase", phase.String()).Err(err)
	var p *panicError
	if errors.As(err, &p) {
		event = event.Bytes("stack", p.stack)
	}
	event.Msg("exception")
	return err
}

type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

// guard runs fn and turns a panic into a *panicError.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return fn()
}
