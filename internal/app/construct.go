package app

import (
	"fmt"

	"github.com/danmuck/apptree/internal/config"
	"github.com/danmuck/apptree/internal/logging"
	"github.com/danmuck/apptree/internal/name"
)

// New resolves cfg.Path in env.Registry and constructs the node named
// absName with its whole subtree.
func New(absName string, cfg config.App, env *Env) (App, error) {
	a, dir, err := env.Registry.Resolve(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("app %q: %w", absName, err)
	}
	if err := Construct(a, absName, cfg, env, dir); err != nil {
		return nil, err
	}
	return a, nil
}

// Construct fills in a from cfg, builds every child in config order and
// runs Init once the subtree exists.
func Construct(a App, absName string, cfg config.App, env *Env, dir string) error {
	b := a.base()
	b.name = name.Clean(absName)
	b.cfg = cfg
	b.env = env
	b.dir = dir
	b.logger = logging.ForApp(env.Logger, b.name)
	b.childIdx = make(map[string]App, len(cfg.Apps))
	b.setPhase(PhaseConstructed)

	for _, childCfg := range cfg.Apps {
		if _, dup := b.childIdx[childCfg.Name]; dup {
			return fmt.Errorf("app %q: %w: %q", b.name, ErrDuplicateChild, childCfg.Name)
		}
		child, err := New(name.Join(b.name, childCfg.Name), childCfg, env)
		if err != nil {
			return err
		}
		b.children = append(b.children, child)
		b.childIdx[childCfg.Name] = child
		if childCfg.Thread {
			b.threadChildren = append(b.threadChildren, child)
		} else {
			b.processChildren = append(b.processChildren, child)
		}
	}

	if err := a.Init(); err != nil {
		return fmt.Errorf("app %q: %w: %v", b.name, ErrInit, err)
	}
	if cfg.FrameRate != nil {
		b.FrameRate = *cfg.FrameRate
	}
	return nil
}

// Walk visits a and its subtree depth-first in config order.
func Walk(a App, fn func(App) error) error {
	if err := fn(a); err != nil {
		return err
	}
	for _, c := range a.base().children {
		if err := Walk(c, fn); err != nil {
			return err
		}
	}
	return nil
}

// walkThreads visits a and every descendant reached through thread
// children only, which is the set of nodes sharing a's process.
func walkThreads(a App, fn func(App) error) error {
	if err := fn(a); err != nil {
		return err
	}
	for _, c := range a.base().threadChildren {
		if err := walkThreads(c, fn); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the node with absolute name abs below or at root.
func Find(root App, abs string) (App, bool) {
	var found App
	_ = Walk(root, func(a App) error {
		if a.base().name == name.Clean(abs) {
			found = a
		}
		return nil
	})
	return found, found != nil
}
