package app

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/danmuck/apptree/internal/config"
	"github.com/danmuck/apptree/internal/sharedvalue"
	"github.com/rs/zerolog"
)

// App is the contract of a tree node. Implementations embed Base, which
// supplies no-op hooks and the unexported accessor that marks the contract.
type App interface {
	// Init runs once after the node's whole subtree is constructed.
	Init() error
	// RegisterProcessSharedValues adds values visible across processes.
	// It runs for every node before any node is launched.
	RegisterProcessSharedValues() error
	// RegisterThreadSharedValues adds values visible to the node's process.
	// It runs after the process exists and before its Start.
	RegisterThreadSharedValues() error
	Awake() error
	Start() error
	Update(delta time.Duration) error
	End() error
	Terminate() error

	base() *Base
}

// Env is shared by every node built for one run.
type Env struct {
	Engine     config.Engine
	Project    config.App
	ProjectDir string
	Logger     zerolog.Logger
	Registry   *Registry
	Spawner    Spawner
}

// Base carries node identity, children and shared-value access.
type Base struct {
	// FrameRate is the Update frequency in Hz. 0 runs Update once, a
	// negative rate loops without sleeping. A frame_rate in the config
	// record overrides the value set by Init.
	FrameRate float64

	name   string
	cfg    config.App
	env    *Env
	dir    string
	logger zerolog.Logger

	children        []App
	childIdx        map[string]App
	threadChildren  []App
	processChildren []App

	processValues sharedvalue.Store
	threadValues  sharedvalue.Store

	phase atomic.Int32
}

func (b *Base) base() *Base { return b }

func (b *Base) Init() error                        { return nil }
func (b *Base) RegisterProcessSharedValues() error { return nil }
func (b *Base) RegisterThreadSharedValues() error  { return nil }
func (b *Base) Awake() error                       { return nil }
func (b *Base) Start() error                       { return nil }
func (b *Base) Update(time.Duration) error         { return nil }
func (b *Base) End() error                         { return nil }
func (b *Base) Terminate() error                   { return nil }

// Name is the node's absolute dotted name.
func (b *Base) Name() string { return b.name }

func (b *Base) Config() config.App { return b.cfg }

func (b *Base) Env() *Env { return b.env }

// Dir is the source directory of the registered implementation.
func (b *Base) Dir() string { return b.dir }

// Logger is tagged with the node's absolute name.
func (b *Base) Logger() *zerolog.Logger { return &b.logger }

// IsThread reports whether the node runs on a thread of its parent's process.
func (b *Base) IsThread() bool { return b.cfg.Thread }

func (b *Base) Mode() string {
	if b.cfg.Thread {
		return "thread"
	}
	return "process"
}

func (b *Base) Phase() Phase { return Phase(b.phase.Load()) }

func (b *Base) setPhase(p Phase) { b.phase.Store(int32(p)) }

// Children returns the children in config order.
func (b *Base) Children() []App { return append([]App(nil), b.children...) }

func (b *Base) Child(short string) (App, bool) {
	c, ok := b.childIdx[short]
	return c, ok
}

func (b *Base) ThreadChildren() []App { return append([]App(nil), b.threadChildren...) }

func (b *Base) ProcessChildren() []App { return append([]App(nil), b.processChildren...) }

// AddProcessSharedValue stores v under Name()+"."+suffix in the
// process-scope store.
func (b *Base) AddProcessSharedValue(suffix string, v any) error {
	if b.processValues == nil {
		return fmt.Errorf("%w: process scope of %s", sharedvalue.ErrNoStore, b.name)
	}
	return b.processValues.Set(b.name, suffix, v)
}

// GetProcessSharedValue reads an absolute or relative name from the
// process-scope store.
func (b *Base) GetProcessSharedValue(n string) (any, error) {
	if b.processValues == nil {
		return nil, fmt.Errorf("%w: process scope of %s", sharedvalue.ErrNoStore, b.name)
	}
	return b.processValues.Get(b.name, n)
}

func (b *Base) AddThreadSharedValue(suffix string, v any) error {
	if b.threadValues == nil {
		return fmt.Errorf("%w: thread scope of %s", sharedvalue.ErrNoStore, b.name)
	}
	return b.threadValues.Set(b.name, suffix, v)
}

func (b *Base) GetThreadSharedValue(n string) (any, error) {
	if b.threadValues == nil {
		return nil, fmt.Errorf("%w: thread scope of %s", sharedvalue.ErrNoStore, b.name)
	}
	return b.threadValues.Get(b.name, n)
}

// ProcessSharedValues returns the assigned process-scope store, or nil.
func (b *Base) ProcessSharedValues() sharedvalue.Store { return b.processValues }

// ThreadSharedValues returns the assigned thread-scope store, or nil.
func (b *Base) ThreadSharedValues() sharedvalue.Store { return b.threadValues }

// BaseOf exposes the Base of any node.
func BaseOf(a App) *Base { return a.base() }
