package app

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/apptree/internal/config"
	"github.com/danmuck/apptree/internal/sharedvalue"
	"github.com/danmuck/apptree/internal/testutil/testlog"
	"go.uber.org/goleak"
)

// events is an ordered, concurrency-safe trace of hook calls.
type events struct {
	mu  sync.Mutex
	seq []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	e.seq = append(e.seq, s)
	e.mu.Unlock()
}

func (e *events) index(s string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, v := range e.seq {
		if v == s {
			return i
		}
	}
	return -1
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.seq...)
}

// probe records every hook it sees and can be told to fail.
type probe struct {
	Base
	ev        *events
	updates   atomic.Int64
	failStart bool
	panicEnd  bool
	initRate  float64
}

func (p *probe) Init() error {
	p.FrameRate = p.initRate
	return nil
}

func (p *probe) RegisterProcessSharedValues() error {
	p.ev.add("register_process " + p.Name())
	return p.AddProcessSharedValue("value", p.Name())
}

func (p *probe) RegisterThreadSharedValues() error {
	p.ev.add("register_thread " + p.Name())
	return p.AddThreadSharedValue("value", p.Name())
}

func (p *probe) Awake() error {
	p.ev.add("awake " + p.Name())
	return nil
}

func (p *probe) Start() error {
	p.ev.add("start " + p.Name())
	if p.failStart {
		return errors.New("start refused")
	}
	return nil
}

func (p *probe) Update(time.Duration) error {
	p.updates.Add(1)
	return nil
}

func (p *probe) End() error {
	if p.panicEnd {
		panic("end exploded")
	}
	return nil
}

func (p *probe) Terminate() error {
	p.ev.add("terminate " + p.Name())
	return nil
}

type fixture struct {
	env   *Env
	ev    *events
	rec   *testlog.Recorder
	flag  *sharedvalue.Cell
	store *sharedvalue.LocalStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	testlog.Start(t)
	f := &fixture{ev: &events{}, rec: testlog.NewRecorder()}
	reg := NewRegistry()
	mustRegister(t, reg, "test.probe", func() App { return &probe{ev: f.ev} })
	mustRegister(t, reg, "test.fail_start", func() App { return &probe{ev: f.ev, failStart: true, initRate: 20} })
	mustRegister(t, reg, "test.panic_end", func() App { return &probe{ev: f.ev, panicEnd: true} })
	mustRegister(t, reg, "test.rate20", func() App { return &probe{ev: f.ev, initRate: 20} })
	mustRegister(t, reg, "test.nil", func() App { return (*probe)(nil) })
	f.env = &Env{
		Engine:   config.DefaultEngine(),
		Logger:   f.rec.Logger(),
		Registry: reg,
		Spawner:  InProcessSpawner{},
	}
	f.store = sharedvalue.NewLocalStore()
	f.flag = sharedvalue.NewBool(false)
	if err := f.store.Register(sharedvalue.ShutdownName, "", f.flag); err != nil {
		t.Fatalf("register shutdown flag: %v", err)
	}
	return f
}

func mustRegister(t *testing.T, r *Registry, path string, f Factory) {
	t.Helper()
	if err := r.Register(path, f); err != nil {
		t.Fatalf("register %s: %v", path, err)
	}
}

func (f *fixture) build(t *testing.T, apps ...config.App) App {
	t.Helper()
	root := config.App{Name: config.RootName, Path: "test.probe", Apps: apps}
	a, err := New(config.RootName, root, f.env)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	return a
}

// run prepares a, launches it, raises the shutdown flag after d and waits.
func (f *fixture) run(t *testing.T, a App, d time.Duration) {
	t.Helper()
	if err := PrepareProcessValues(a, f.store); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		Launch(a, f.store)
	}()
	time.Sleep(d)
	if err := f.flag.Store(true); err != nil {
		t.Fatalf("set shutdown: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("launch did not return after shutdown\n%s", f.rec.Dump())
	}
}

func rate(v float64) *float64 { return &v }

func TestConstructClassifiesChildren(t *testing.T) {
	f := newFixture(t)
	root := f.build(t,
		config.App{Name: "T", Path: "test.probe", Thread: true},
		config.App{Name: "P", Path: "test.probe", Thread: false},
	)
	b := BaseOf(root)

	if got := b.ThreadChildren(); len(got) != 1 || BaseOf(got[0]).Name() != "MAIN.T" {
		t.Fatalf("unexpected thread children: %v", got)
	}
	if got := b.ProcessChildren(); len(got) != 1 || BaseOf(got[0]).Name() != "MAIN.P" {
		t.Fatalf("unexpected process children: %v", got)
	}
	kids := b.Children()
	if len(kids) != 2 || BaseOf(kids[0]).Name() != "MAIN.T" || BaseOf(kids[1]).Name() != "MAIN.P" {
		t.Fatalf("children lost config order: %v", kids)
	}
	if _, ok := b.Child("P"); !ok {
		t.Fatalf("expected child P")
	}
	if BaseOf(kids[0]).Dir() == "" {
		t.Fatalf("expected registration dir")
	}
}

func TestConstructErrors(t *testing.T) {
	f := newFixture(t)
	root := config.App{Name: config.RootName, Path: "test.probe"}

	root.Apps = []config.App{{Name: "X", Path: "test.missing"}}
	if _, err := New(config.RootName, root, f.env); !errors.Is(err, ErrUnresolvedPath) {
		t.Fatalf("expected ErrUnresolvedPath, got %v", err)
	}
	root.Apps = []config.App{{Name: "X", Path: "test.nil"}}
	if _, err := New(config.RootName, root, f.env); !errors.Is(err, ErrNotApp) {
		t.Fatalf("expected ErrNotApp, got %v", err)
	}
	root.Apps = []config.App{{Name: "X", Path: "test.probe"}, {Name: "X", Path: "test.probe"}}
	if _, err := New(config.RootName, root, f.env); !errors.Is(err, ErrDuplicateChild) {
		t.Fatalf("expected ErrDuplicateChild, got %v", err)
	}
}

func TestRegistryRejectsDuplicatePath(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "a.b", func() App { return &probe{} })
	if err := r.Register(".a.b.", func() App { return &probe{} }); !errors.Is(err, ErrDuplicatePath) {
		t.Fatalf("expected ErrDuplicatePath, got %v", err)
	}
	if got := r.Paths(); len(got) != 1 || got[0] != "a.b" {
		t.Fatalf("unexpected paths: %v", got)
	}
}

func TestConfigFrameRateOverridesInit(t *testing.T) {
	f := newFixture(t)
	root := f.build(t,
		config.App{Name: "A", Path: "test.rate20", Thread: true},
		config.App{Name: "B", Path: "test.rate20", Thread: true, FrameRate: rate(5)},
	)
	a, _ := BaseOf(root).Child("A")
	b, _ := BaseOf(root).Child("B")
	if BaseOf(a).FrameRate != 20 || BaseOf(b).FrameRate != 5 {
		t.Fatalf("unexpected frame rates: A=%v B=%v", BaseOf(a).FrameRate, BaseOf(b).FrameRate)
	}
}

func TestPrepareProcessValuesRegistersEveryNodeAndClears(t *testing.T) {
	f := newFixture(t)
	root := f.build(t,
		config.App{Name: "A", Path: "test.probe", Thread: true, Apps: []config.App{
			{Name: "A1", Path: "test.probe", Thread: false},
		}},
	)
	if err := PrepareProcessValues(root, f.store); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	for _, n := range []string{"MAIN.value", "MAIN.A.value", "MAIN.A.A1.value"} {
		if _, err := f.store.Get("MAIN", n); err != nil {
			t.Fatalf("expected %s registered: %v", n, err)
		}
	}
	_ = Walk(root, func(a App) error {
		if BaseOf(a).ProcessSharedValues() != nil {
			t.Fatalf("%s still holds the process store", BaseOf(a).Name())
		}
		return nil
	})
	if _, err := BaseOf(root).GetProcessSharedValue("MAIN.value"); !errors.Is(err, sharedvalue.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestLaunchOrdering(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	root := f.build(t,
		config.App{Name: "T", Path: "test.rate20", Thread: true},
		config.App{Name: "P", Path: "test.rate20", Thread: false, Apps: []config.App{
			{Name: "PT", Path: "test.rate20", Thread: true},
		}},
	)
	f.run(t, root, 100*time.Millisecond)

	ev := f.ev
	for _, n := range []string{"MAIN", "MAIN.T", "MAIN.P", "MAIN.P.PT"} {
		if ev.index("register_process "+n) > ev.index("awake MAIN") {
			t.Fatalf("process registration of %s after first awake: %v", n, ev.list())
		}
		if !f.rec.Has(n, "launch") || !f.rec.Has(n, "terminate") {
			t.Fatalf("%s missing launch/terminate\n%s", n, f.rec.Dump())
		}
	}
	if ev.index("register_thread MAIN.P.PT") > ev.index("start MAIN.P") {
		t.Fatalf("thread registration after process start: %v", ev.list())
	}
	if ev.index("register_thread MAIN.P") < ev.index("awake MAIN.P") {
		t.Fatalf("thread registration before process exists: %v", ev.list())
	}
	if ev.index("terminate MAIN") < ev.index("terminate MAIN.P.PT") {
		t.Fatalf("root terminated before descendants: %v", ev.list())
	}
}

func TestThreadScopeIsPerProcess(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	root := f.build(t,
		config.App{Name: "T", Path: "test.probe", Thread: true},
		config.App{Name: "P", Path: "test.probe", Thread: false, Apps: []config.App{
			{Name: "PT", Path: "test.probe", Thread: true},
		}},
	)
	f.run(t, root, 10*time.Millisecond)

	rootStore := BaseOf(root).ThreadSharedValues()
	tNode, _ := BaseOf(root).Child("T")
	pNode, _ := BaseOf(root).Child("P")
	ptNode, _ := BaseOf(pNode).Child("PT")
	if BaseOf(tNode).ThreadSharedValues() != rootStore {
		t.Fatalf("thread child should share the root thread store")
	}
	pStore := BaseOf(pNode).ThreadSharedValues()
	if pStore == rootStore || BaseOf(ptNode).ThreadSharedValues() != pStore {
		t.Fatalf("process child should own a separate thread store shared with its threads")
	}
	if _, err := rootStore.Get("MAIN", "MAIN.P.value"); !errors.Is(err, sharedvalue.ErrNotFound) {
		t.Fatalf("process thread values leaked into root scope: %v", err)
	}
	v, err := BaseOf(ptNode).GetThreadSharedValue("..value")
	if err != nil || v != "MAIN.P" {
		t.Fatalf("expected relative read of parent value, got %v err=%v", v, err)
	}
}

func TestZeroRateUpdatesExactlyOnce(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	root := f.build(t)
	if err := PrepareProcessValues(root, f.store); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	Launch(root, f.store)
	if got := root.(*probe).updates.Load(); got != 1 {
		t.Fatalf("expected 1 update, got %d", got)
	}

	f2 := newFixture(t)
	root2 := f2.build(t)
	if err := f2.flag.Store(true); err != nil {
		t.Fatalf("set shutdown: %v", err)
	}
	if err := PrepareProcessValues(root2, f2.store); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	Launch(root2, f2.store)
	if got := root2.(*probe).updates.Load(); got != 1 {
		t.Fatalf("expected 1 update with shutdown already set, got %d", got)
	}
}

func TestPositiveRateCardinality(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	root := f.build(t, config.App{Name: "R", Path: "test.rate20", Thread: true})
	f.run(t, root, time.Second)

	r, _ := BaseOf(root).Child("R")
	got := r.(*probe).updates.Load()
	if got < 16 || got > 24 {
		t.Fatalf("expected 16..24 updates at 20Hz over 1s, got %d", got)
	}
}

func TestNegativeRateBusyLoops(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	root := f.build(t, config.App{Name: "N", Path: "test.probe", Thread: true, FrameRate: rate(-1)})
	f.run(t, root, 50*time.Millisecond)

	n, _ := BaseOf(root).Child("N")
	if got := n.(*probe).updates.Load(); got < 100 {
		t.Fatalf("expected a busy loop, got %d updates", got)
	}
}

func TestFaultIsolation(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	root := f.build(t,
		config.App{Name: "Bad", Path: "test.fail_start", Thread: true},
		config.App{Name: "Good", Path: "test.rate20", Thread: true},
	)
	f.run(t, root, 100*time.Millisecond)

	rec := f.rec
	if !rec.Has("MAIN.Bad", "launch") || !rec.Has("MAIN.Bad", "exception") {
		t.Fatalf("expected Bad launch and exception\n%s", rec.Dump())
	}
	if rec.Has("MAIN.Bad", "terminate") {
		t.Fatalf("failed node must not log terminate\n%s", rec.Dump())
	}
	if !rec.Has("MAIN.Good", "terminate") || !rec.Has("MAIN", "terminate") {
		t.Fatalf("sibling and parent must terminate\n%s", rec.Dump())
	}
	bad, _ := BaseOf(root).Child("Bad")
	if BaseOf(bad).Phase() != PhaseFailed || BaseOf(root).Phase() != PhaseTerminated {
		t.Fatalf("unexpected phases: bad=%s root=%s", BaseOf(bad).Phase(), BaseOf(root).Phase())
	}
}

func TestPanicIsLoggedAsException(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	root := f.build(t, config.App{Name: "Boom", Path: "test.panic_end", Thread: true})
	f.run(t, root, 10*time.Millisecond)

	if !f.rec.Has("MAIN.Boom", "exception") || f.rec.Has("MAIN.Boom", "terminate") {
		t.Fatalf("expected panic logged as exception without terminate\n%s", f.rec.Dump())
	}
	if !f.rec.Has("MAIN", "terminate") {
		t.Fatalf("parent must still terminate\n%s", f.rec.Dump())
	}
}

func TestMissingShutdownFlagFailsNode(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	root := f.build(t)
	store := sharedvalue.NewLocalStore()
	if err := PrepareProcessValues(root, store); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	Launch(root, store)
	if !f.rec.Has("MAIN", "exception") || f.rec.Has("MAIN", "terminate") {
		t.Fatalf("expected missing flag to fail the node\n%s", f.rec.Dump())
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	root := f.build(t, config.App{Name: "A", Path: "test.probe", Thread: true, FrameRate: rate(2)})
	s := Snapshot(root)
	if s.Name != "MAIN" || s.Mode != "process" || s.Phase != "constructed" || len(s.Children) != 1 {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
	if c := s.Children[0]; c.Name != "MAIN.A" || c.Mode != "thread" || *c.FrameRate != 2 {
		t.Fatalf("unexpected child snapshot: %+v", c)
	}
}
