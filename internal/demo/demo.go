// Package demo holds the apps used by the scaffolded project.
package demo

import (
	"fmt"
	"time"

	"github.com/danmuck/apptree/internal/app"
	"github.com/danmuck/apptree/internal/sharedvalue"
)

const (
	CounterPath = "apptree.demo.counter"
	WatcherPath = "apptree.demo.watcher"
	TickerPath  = "apptree.demo.ticker"
)

func init() {
	app.Register(CounterPath, func() app.App { return &Counter{} })
	app.Register(WatcherPath, func() app.App { return &Watcher{} })
	app.Register(TickerPath, func() app.App { return &Ticker{} })
}

// Counter publishes a process-scope "count" and bumps it every update.
type Counter struct {
	app.Base
	count sharedvalue.ValueCell
}

func (c *Counter) Init() error {
	c.FrameRate = 10
	return nil
}

func (c *Counter) RegisterProcessSharedValues() error {
	return c.AddProcessSharedValue("count", sharedvalue.NewInt(0))
}

func (c *Counter) RegisterThreadSharedValues() error {
	return c.AddThreadSharedValue("label", "counter in "+c.Mode()+" mode")
}

func (c *Counter) Start() error {
	cell, err := valueCell(c.GetProcessSharedValue(".count"))
	if err != nil {
		return err
	}
	c.count = cell
	c.Logger().Info().Msg("started")
	return nil
}

func (c *Counter) Update(time.Duration) error {
	return sharedvalue.AddInt(c.count, 1)
}

// Watcher reports its parent's count.
type Watcher struct {
	app.Base
	label string
}

func (w *Watcher) Init() error {
	w.FrameRate = 2
	return nil
}

func (w *Watcher) Start() error {
	v, err := w.GetThreadSharedValue("..label")
	if err != nil {
		return err
	}
	w.label, _ = v.(string)
	return nil
}

func (w *Watcher) Update(time.Duration) error {
	cell, err := valueCell(w.GetProcessSharedValue("..count"))
	if err != nil {
		return err
	}
	n, err := sharedvalue.LoadInt(cell)
	if err != nil {
		return err
	}
	w.Logger().Info().Int64("count", n).Str("label", w.label).Msg("watch")
	return nil
}

// Ticker logs its rate and keeps a thread-scope tick count.
type Ticker struct {
	app.Base
	ticks *sharedvalue.Cell
}

func (t *Ticker) Init() error {
	t.FrameRate = 1
	return nil
}

func (t *Ticker) RegisterThreadSharedValues() error {
	t.ticks = sharedvalue.NewInt(0)
	return t.AddThreadSharedValue("ticks", t.ticks)
}

func (t *Ticker) Update(delta time.Duration) error {
	t.Logger().Info().
		Str("rate", fmt.Sprintf("%.2f fps", t.FrameRate)).
		Dur("delta", delta).
		Msg("tick")
	return sharedvalue.AddInt(t.ticks, 1)
}

func valueCell(v any, err error) (sharedvalue.ValueCell, error) {
	if err != nil {
		return nil, err
	}
	cell, ok := v.(sharedvalue.ValueCell)
	if !ok {
		return nil, fmt.Errorf("%w: want a value cell, got %T", sharedvalue.ErrKindMismatch, v)
	}
	return cell, nil
}
