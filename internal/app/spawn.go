package app

import (
	"github.com/danmuck/apptree/internal/sharedvalue"
)

// Process is a launched process child.
type Process interface {
	// Wait blocks until the child has ended.
	Wait() error
}

// Spawner starts process children. store is the process-scope store of the
// parent and the only state handed across the boundary.
type Spawner interface {
	Spawn(a App, store sharedvalue.Store) (Process, error)
}

// InProcessSpawner runs process children on their own goroutine inside the
// current process. Children still bootstrap their own thread-scope store.
type InProcessSpawner struct{}

func (InProcessSpawner) Spawn(a App, store sharedvalue.Store) (Process, error) {
	p := &inProcess{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		Launch(a, store)
	}()
	return p, nil
}

type inProcess struct {
	done chan struct{}
}

func (p *inProcess) Wait() error {
	<-p.done
	return nil
}
