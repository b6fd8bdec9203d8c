package app

import (
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/apptree/internal/name"
)

// Factory returns a fresh, unconstructed node.
type Factory func() App

type registration struct {
	factory Factory
	dir     string
}

// Registry maps dotted paths to node factories.
type Registry struct {
	mu    sync.RWMutex
	items map[string]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]registration)}
}

// DefaultRegistry is populated by package init functions through Register.
var DefaultRegistry = NewRegistry()

// Register adds f to DefaultRegistry and panics on a bad registration, the
// way init-time registration is expected to fail.
func Register(path string, f Factory) {
	if err := DefaultRegistry.register(path, f, 2); err != nil {
		panic(err)
	}
}

// Register adds f under path. The node directory is the directory of the
// calling source file.
func (r *Registry) Register(path string, f Factory) error {
	return r.register(path, f, 2)
}

func (r *Registry) register(path string, f Factory, skip int) error {
	path = name.Clean(strings.TrimSpace(path))
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrUnresolvedPath)
	}
	if f == nil {
		return fmt.Errorf("%w: nil factory for %q", ErrNotApp, path)
	}
	dir := ""
	if _, file, _, ok := runtime.Caller(skip); ok {
		dir = filepath.Dir(file)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[path]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicatePath, path)
	}
	r.items[path] = registration{factory: f, dir: dir}
	return nil
}

// Resolve builds a new node for path and returns it with its directory.
func (r *Registry) Resolve(path string) (App, string, error) {
	r.mu.RLock()
	reg, ok := r.items[name.Clean(strings.TrimSpace(path))]
	r.mu.RUnlock()
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnresolvedPath, path)
	}
	a := reg.factory()
	if isNil(a) {
		return nil, "", fmt.Errorf("%w: %q", ErrNotApp, path)
	}
	return a, reg.dir, nil
}

// Paths returns every registered path in sorted order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.items))
	for p := range r.items {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func isNil(a App) bool {
	if a == nil {
		return true
	}
	v := reflect.ValueOf(a)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
