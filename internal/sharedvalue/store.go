package sharedvalue

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/apptree/internal/name"
	"github.com/danmuck/apptree/internal/protocol"
)

// ShutdownName is the reserved absolute key of the run's shutdown flag.
const ShutdownName = "shutdown"

// Store is the interface nodes use for both shared-value scopes. Plain
// values are kept in their wire form (int64, uint64, float64, []any and
// map[string]any) so every reader sees the same type.
type Store interface {
	// Get resolves n against caller and returns the value stored there.
	// A name that only prefixes stored keys returns a Folder.
	Get(caller, n string) (any, error)
	// Set stores v under caller's own name joined with suffix.
	Set(caller, suffix string, v any) error
}

// Folder is the subtree below a looked-up name, keyed by relative name.
type Folder map[string]any

// Keys returns the folder keys in sorted order.
func (f Folder) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type entry struct {
	value any
	owner string
}

// LocalStore is a lock-guarded in-memory Store.
type LocalStore struct {
	mu       sync.Locker
	entries  map[string]entry
	endpoint string
	wire     bool
}

type Option func(*LocalStore)

// WithLocker replaces the default in-process mutex.
func WithLocker(l sync.Locker) Option {
	return func(s *LocalStore) {
		s.mu = l
	}
}

// WithWireValues rejects values that cannot cross the wire. Serve turns
// this on for the store it serves.
func WithWireValues() Option {
	return func(s *LocalStore) {
		s.wire = true
	}
}

func NewLocalStore(opts ...Option) *LocalStore {
	s := &LocalStore{
		mu:      &sync.Mutex{},
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LocalStore) Get(caller, n string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(caller, n)
}

func (s *LocalStore) Set(caller, suffix string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(caller, suffix, v)
}

// Register stores v at the absolute key on behalf of owner. An empty owner
// leaves shared primitives read-only for every caller.
func (s *LocalStore) Register(key, owner string, v any) error {
	key = name.Clean(key)
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidName)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(key, owner, v)
}

// Do runs fn with a Store view that operates under a single acquisition of
// the store lock. The lock is not re-entrant: fn must use tx only and must
// not call s, or it deadlocks. The view must not escape fn.
func (s *LocalStore) Do(fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(lockedView{s: s})
}

// Names returns every stored key in sorted order.
func (s *LocalStore) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Owner returns the owner recorded for key.
func (s *LocalStore) Owner(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name.Clean(key)]
	return e.owner, ok
}

// Endpoint is the socket address child processes dial to reach this store,
// or "" when it is not served.
func (s *LocalStore) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

func (s *LocalStore) setEndpoint(ep string) {
	s.mu.Lock()
	s.endpoint = ep
	if ep != "" {
		s.wire = true
	}
	s.mu.Unlock()
}

func (s *LocalStore) get(caller, n string) (any, error) {
	key, err := resolveKey(caller, n)
	if err != nil {
		return nil, err
	}
	if e, ok := s.entries[key]; ok {
		return view(e, caller), nil
	}
	prefix := key + name.Sep
	folder := Folder{}
	for k, e := range s.entries {
		if strings.HasPrefix(k, prefix) {
			folder[strings.TrimPrefix(k, prefix)] = view(e, caller)
		}
	}
	if len(folder) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return folder, nil
}

func (s *LocalStore) set(caller, suffix string, v any) error {
	if name.Clean(suffix) == "" {
		return fmt.Errorf("%w: empty suffix from %q", ErrInvalidName, caller)
	}
	return s.put(name.Join(caller, suffix), caller, v)
}

func (s *LocalStore) put(key, owner string, v any) error {
	if IsReadOnly(v) {
		return fmt.Errorf("%w: %q: read-only wrappers cannot be stored", ErrReadOnly, key)
	}
	if prev, ok := s.entries[key]; ok && prev.owner != owner {
		return fmt.Errorf("%w: %q is owned by %q", ErrReadOnly, key, prev.owner)
	}
	if !isShared(v) {
		canon, err := protocol.Canonical(v)
		switch {
		case err == nil:
			v = canon
		case s.wire:
			return fmt.Errorf("%w: %q: %v", ErrUnsupportedValue, key, err)
		}
	}
	s.entries[key] = entry{value: v, owner: owner}
	return nil
}

// view hands the owner the stored value and everyone else a read-only
// wrapper around shared primitives.
func view(e entry, caller string) any {
	if !isShared(e.value) || (e.owner != "" && e.owner == caller) {
		return e.value
	}
	ro, _ := MakeReadOnly(e.value)
	return ro
}

// entryAt returns the raw entry for an absolute key.
func (s *LocalStore) entryAt(key string) (entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok
}

type lockedView struct {
	s *LocalStore
}

func (v lockedView) Get(caller, n string) (any, error) {
	return v.s.get(caller, n)
}

func (v lockedView) Set(caller, suffix string, val any) error {
	return v.s.set(caller, suffix, val)
}
