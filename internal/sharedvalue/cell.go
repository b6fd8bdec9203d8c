package sharedvalue

import (
	"fmt"
	"sync"
)

// Kind is the element type held by a cell or array.
type Kind uint8

const (
	KindBool Kind = iota + 1
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// UpdateFunc computes the next value of a cell from its current one.
type UpdateFunc func(cur any) (any, error)

// ValueCell is a synchronized scalar shared between nodes.
type ValueCell interface {
	Kind() Kind
	Load() (any, error)
	Store(v any) error
	// Update replaces the value with fn's result as one atomic step. fn
	// must not touch the cell and may run more than once on a remote cell.
	Update(fn UpdateFunc) error
}

// ArrayCell is a synchronized fixed-length array shared between nodes.
type ArrayCell interface {
	Kind() Kind
	Len() (int, error)
	Index(i int) (any, error)
	Slice(lo, hi int) ([]any, error)
	SetIndex(i int, v any) error
	// UpdateIndex is Update for element i.
	UpdateIndex(i int, fn UpdateFunc) error
}

// Cell is the in-process ValueCell.
type Cell struct {
	mu   sync.Mutex
	kind Kind
	v    any
}

func NewBool(v bool) *Cell     { return &Cell{kind: KindBool, v: v} }
func NewInt(v int64) *Cell     { return &Cell{kind: KindInt, v: v} }
func NewFloat(v float64) *Cell { return &Cell{kind: KindFloat, v: v} }
func NewString(v string) *Cell { return &Cell{kind: KindString, v: v} }

// NewCell builds a cell of kind holding v.
func NewCell(kind Kind, v any) (*Cell, error) {
	norm, err := normalize(kind, v)
	if err != nil {
		return nil, err
	}
	return &Cell{kind: kind, v: norm}, nil
}

func (c *Cell) Kind() Kind { return c.kind }

func (c *Cell) Load() (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v, nil
}

func (c *Cell) Store(v any) error {
	norm, err := normalize(c.kind, v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.v = norm
	c.mu.Unlock()
	return nil
}

func (c *Cell) Update(fn UpdateFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := fn(c.v)
	if err != nil {
		return err
	}
	norm, err := normalize(c.kind, next)
	if err != nil {
		return err
	}
	c.v = norm
	return nil
}

// Array is the in-process ArrayCell.
type Array struct {
	mu   sync.Mutex
	kind Kind
	vals []any
}

// NewArray builds an array of kind holding values. Its length is fixed.
func NewArray(kind Kind, values ...any) (*Array, error) {
	vals := make([]any, len(values))
	for i, v := range values {
		norm, err := normalize(kind, v)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		vals[i] = norm
	}
	return &Array{kind: kind, vals: vals}, nil
}

// NewIntArray builds an int array holding values.
func NewIntArray(values ...int64) *Array {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return &Array{kind: KindInt, vals: vals}
}

func (a *Array) Kind() Kind { return a.kind }

func (a *Array) Len() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.vals), nil
}

func (a *Array) Index(i int) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.vals) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(a.vals))
	}
	return a.vals[i], nil
}

func (a *Array) Slice(lo, hi int) ([]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if lo < 0 || hi > len(a.vals) || lo > hi {
		return nil, fmt.Errorf("%w: [%d:%d] of %d", ErrIndexOutOfRange, lo, hi, len(a.vals))
	}
	out := make([]any, hi-lo)
	copy(out, a.vals[lo:hi])
	return out, nil
}

func (a *Array) SetIndex(i int, v any) error {
	norm, err := normalize(a.kind, v)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.vals) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(a.vals))
	}
	a.vals[i] = norm
	return nil
}

func (a *Array) UpdateIndex(i int, fn UpdateFunc) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.vals) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(a.vals))
	}
	next, err := fn(a.vals[i])
	if err != nil {
		return err
	}
	norm, err := normalize(a.kind, next)
	if err != nil {
		return err
	}
	a.vals[i] = norm
	return nil
}

// normalize converts v to the canonical Go type of kind: bool, int64,
// float64 or string.
func normalize(kind Kind, v any) (any, error) {
	switch kind {
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindInt:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int8:
			return int64(x), nil
		case int16:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int64:
			return x, nil
		case uint8:
			return int64(x), nil
		case uint16:
			return int64(x), nil
		case uint32:
			return int64(x), nil
		case uint64:
			if x <= 1<<63-1 {
				return int64(x), nil
			}
		}
	case KindFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrKindMismatch, kind)
	}
	return nil, fmt.Errorf("%w: %T is not %s", ErrKindMismatch, v, kind)
}

// LoadBool reads a bool cell.
func LoadBool(c ValueCell) (bool, error) {
	v, err := c.Load()
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %T is not bool", ErrKindMismatch, v)
	}
	return b, nil
}

// LoadInt reads an int cell.
func LoadInt(c ValueCell) (int64, error) {
	v, err := c.Load()
	if err != nil {
		return 0, err
	}
	i, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: %T is not int", ErrKindMismatch, v)
	}
	return i, nil
}

// AddInt adds delta to an int cell in one atomic step.
func AddInt(c ValueCell, delta int64) error {
	return c.Update(func(cur any) (any, error) {
		n, ok := cur.(int64)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not int", ErrKindMismatch, cur)
		}
		return n + delta, nil
	})
}

// LoadFloat reads a float cell.
func LoadFloat(c ValueCell) (float64, error) {
	v, err := c.Load()
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %T is not float", ErrKindMismatch, v)
	}
	return f, nil
}

// LoadString reads a string cell.
func LoadString(c ValueCell) (string, error) {
	v, err := c.Load()
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %T is not string", ErrKindMismatch, v)
	}
	return s, nil
}
