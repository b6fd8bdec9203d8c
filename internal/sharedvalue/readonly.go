package sharedvalue

import "fmt"

// ReadOnlyValue exposes only the read side of a ValueCell.
type ReadOnlyValue struct {
	cell ValueCell
}

func (r ReadOnlyValue) Kind() Kind         { return r.cell.Kind() }
func (r ReadOnlyValue) Load() (any, error) { return r.cell.Load() }

func (r ReadOnlyValue) Store(any) error {
	return fmt.Errorf("%w: cannot store into %s cell", ErrReadOnly, r.cell.Kind())
}

func (r ReadOnlyValue) Update(UpdateFunc) error {
	return fmt.Errorf("%w: cannot update %s cell", ErrReadOnly, r.cell.Kind())
}

// ReadOnlyArray exposes only the read side of an ArrayCell.
type ReadOnlyArray struct {
	arr ArrayCell
}

func (r ReadOnlyArray) Kind() Kind                      { return r.arr.Kind() }
func (r ReadOnlyArray) Len() (int, error)               { return r.arr.Len() }
func (r ReadOnlyArray) Index(i int) (any, error)        { return r.arr.Index(i) }
func (r ReadOnlyArray) Slice(lo, hi int) ([]any, error) { return r.arr.Slice(lo, hi) }

func (r ReadOnlyArray) SetIndex(int, any) error {
	return fmt.Errorf("%w: cannot set index of %s array", ErrReadOnly, r.arr.Kind())
}

func (r ReadOnlyArray) UpdateIndex(int, UpdateFunc) error {
	return fmt.Errorf("%w: cannot update index of %s array", ErrReadOnly, r.arr.Kind())
}

// MakeReadOnly wraps a cell or array. Values that are already read-only
// are returned unchanged; anything else fails with ErrUnsupportedValue.
func MakeReadOnly(v any) (any, error) {
	switch x := v.(type) {
	case ReadOnlyValue, ReadOnlyArray:
		return x, nil
	case ValueCell:
		return ReadOnlyValue{cell: x}, nil
	case ArrayCell:
		return ReadOnlyArray{arr: x}, nil
	default:
		return nil, fmt.Errorf("%w: %T cannot be made read-only", ErrUnsupportedValue, v)
	}
}

// IsReadOnly reports whether v is a read-only wrapper.
func IsReadOnly(v any) bool {
	switch v.(type) {
	case ReadOnlyValue, ReadOnlyArray:
		return true
	default:
		return false
	}
}

// isShared reports whether v is a synchronized primitive subject to
// owner-only writes.
func isShared(v any) bool {
	switch v.(type) {
	case ValueCell, ArrayCell:
		return true
	default:
		return false
	}
}
