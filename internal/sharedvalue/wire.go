package sharedvalue

import (
	"errors"
	"fmt"

	"github.com/danmuck/apptree/internal/name"
	"github.com/danmuck/apptree/internal/protocol"
)

// statusOf maps a store error onto its wire status.
func statusOf(err error) protocol.Status {
	switch {
	case err == nil:
		return protocol.StatusOK
	case errors.Is(err, ErrNotFound):
		return protocol.StatusNotFound
	case errors.Is(err, ErrReadOnly):
		return protocol.StatusReadOnly
	case errors.Is(err, ErrInvalidName):
		return protocol.StatusInvalidName
	case errors.Is(err, ErrKindMismatch):
		return protocol.StatusKindMismatch
	case errors.Is(err, ErrIndexOutOfRange):
		return protocol.StatusOutOfRange
	case errors.Is(err, ErrUnsupportedValue), errors.Is(err, protocol.ErrUnsupportedValue):
		return protocol.StatusUnsupported
	case errors.Is(err, ErrConflict):
		return protocol.StatusConflict
	default:
		return protocol.StatusInternal
	}
}

// errorOf rebuilds a store error from a failed response.
func errorOf(resp protocol.Response) error {
	var base error
	switch resp.Status {
	case protocol.StatusOK:
		return nil
	case protocol.StatusNotFound:
		base = ErrNotFound
	case protocol.StatusReadOnly:
		base = ErrReadOnly
	case protocol.StatusInvalidName:
		base = ErrInvalidName
	case protocol.StatusKindMismatch:
		base = ErrKindMismatch
	case protocol.StatusOutOfRange:
		base = ErrIndexOutOfRange
	case protocol.StatusUnsupported:
		base = ErrUnsupportedValue
	case protocol.StatusConflict:
		base = ErrConflict
	default:
		return fmt.Errorf("sharedvalue: remote %s: %s", resp.Status, resp.Message)
	}
	return fmt.Errorf("%w (remote): %s", base, resp.Message)
}

// encodeShared turns a value read from the local store into its wire form.
// Cells become references addressed by key.
func encodeShared(key string, v any) (any, error) {
	switch x := v.(type) {
	case ReadOnlyValue:
		return protocol.CellRef{Key: key, Kind: uint8(x.Kind())}, nil
	case ReadOnlyArray:
		return protocol.CellRef{Key: key, Kind: uint8(x.Kind()), Array: true}, nil
	case ValueCell:
		return protocol.CellRef{Key: key, Kind: uint8(x.Kind()), Writable: true}, nil
	case ArrayCell:
		return protocol.CellRef{Key: key, Kind: uint8(x.Kind()), Array: true, Writable: true}, nil
	case Folder:
		out := make(map[string]any, len(x))
		for k, item := range x {
			enc, err := encodeShared(name.Join(key, k), item)
			if err != nil {
				return nil, err
			}
			out[k] = enc
		}
		return out, nil
	default:
		return v, nil
	}
}

// encodeNew describes a value about to be stored remotely. Local cells are
// sent by contents, remote ones by key.
func encodeNew(v any) (any, error) {
	switch x := v.(type) {
	case *remoteCell:
		return protocol.CellRef{Key: x.key, Kind: uint8(x.kind)}, nil
	case *remoteArray:
		return protocol.CellRef{Key: x.key, Kind: uint8(x.kind), Array: true}, nil
	case ReadOnlyValue, ReadOnlyArray:
		return nil, fmt.Errorf("%w: read-only wrappers cannot be stored", ErrReadOnly)
	case ValueCell:
		cur, err := x.Load()
		if err != nil {
			return nil, err
		}
		return protocol.CellRef{Kind: uint8(x.Kind()), Init: cur}, nil
	case ArrayCell:
		n, err := x.Len()
		if err != nil {
			return nil, err
		}
		vals, err := x.Slice(0, n)
		if err != nil {
			return nil, err
		}
		return protocol.CellRef{Kind: uint8(x.Kind()), Array: true, Init: vals}, nil
	default:
		return v, nil
	}
}

// materialize turns a decoded new-cell reference into a local cell.
func materialize(ref protocol.CellRef) (any, error) {
	kind := Kind(ref.Kind)
	if !ref.Array {
		return NewCell(kind, ref.Init)
	}
	vals, ok := ref.Init.([]any)
	if !ok && ref.Init != nil {
		return nil, fmt.Errorf("%w: array init %T", ErrUnsupportedValue, ref.Init)
	}
	return NewArray(kind, vals...)
}

// swapIf stores next through update only while the current value still
// equals expect.
func swapIf(update func(UpdateFunc) error, expect, next any) error {
	return update(func(cur any) (any, error) {
		if !sameValue(cur, expect) {
			return nil, fmt.Errorf("%w: have %v, expected %v", ErrConflict, cur, expect)
		}
		return next, nil
	})
}

func sameValue(a, b any) bool {
	x, xok := a.(float64)
	y, yok := b.(float64)
	if xok && yok && x != x && y != y {
		return true
	}
	return a == b
}

func resolveKey(caller, n string) (string, error) {
	key, err := name.Resolve(caller, n)
	if err != nil {
		return "", fmt.Errorf("%w: %q from %q: %v", ErrInvalidName, n, caller, err)
	}
	return key, nil
}
