package sharedvalue

import "errors"

var (
	ErrNotFound         = errors.New("sharedvalue: not found")
	ErrReadOnly         = errors.New("sharedvalue: read-only")
	ErrInvalidName      = errors.New("sharedvalue: invalid name")
	ErrKindMismatch     = errors.New("sharedvalue: kind mismatch")
	ErrIndexOutOfRange  = errors.New("sharedvalue: index out of range")
	ErrUnsupportedValue = errors.New("sharedvalue: unsupported value")
	ErrNoStore          = errors.New("sharedvalue: store not assigned")
	ErrClosed           = errors.New("sharedvalue: store connection closed")
	ErrConflict         = errors.New("sharedvalue: value changed during update")
)
