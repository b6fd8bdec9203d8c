package app

import "errors"

var (
	ErrUnresolvedPath = errors.New("app: unresolved path")
	ErrNotApp         = errors.New("app: factory did not produce an app")
	ErrDuplicatePath  = errors.New("app: path already registered")
	ErrDuplicateChild = errors.New("app: duplicate child name")
	ErrInit           = errors.New("app: init failed")
	ErrRegister       = errors.New("app: shared value registration failed")
	ErrNoShutdownFlag = errors.New("app: shutdown flag unavailable")
	ErrNoSpawner      = errors.New("app: no spawner for process children")
)
