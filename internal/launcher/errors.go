package launcher

import "errors"

var (
	ErrNotPrepared     = errors.New("launcher: not prepared for launching")
	ErrAlreadyPrepared = errors.New("launcher: already prepared")
	ErrNotLaunched     = errors.New("launcher: not launched")
	ErrNoEndpoint      = errors.New("launcher: store has no endpoint for child processes")
	ErrNotChild        = errors.New("launcher: not a child process")
	ErrUnknownChild    = errors.New("launcher: child app not in manifest")
	ErrChildExit       = errors.New("launcher: child process exited with error")
)
