package executor

import (
	"errors"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSessionBusy   = errors.New("session busy: another execution is in flight")

	// ErrNotInitialized is returned by Execute unless the session is Ready.
	ErrNotInitialized = errors.New("runtime not initialized")

	// ErrEmptySource is returned for source that is empty after trimming.
	ErrEmptySource = errors.New("no code to execute")

	// ErrExecution matches every *ExecError.
	ErrExecution = errors.New("execution error")

	// ErrRuntimeExited means the interpreter is gone and cannot run more code.
	ErrRuntimeExited = errors.New("runtime exited")
)

// ExecError is an exception raised by executed code. Message is the
// interpreter's own diagnostic.
type ExecError struct {
	Message string
}

func (e *ExecError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, ErrExecution) match any ExecError.
func (e *ExecError) Is(target error) bool {
	return target == ErrExecution
}
