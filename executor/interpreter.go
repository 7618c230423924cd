package executor

import (
	"context"
	"io"

	"github.com/caffeineduck/pyrunner/hostfunc"
)

// Interpreter is the embedded runtime a Session drives.
//
// Implementations need not be safe for concurrent Exec calls; Session
// never overlaps them.
type Interpreter interface {
	// Start boots the runtime and installs the prelude. Functions in
	// registry must be callable from executed code.
	Start(ctx context.Context, registry *hostfunc.Registry) error

	// Exec runs code. Everything the code writes to standard output while
	// Exec runs goes to stdout, and nothing is written to stdout after Exec
	// returns, whatever the outcome. Exceptions raised by the code are
	// returned as *ExecError; errors wrapping ErrRuntimeExited mean the
	// interpreter cannot be used again.
	Exec(ctx context.Context, code string, stdout io.Writer) error

	Close() error
}
