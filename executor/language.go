package executor

// Language defines a WASM-based interpreter the executor can host.
type Language interface {
	// Name returns a unique identifier for this language (e.g., "python").
	// Used as the cache key for compiled modules.
	Name() string

	// Module returns the WASM binary for the interpreter.
	Module() ([]byte, error)

	// Prelude returns the code run once at startup. It defines the host
	// call shim and the helpers user code can call, then enters the
	// session loop: read exec commands on stdin, signal completion on
	// stderr.
	Prelude() string

	// Args returns the command-line arguments that make the interpreter
	// run prelude. For Python: []string{"python", "-c", prelude}
	Args(prelude string) []string
}
