// Package python provides the Python language adapter for pyrunner.
package python

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
)

// ModulePathEnv names the environment variable New reads the interpreter
// binary path from when no path is given.
const ModulePathEnv = "PYRUNNER_PYTHON_WASM"

// ErrNoModule is returned by Module when no binary path is configured.
var ErrNoModule = errors.New("python: no interpreter module configured (set " + ModulePathEnv + ")")

//go:embed prelude.py
var prelude string

// Python implements the executor.Language interface with a RustPython
// WASI build loaded from disk.
type Python struct {
	path string
}

type Option func(*Python)

// WithModulePath sets the path of the RustPython .wasm binary.
func WithModulePath(path string) Option {
	return func(p *Python) {
		p.path = path
	}
}

// New returns a Python language adapter.
func New(opts ...Option) *Python {
	p := &Python{path: os.Getenv(ModulePathEnv)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns "python".
func (p *Python) Name() string {
	return "python"
}

func (p *Python) ModulePath() string {
	return p.path
}

// Module reads the interpreter binary. It is called once per Executor; a
// missing binary surfaces as a session initialization failure.
func (p *Python) Module() ([]byte, error) {
	if p.path == "" {
		return nil, ErrNoModule
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("python: read module: %w", err)
	}
	return data, nil
}

// Prelude returns the helpers and session loop run at startup.
func (p *Python) Prelude() string {
	return prelude
}

// Args returns the command-line arguments for the Python interpreter.
func (p *Python) Args(code string) []string {
	return []string{"python", "-c", code}
}
