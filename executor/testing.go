package executor

import (
	"io"
	"log/slog"
	"sync"
)

// One executor per test binary keeps the RustPython module compiled once
// across wasm-backed tests.
var (
	testExecutor     *Executor
	testExecutorOnce sync.Once
	testExecutorErr  error
	testExecutorMu   sync.Mutex
)

// GetTestExecutor returns the shared test executor, creating it on first
// use. It logs nothing and does not touch the on-disk compile cache.
func GetTestExecutor() (*Executor, error) {
	testExecutorMu.Lock()
	defer testExecutorMu.Unlock()
	testExecutorOnce.Do(func() {
		testExecutor, testExecutorErr = New(
			WithExecutorLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)
	})
	return testExecutor, testExecutorErr
}

// CloseTestExecutor closes the shared executor so a later
// GetTestExecutor builds a fresh one.
func CloseTestExecutor() {
	testExecutorMu.Lock()
	defer testExecutorMu.Unlock()
	if testExecutor != nil {
		testExecutor.Close()
	}
	testExecutor, testExecutorErr = nil, nil
	testExecutorOnce = sync.Once{}
}
