package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/caffeineduck/pyrunner/hostfunc"
	"github.com/tetratelabs/wazero"
)

// packagesMount is where the site directory appears inside the runtime.
const packagesMount = "/packages"

// wasmInterpreter runs a Language's prelude in a long-lived wazero module
// and feeds it exec commands over stdin.
type wasmInterpreter struct {
	exec         *Executor
	lang         Language
	siteDir      string
	startTimeout time.Duration
	logger       *slog.Logger

	stdout      *redirectWriter
	stderr      *logWriter
	protocol    *sessionProtocol
	stdin       *io.PipeWriter
	stdinReader *io.PipeReader
	cancel      context.CancelFunc

	exited  chan struct{}
	exitErr error

	mu      sync.Mutex
	started bool
}

func newWasmInterpreter(e *Executor, lang Language, cfg sessionConfig) *wasmInterpreter {
	return &wasmInterpreter{
		exec:         e,
		lang:         lang,
		siteDir:      cfg.siteDir,
		startTimeout: cfg.startTimeout,
		logger:       cfg.logger,
		exited:       make(chan struct{}),
	}
}

func (w *wasmInterpreter) Start(ctx context.Context, registry *hostfunc.Registry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return errors.New("interpreter already started")
	}
	w.started = true

	compiled, err := w.exec.getCompiled(ctx, w.lang)
	if err != nil {
		return err
	}

	// The module outlives Start; its lifetime is bounded by Close.
	modCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.stdinReader, w.stdin = io.Pipe()
	w.stdout = newRedirectWriter()
	w.stderr = newLogWriter(w.logger, "language", w.lang.Name())
	w.protocol = newSessionProtocol(modCtx, registry, w.stdin, w.stderr)

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(w.stdout).
		WithStderr(w.protocol).
		WithStdin(w.stdinReader).
		WithArgs(w.lang.Args(w.lang.Prelude())...).
		WithSysWalltime().
		WithName("")

	if w.siteDir != "" {
		moduleConfig = moduleConfig.
			WithFSConfig(wazero.NewFSConfig().WithReadOnlyDirMount(w.siteDir, packagesMount)).
			WithEnv("PYTHONPATH", packagesMount)
	}

	go func() {
		mod, err := w.exec.runtime.InstantiateModule(modCtx, compiled, moduleConfig)
		if mod != nil {
			mod.Close(context.Background())
		}
		if err == nil {
			err = errors.New("interpreter returned")
		}
		w.exitErr = err
		w.stderr.Flush()
		w.stdinReader.CloseWithError(ErrRuntimeExited)
		close(w.exited)
	}()

	timeout := w.startTimeout
	if timeout <= 0 {
		timeout = defaultStartTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.protocol.Ready():
		return nil
	case <-w.exited:
		return fmt.Errorf("start %s: %w: %v", w.lang.Name(), ErrRuntimeExited, w.exitErr)
	case <-ctx.Done():
		w.kill()
		return fmt.Errorf("start %s: %w", w.lang.Name(), ctx.Err())
	case <-timer.C:
		w.kill()
		return fmt.Errorf("start %s: timeout after %v", w.lang.Name(), timeout)
	}
}

func (w *wasmInterpreter) Exec(ctx context.Context, code string, stdout io.Writer) error {
	select {
	case <-w.exited:
		return fmt.Errorf("%w: %v", ErrRuntimeExited, w.exitErr)
	default:
	}

	restore := w.stdout.redirect(stdout)
	defer restore()

	w.protocol.ResetExec()
	if err := w.protocol.sendExec(code); err != nil {
		return fmt.Errorf("%w: write command: %v", ErrRuntimeExited, err)
	}

	select {
	case err := <-w.protocol.Done():
		return err
	case <-w.exited:
		return fmt.Errorf("%w: %v", ErrRuntimeExited, w.exitErr)
	case <-ctx.Done():
		// Running code cannot be interrupted; the module goes with it.
		w.kill()
		return fmt.Errorf("%w: %w", ErrRuntimeExited, ctx.Err())
	}
}

// kill cancels the module context and waits for the module to exit.
func (w *wasmInterpreter) kill() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.stdin != nil {
		w.stdin.Close()
	}
	<-w.exited
}

func (w *wasmInterpreter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started || w.cancel == nil {
		return nil
	}
	// Closing stdin makes the session loop see EOF and return.
	w.stdin.Close()
	w.cancel()
	<-w.exited
	return nil
}
