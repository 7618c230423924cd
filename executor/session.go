package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caffeineduck/pyrunner/hostfunc"
	"github.com/caffeineduck/pyrunner/installer"
	"github.com/caffeineduck/pyrunner/resolver"
)

// State is a Session's lifecycle stage.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Result holds the outcome of one Execute call.
type Result struct {
	Output   string
	Files    map[string][]byte
	Packages installer.Report
	Duration time.Duration
	Error    error
}

// Empty reports whether the run printed nothing but whitespace.
func (r Result) Empty() bool {
	return strings.TrimSpace(r.Output) == ""
}

// Session owns one interpreter and everything that outlives a single run:
// the produced files, the installed packages and the interpreter's globals.
type Session struct {
	interp    Interpreter
	registry  *hostfunc.Registry
	files     *hostfunc.Files
	installer *installer.Installer
	logger    *slog.Logger
	timeout   time.Duration

	state    atomic.Int32
	initOnce sync.Once
	initErr  error
	execMu   sync.Mutex

	mu     sync.Mutex
	err    error // why the session failed
	closed bool
}

// NewSession returns an uninitialized Session driving interp.
func NewSession(interp Interpreter, opts ...SessionOption) *Session {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newSession(interp, cfg)
}

func newSession(interp Interpreter, cfg sessionConfig) *Session {
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	inst := cfg.installer
	if inst == nil {
		inst = installer.New(nil, nil, installer.WithLogger(logger))
	}

	s := &Session{
		interp:    interp,
		registry:  hostfunc.NewRegistry(),
		files:     hostfunc.NewFiles(),
		installer: inst,
		logger:    logger,
		timeout:   cfg.timeout,
	}
	s.registerHostFunctions(cfg)
	return s
}

func (s *Session) registerHostFunctions(cfg sessionConfig) {
	s.registry.Register("time_now", func(ctx context.Context, args map[string]any) (any, error) {
		return float64(time.Now().UnixNano()) / 1e9, nil
	})
	s.registry.Register("save_file", s.files.Save)
	s.registry.Register("create_document", s.files.CreateDocument)

	if cfg.pkg.Enabled {
		pkg := cfg.pkg
		pkg.Install = func(ctx context.Context, name string) error {
			ch := s.installer.Secondary()
			if ch == nil {
				return installer.ErrChannelUnavailable
			}
			return ch.Install(ctx, name)
		}
		s.registry.Register("install_pkg", hostfunc.NewPkgInstaller(pkg))
	}

	for name, fn := range cfg.hostFuncs {
		s.registry.Register(name, fn)
	}
}

// Initialize starts the interpreter. It runs once; later calls return the
// first outcome without retrying.
func (s *Session) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		if s.isClosed() {
			s.initErr = ErrSessionClosed
			s.fail(s.initErr)
			return
		}

		s.state.Store(int32(StateInitializing))
		start := time.Now()

		if err := s.interp.Start(ctx, s.registry); err != nil {
			s.logger.Error("session initialization failed", "error", err)
			s.initErr = err
			s.fail(err)
			return
		}

		s.state.Store(int32(StateReady))
		s.logger.Info("session ready", "duration", time.Since(start))
	})
	return s.initErr
}

// Execute runs source in the session. Packages the source imports are
// installed first; install failures are reported in Result.Packages and do
// not stop the run. Only one Execute may be in flight; a concurrent call
// gets ErrSessionBusy.
func (s *Session) Execute(ctx context.Context, source string) Result {
	start := time.Now()
	failed := func(err error) Result {
		return Result{Error: err, Duration: time.Since(start)}
	}

	if s.isClosed() {
		return failed(ErrSessionClosed)
	}
	if s.State() != StateReady {
		if err := s.Err(); err != nil {
			return failed(fmt.Errorf("%w: %w", ErrNotInitialized, err))
		}
		return failed(ErrNotInitialized)
	}
	if strings.TrimSpace(source) == "" {
		return failed(ErrEmptySource)
	}

	if !s.execMu.TryLock() {
		return failed(ErrSessionBusy)
	}
	defer s.execMu.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var report installer.Report
	if plan := resolver.Resolve(source); !plan.Empty() {
		s.logger.Debug("installing packages", "native", plan.Native, "secondary", plan.Secondary)
		report = s.installer.Install(ctx, plan)
	}

	capture := NewCapture()
	err := s.interp.Exec(ctx, source, capture)
	if errors.Is(err, ErrRuntimeExited) {
		s.logger.Error("interpreter exited", "error", err)
		s.fail(err)
	}

	return Result{
		Output:   capture.String(),
		Files:    s.files.Snapshot(),
		Packages: report,
		Duration: time.Since(start),
		Error:    err,
	}
}

// ListProducedFiles returns a copy of every file saved so far.
func (s *Session) ListProducedFiles() map[string][]byte {
	return s.files.Snapshot()
}

// Files returns the session's produced file set.
func (s *Session) Files() *hostfunc.Files {
	return s.files
}

// HostFunctions lists the functions executed code can call.
func (s *Session) HostFunctions() []string {
	return s.registry.List()
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Err returns why the session failed, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.state.Store(int32(StateFailed))
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.interp.Close()
}
