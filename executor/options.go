package executor

import (
	"log/slog"
	"time"

	"github.com/caffeineduck/pyrunner/hostfunc"
	"github.com/caffeineduck/pyrunner/installer"
)

const defaultStartTimeout = 30 * time.Second

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	installer    *installer.Installer
	logger       *slog.Logger
	timeout      time.Duration // per Execute, 0 = none
	startTimeout time.Duration
	siteDir      string
	pkg          hostfunc.PkgConfig
	hostFuncs    map[string]hostfunc.Func
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		startTimeout: defaultStartTimeout,
		pkg:          hostfunc.DefaultPkgConfig(),
		hostFuncs:    make(map[string]hostfunc.Func),
	}
}

// WithInstaller sets the installer used for the packages a source imports.
// Without it every resolved package fails to install and is skipped.
func WithInstaller(i *installer.Installer) SessionOption {
	return func(c *sessionConfig) {
		c.installer = i
	}
}

func WithLogger(l *slog.Logger) SessionOption {
	return func(c *sessionConfig) {
		c.logger = l
	}
}

// WithSessionTimeout bounds each Execute call. When it fires during a run
// the interpreter is torn down and the session fails.
func WithSessionTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.timeout = d
	}
}

// WithStartTimeout bounds interpreter startup in Initialize.
func WithStartTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.startTimeout = d
	}
}

// WithSiteDir mounts dir read-only at /packages and puts it on PYTHONPATH.
// Installers should write into the same directory.
func WithSiteDir(dir string) SessionOption {
	return func(c *sessionConfig) {
		c.siteDir = dir
	}
}

// WithPackageInstall exposes install_pkg to running code. Requests go
// through the installer's secondary channel. If allowed is non-empty only
// those packages may be requested.
func WithPackageInstall(allowed ...string) SessionOption {
	return func(c *sessionConfig) {
		c.pkg.Enabled = true
		c.pkg.AllowedPackages = allowed
	}
}

// WithHostFunc registers an extra host function.
func WithHostFunc(name string, fn hostfunc.Func) SessionOption {
	return func(c *sessionConfig) {
		c.hostFuncs[name] = fn
	}
}

// ExecutorOption configures the Executor at creation time.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	diskCache        bool
	cacheDir         string
	precompile       []Language // Languages to precompile at startup
	memoryLimitPages uint32     // Max memory pages (each page = 64KB), 0 = default (4GB)
	logger           *slog.Logger
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		memoryLimitPages: 0, // 0 means use wazero default (65536 pages = 4GB)
	}
}

// WithDiskCache enables persistent compilation cache for faster CLI startup.
// Optionally provide a custom directory; otherwise uses ~/.cache/pyrunner or XDG_CACHE_HOME/pyrunner.
//
// Examples:
//
//	executor.New(executor.WithDiskCache())            // default dir
//	executor.New(executor.WithDiskCache("/tmp/cache")) // custom dir
func WithDiskCache(dir ...string) ExecutorOption {
	return func(c *executorConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithPrecompile compiles the specified languages at Executor creation time.
// This moves the compilation cost to startup rather than first execution.
func WithPrecompile(langs ...Language) ExecutorOption {
	return func(c *executorConfig) {
		c.precompile = langs
	}
}

// WithMemoryLimit sets the maximum memory available to WASM modules.
// Each page is 64KB. Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) ExecutorOption {
	return func(c *executorConfig) {
		c.memoryLimitPages = pages
	}
}

// WithExecutorLogger sets the logger for compilation and session events.
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(c *executorConfig) {
		c.logger = l
	}
}

// MemoryLimitPages converts a size in megabytes to 64KB wasm pages; 0 or
// less means no limit.
func MemoryLimitPages(mb int) uint32 {
	if mb <= 0 {
		return 0
	}
	return uint32(mb) * 16
}
