// Package sandbox runs one piece of Python source in a throwaway session:
// initialize, execute, close.
package sandbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/caffeineduck/pyrunner/executor"
	"github.com/caffeineduck/pyrunner/installer"
	"github.com/caffeineduck/pyrunner/language/python"
)

type Config struct {
	Timeout   time.Duration        // 0 = none
	SiteDir   string               // mounted at /packages when set
	Installer *installer.Installer // nil fails every resolved package
	Logger    *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
	}
}

func (c Config) sessionOptions() []executor.SessionOption {
	opts := []executor.SessionOption{executor.WithSessionTimeout(c.Timeout)}
	if c.SiteDir != "" {
		opts = append(opts, executor.WithSiteDir(c.SiteDir))
	}
	if c.Installer != nil {
		opts = append(opts, executor.WithInstaller(c.Installer))
	}
	if c.Logger != nil {
		opts = append(opts, executor.WithLogger(c.Logger))
	}
	return opts
}

// Run executes code with a fresh Python interpreter from lang.
func Run(ctx context.Context, lang *python.Python, code string, cfg Config) executor.Result {
	start := time.Now()

	exec, err := executor.New()
	if err != nil {
		return executor.Result{Error: err, Duration: time.Since(start)}
	}
	defer exec.Close()

	session := exec.NewSession(lang, cfg.sessionOptions()...)
	return runSession(ctx, session, code, start)
}

// RunWith executes code on interp, which must not have been started.
func RunWith(ctx context.Context, interp executor.Interpreter, code string, cfg Config) executor.Result {
	return runSession(ctx, executor.NewSession(interp, cfg.sessionOptions()...), code, time.Now())
}

func runSession(ctx context.Context, session *executor.Session, code string, start time.Time) executor.Result {
	defer session.Close()

	if err := session.Initialize(ctx); err != nil {
		return executor.Result{Error: err, Duration: time.Since(start)}
	}

	result := session.Execute(ctx, code)
	result.Duration = time.Since(start)
	return result
}

// RunPython runs code with the interpreter named by PYRUNNER_PYTHON_WASM.
func RunPython(code string, cfg Config) executor.Result {
	return Run(context.Background(), python.New(), code, cfg)
}
