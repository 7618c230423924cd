package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/caffeineduck/pyrunner/executor"
	"github.com/caffeineduck/pyrunner/installer"
	"github.com/caffeineduck/pyrunner/internal/config"
	pylog "github.com/caffeineduck/pyrunner/internal/log"
	"github.com/caffeineduck/pyrunner/language/python"
)

var rootCmd = &cobra.Command{
	Use:   "pyrunner [file]",
	Short: "Run Python in a WebAssembly interpreter",
	Long: `pyrunner - Run Python code in an embedded WebAssembly interpreter.

Packages the code imports (numpy, pandas, python-docx, ...) are installed
before it runs. Files the code saves with save_file() or
create_simple_document() can be written to a directory or downloaded from
the HTTP server.

Settings come from, in increasing priority: defaults, --config YAML file,
PYRUNNER_* environment variables (a .env file is loaded if present), flags.`,
	Args:              cobra.MaximumNArgs(1),
	PersistentPreRunE: loadConfig,
	Run:               runRun, // Default to run command behavior
	SilenceUsage:      true,
}

var (
	cfg    config.Config
	logger *slog.Logger
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.String("env-file", ".env", "Environment file loaded before reading PYRUNNER_* variables")
	pf.String("python-wasm", "", "RustPython WASI binary")
	pf.String("repo-dir", "", "Native package repository (directory with repodata.json)")
	pf.String("site-dir", "", "Directory packages are installed into (default: temporary)")
	pf.String("index-url", "", "PyPI JSON API root for the secondary channel")
	pf.Int("memory", 0, "Memory limit in MB (0 = runtime default)")
	pf.Bool("no-cache", false, "Disable compilation cache")
	pf.Duration("start-timeout", 0, "Interpreter startup timeout (0 = 30s default)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text, json")

	// Add run-specific flags to root (for default command)
	addRunFlags(rootCmd)
}

// loadConfig resolves cfg and logger for every command.
func loadConfig(cmd *cobra.Command, args []string) error {
	pf := cmd.Root().PersistentFlags()

	envFile, _ := pf.GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	path, _ := pf.GetString("config")
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	applyFlags(cmd, &loaded)
	cfg = loaded

	logger, err = pylog.New(cmd.ErrOrStderr(), pylog.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// applyFlags copies explicitly set flags over c.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("python-wasm", &c.PythonWasm)
	str("repo-dir", &c.RepoDir)
	str("site-dir", &c.SiteDir)
	str("index-url", &c.IndexURL)
	str("log-level", &c.LogLevel)
	str("log-format", &c.LogFormat)
	str("out", &c.OutputDir)
	str("listen", &c.Listen)

	if flags.Changed("memory") {
		c.MemoryLimitMB, _ = flags.GetInt("memory")
	}
	if flags.Changed("no-cache") {
		noCache, _ := flags.GetBool("no-cache")
		c.CompileCache = !noCache
	}
	if flags.Changed("start-timeout") {
		c.StartTimeout, _ = flags.GetDuration("start-timeout")
	}
	if flags.Changed("timeout") {
		c.SessionTimeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("allow-pkg-install") {
		c.AllowInstall, _ = flags.GetBool("allow-pkg-install")
	}
	if flags.Changed("allow-pkg") {
		c.AllowedPackages, _ = flags.GetStringSlice("allow-pkg")
		c.AllowInstall = true
	}
}

// engine bundles what a command needs to run code.
type engine struct {
	exec    *executor.Executor
	session *executor.Session
	siteDir string
	cleanup []func()
}

func (r *engine) Close() {
	for i := len(r.cleanup) - 1; i >= 0; i-- {
		r.cleanup[i]()
	}
}

// newEngine builds the executor and an uninitialized session from c. With
// precompile the interpreter is compiled before newEngine returns, so a
// missing or broken binary fails here.
func newEngine(c config.Config, precompile bool) (*engine, error) {
	rt := &engine{}

	siteDir := c.SiteDir
	if siteDir == "" {
		dir, err := os.MkdirTemp("", "pyrunner-site-*")
		if err != nil {
			return nil, fmt.Errorf("create site dir: %w", err)
		}
		siteDir = dir
		rt.cleanup = append(rt.cleanup, func() { os.RemoveAll(dir) })
	} else if err := os.MkdirAll(siteDir, 0o755); err != nil {
		return nil, fmt.Errorf("create site dir: %w", err)
	}
	rt.siteDir = siteDir

	lang := python.New()
	if c.PythonWasm != "" {
		lang = python.New(python.WithModulePath(c.PythonWasm))
	}

	execOpts := []executor.ExecutorOption{executor.WithExecutorLogger(logger)}
	if c.CompileCache {
		execOpts = append(execOpts, executor.WithDiskCache(c.CacheDir))
	}
	if pages := executor.MemoryLimitPages(c.MemoryLimitMB); pages > 0 {
		execOpts = append(execOpts, executor.WithMemoryLimit(pages))
	}
	if precompile {
		execOpts = append(execOpts, executor.WithPrecompile(lang))
	}

	exec, err := executor.New(execOpts...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.exec = exec
	rt.cleanup = append(rt.cleanup, func() { exec.Close() })

	sessionOpts := []executor.SessionOption{
		executor.WithLogger(logger),
		executor.WithSiteDir(siteDir),
		executor.WithInstaller(newInstaller(c, siteDir)),
		executor.WithSessionTimeout(c.SessionTimeout),
	}
	if c.StartTimeout > 0 {
		sessionOpts = append(sessionOpts, executor.WithStartTimeout(c.StartTimeout))
	}
	if c.AllowInstall {
		sessionOpts = append(sessionOpts, executor.WithPackageInstall(c.AllowedPackages...))
	}

	rt.session = exec.NewSession(lang, sessionOpts...)
	rt.cleanup = append(rt.cleanup, func() { rt.session.Close() })
	return rt, nil
}

// newInstaller wires the native repository (when configured) and the PyPI
// channel into siteDir.
func newInstaller(c config.Config, siteDir string) *installer.Installer {
	var native installer.Channel
	if c.RepoDir != "" {
		native = installer.NewNative(c.RepoDir, siteDir)
	}
	pip := installer.NewPip(installer.PipConfig{IndexURL: c.IndexURL, SiteDir: siteDir})
	return installer.New(native, pip, installer.WithLogger(logger))
}

// startEngine builds an engine and initializes its session.
func startEngine(ctx context.Context, precompile bool) (*engine, error) {
	rt, err := newEngine(cfg, precompile)
	if err != nil {
		return nil, err
	}
	if err := rt.session.Initialize(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
	okColor   = color.New(color.FgGreen)
	dimColor  = color.New(color.Faint)
)

func printError(w io.Writer, err error) {
	errColor.Fprint(w, "Error: ")
	fmt.Fprintln(w, err)
}

func fatal(cmd *cobra.Command, err error) {
	printError(cmd.ErrOrStderr(), err)
	os.Exit(1)
}
