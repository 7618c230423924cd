// Package config loads pyrunner settings. Later sources override earlier
// ones: built-in defaults, a YAML file, PYRUNNER_* environment variables
// (optionally seeded from a .env file), then command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/caffeineduck/pyrunner/installer"
)

const EnvPrefix = "PYRUNNER_"

type Config struct {
	PythonWasm string `yaml:"python_wasm"` // RustPython WASI binary
	RepoDir    string `yaml:"repo_dir"`    // native package repository (repodata.json + wheels)
	SiteDir    string `yaml:"site_dir"`    // where packages are installed; temp dir when empty
	IndexURL   string `yaml:"index_url"`   // PyPI JSON API root

	MemoryLimitMB int    `yaml:"memory_limit_mb"`
	CompileCache  bool   `yaml:"compile_cache"`
	CacheDir      string `yaml:"cache_dir"`

	SessionTimeout  time.Duration `yaml:"session_timeout"`
	StartTimeout    time.Duration `yaml:"start_timeout"` // interpreter boot; 0 = executor default
	AllowInstall    bool          `yaml:"allow_install"`
	AllowedPackages []string      `yaml:"allowed_packages"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Listen    string `yaml:"listen"`
	OutputDir string `yaml:"output_dir"`
}

func Default() Config {
	return Config{
		IndexURL:     installer.DefaultIndexURL,
		CompileCache: true,
		LogLevel:     "info",
		LogFormat:    "text",
		Listen:       ":8080",
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped
// when path is empty) and then the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables already set. Missing files are
// skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from PYRUNNER_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		return lookup(EnvPrefix + key)
	}

	strs := map[string]*string{
		"PYTHON_WASM": &c.PythonWasm,
		"REPO_DIR":    &c.RepoDir,
		"SITE_DIR":    &c.SiteDir,
		"INDEX_URL":   &c.IndexURL,
		"CACHE_DIR":   &c.CacheDir,
		"LOG_LEVEL":   &c.LogLevel,
		"LOG_FORMAT":  &c.LogFormat,
		"LISTEN":      &c.Listen,
		"OUTPUT_DIR":  &c.OutputDir,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"COMPILE_CACHE": &c.CompileCache,
		"ALLOW_INSTALL": &c.AllowInstall,
	}
	for key, dst := range bools {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}

	if v, ok := get("MEMORY_LIMIT_MB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMEMORY_LIMIT_MB: %w", EnvPrefix, err)
		}
		c.MemoryLimitMB = n
	}
	if v, ok := get("SESSION_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSESSION_TIMEOUT: %w", EnvPrefix, err)
		}
		c.SessionTimeout = d
	}
	if v, ok := get("START_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSTART_TIMEOUT: %w", EnvPrefix, err)
		}
		c.StartTimeout = d
	}
	if v, ok := get("ALLOWED_PACKAGES"); ok {
		c.AllowedPackages = splitList(v)
	}
	return nil
}

func (c Config) Validate() error {
	if c.MemoryLimitMB < 0 {
		return fmt.Errorf("memory_limit_mb must not be negative")
	}
	if c.SessionTimeout < 0 {
		return fmt.Errorf("session_timeout must not be negative")
	}
	if c.StartTimeout < 0 {
		return fmt.Errorf("start_timeout must not be negative")
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
