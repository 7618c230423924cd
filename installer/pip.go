package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// DefaultIndexURL is the PyPI JSON API root.
const DefaultIndexURL = "https://pypi.org/pypi"

const defaultMetadataCacheSize = 256

// Packages that won't work in WASM (require C extensions, sockets, etc.)
var blockedPackages = map[string]string{
	// C extensions
	"numpy":         "requires C extensions",
	"pandas":        "requires C extensions (numpy)",
	"scipy":         "requires C extensions",
	"tensorflow":    "requires C extensions",
	"torch":         "requires C extensions",
	"scikit-learn":  "requires C extensions",
	"matplotlib":    "requires C extensions",
	"pillow":        "requires C extensions",
	"opencv-python": "requires C extensions",
	"psycopg2":      "requires C extensions",
	"cryptography":  "requires C extensions",
	"lxml":          "requires C extensions",
	"grpcio":        "requires C extensions",
	// Socket-based servers
	"flask":    "requires sockets (web framework not supported)",
	"django":   "requires sockets (web framework not supported)",
	"fastapi":  "requires sockets (web framework not supported)",
	"uvicorn":  "requires sockets (ASGI server not supported)",
	"gunicorn": "requires sockets (WSGI server not supported)",
}

type pypiURL struct {
	PackageType string `json:"packagetype"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
}

type pypiResponse struct {
	Info struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"info"`
	Urls []pypiURL `json:"urls"`
}

// PipConfig configures the Pip channel.
type PipConfig struct {
	IndexURL string       // JSON API root, DefaultIndexURL when empty
	SiteDir  string       // Directory packages are extracted into
	Client   *http.Client // Defaults to a client with a 60s timeout
}

// Pip installs pure-Python wheels from a PyPI-compatible JSON index: the
// secondary channel. The channel bootstraps itself on first use; if that
// fails, every install through it fails.
type Pip struct {
	cfg   PipConfig
	cache *lru.Cache[string, pypiResponse]

	bootOnce sync.Once
	bootErr  error

	mu        sync.Mutex
	installed map[string]string
}

func NewPip(cfg PipConfig) *Pip {
	if cfg.IndexURL == "" {
		cfg.IndexURL = DefaultIndexURL
	}
	cfg.IndexURL = strings.TrimRight(cfg.IndexURL, "/")
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 60 * time.Second}
	}
	cache, _ := lru.New[string, pypiResponse](defaultMetadataCacheSize)
	return &Pip{
		cfg:       cfg,
		cache:     cache,
		installed: make(map[string]string),
	}
}

func (p *Pip) Name() string {
	return "pip"
}

func (p *Pip) bootstrap() error {
	p.bootOnce.Do(func() {
		if p.cfg.SiteDir == "" {
			p.bootErr = fmt.Errorf("%w: no site dir configured", ErrChannelUnavailable)
			return
		}
		if !strings.HasPrefix(p.cfg.IndexURL, "http://") && !strings.HasPrefix(p.cfg.IndexURL, "https://") {
			p.bootErr = fmt.Errorf("%w: invalid index url %q", ErrChannelUnavailable, p.cfg.IndexURL)
			return
		}
		if err := os.MkdirAll(p.cfg.SiteDir, 0755); err != nil {
			p.bootErr = errors.Wrap(err, "create site dir")
		}
	})
	return p.bootErr
}

// Install fetches the latest pure wheel for spec and extracts it.
// Version specifiers (e.g. "requests>=2") are accepted and ignored.
func (p *Pip) Install(ctx context.Context, spec string) error {
	if err := p.bootstrap(); err != nil {
		return err
	}

	name := ParsePackageSpec(spec)
	key := normalizeName(name)

	if reason, blocked := blockedPackages[key]; blocked {
		return fmt.Errorf("%w: %s %s", ErrUnsupported, name, reason)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.installed[key]; ok {
		return nil
	}

	release, err := p.metadata(ctx, name)
	if err != nil {
		return err
	}

	wheelURL := findWheel(release.Urls)
	if wheelURL == "" {
		return ErrNoWheel
	}

	tmpPath, err := p.download(ctx, wheelURL)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	if err := extractWheel(tmpPath, p.cfg.SiteDir, true); err != nil {
		return err
	}

	p.installed[key] = release.Info.Version
	return nil
}

// Installed returns installed package names mapped to their versions.
func (p *Pip) Installed() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.installed))
	for k, v := range p.installed {
		out[k] = v
	}
	return out
}

func (p *Pip) metadata(ctx context.Context, name string) (pypiResponse, error) {
	key := normalizeName(name)
	if cached, ok := p.cache.Get(key); ok {
		return cached, nil
	}

	url := fmt.Sprintf("%s/%s/json", p.cfg.IndexURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return pypiResponse{}, errors.Wrap(err, "build index request")
	}

	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		return pypiResponse{}, errors.Wrap(err, "fetch package info")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return pypiResponse{}, fmt.Errorf("%w: %s not found on index", ErrUnknownPackage, name)
	}
	if resp.StatusCode != http.StatusOK {
		return pypiResponse{}, fmt.Errorf("index returned status %d", resp.StatusCode)
	}

	var release pypiResponse
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return pypiResponse{}, errors.Wrap(err, "parse index response")
	}

	p.cache.Add(key, release)
	return release, nil
}

func (p *Pip) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "build download request")
	}

	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "download wheel")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wheel download returned status %d", resp.StatusCode)
	}

	tmpFile, err := os.CreateTemp("", "pyrunner-*.whl")
	if err != nil {
		return "", errors.Wrap(err, "create temp file")
	}

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return "", errors.Wrap(err, "download wheel")
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpFile.Name())
		return "", errors.Wrap(err, "close temp file")
	}
	return tmpFile.Name(), nil
}

// ParsePackageSpec strips a version specifier: "requests>=2.32" -> "requests".
func ParsePackageSpec(spec string) string {
	for _, op := range []string{">=", "<=", "==", "~=", "!=", "<", ">"} {
		if idx := strings.Index(spec, op); idx != -1 {
			spec = spec[:idx]
		}
	}
	if idx := strings.Index(spec, "["); idx != -1 {
		spec = spec[:idx]
	}
	return strings.TrimSpace(spec)
}

func findWheel(urls []pypiURL) string {
	// Only pure Python wheels work in WASM.
	for _, u := range urls {
		if u.PackageType != "bdist_wheel" {
			continue
		}

		filename := strings.ToLower(u.Filename)
		if strings.Contains(filename, "-py3-none-any") || strings.Contains(filename, "-py2.py3-none-any") {
			return u.URL
		}
	}
	return ""
}
