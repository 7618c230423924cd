package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// RepodataFile is the lock file at the root of a native package repository.
const RepodataFile = "repodata.json"

// RepoPackage describes one entry of a native package repository.
type RepoPackage struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	FileName string   `json:"file_name"`
	Depends  []string `json:"depends,omitempty"`
}

type repodata struct {
	Packages map[string]RepoPackage `json:"packages"`
}

// Native loads prebuilt packages from a local repository directory, the
// runtime's own package channel. Dependencies listed in the repository are
// loaded first; packages already loaded into the site dir are skipped.
type Native struct {
	repoDir string
	siteDir string

	mu       sync.Mutex
	packages map[string]RepoPackage
	loaded   map[string]bool
	loadErr  error
	indexed  bool
}

func NewNative(repoDir, siteDir string) *Native {
	return &Native{
		repoDir: repoDir,
		siteDir: siteDir,
		loaded:  make(map[string]bool),
	}
}

func (n *Native) Name() string {
	return "native"
}

// Install loads pkg and its dependencies.
func (n *Native) Install(ctx context.Context, pkg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.index(); err != nil {
		return err
	}
	return n.load(ctx, normalizeName(pkg), nil)
}

// Loaded returns the names of the packages loaded so far.
func (n *Native) Loaded() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	names := make([]string, 0, len(n.loaded))
	for name := range n.loaded {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Available lists the packages in the repository.
func (n *Native) Available() ([]RepoPackage, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.index(); err != nil {
		return nil, err
	}
	out := make([]RepoPackage, 0, len(n.packages))
	for _, p := range n.packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (n *Native) index() error {
	if n.indexed {
		return n.loadErr
	}
	n.indexed = true

	if n.repoDir == "" {
		n.loadErr = fmt.Errorf("%w: no package repository configured", ErrChannelUnavailable)
		return n.loadErr
	}

	data, err := os.ReadFile(filepath.Join(n.repoDir, RepodataFile))
	if err != nil {
		n.loadErr = errors.Wrap(err, "read package repository")
		return n.loadErr
	}

	var rd repodata
	if err := json.Unmarshal(data, &rd); err != nil {
		n.loadErr = errors.Wrap(err, "parse "+RepodataFile)
		return n.loadErr
	}

	n.packages = make(map[string]RepoPackage, len(rd.Packages))
	for key, p := range rd.Packages {
		if p.Name == "" {
			p.Name = key
		}
		n.packages[normalizeName(key)] = p
	}
	return nil
}

func (n *Native) load(ctx context.Context, name string, chain []string) error {
	if n.loaded[name] {
		return nil
	}
	for _, c := range chain {
		if c == name {
			return fmt.Errorf("dependency cycle: %s", strings.Join(append(chain, name), " -> "))
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p, ok := n.packages[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPackage, name)
	}

	for _, dep := range p.Depends {
		if err := n.load(ctx, normalizeName(dep), append(chain, name)); err != nil {
			return fmt.Errorf("load %s dependency: %w", name, err)
		}
	}

	if err := os.MkdirAll(n.siteDir, 0755); err != nil {
		return errors.Wrap(err, "create site dir")
	}
	if err := extractWheel(filepath.Join(n.repoDir, p.FileName), n.siteDir, false); err != nil {
		return err
	}

	n.loaded[name] = true
	return nil
}

// normalizeName folds a distribution name per PEP 503.
func normalizeName(name string) string {
	name = strings.ToLower(name)
	return strings.NewReplacer("_", "-", ".", "-").Replace(name)
}
