package installer

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T, pkgs map[string]RepoPackage) string {
	t.Helper()
	repo := t.TempDir()

	for _, p := range pkgs {
		files := make(map[string]string)
		files[p.Name+"/__init__.py"] = "VERSION = '" + p.Version + "'\n"
		files[p.Name+"-"+p.Version+".dist-info/METADATA"] = "Name: " + p.Name
		writeWheel(t, joinPath(repo, p.FileName), files)
	}

	data, err := json.Marshal(repodata{Packages: pkgs})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(joinPath(repo, RepodataFile), data, 0644))
	return repo
}

func TestNativeInstallWithDependencies(t *testing.T) {
	repo := newTestRepo(t, map[string]RepoPackage{
		"pandas": {Name: "pandas", Version: "2.1.0", FileName: "pandas-2.1.0-wasi.whl", Depends: []string{"numpy", "pytz"}},
		"numpy":  {Name: "numpy", Version: "1.26.0", FileName: "numpy-1.26.0-wasi.whl"},
		"pytz":   {Name: "pytz", Version: "2024.1", FileName: "pytz-2024.1-py3-none-any.whl"},
	})
	site := t.TempDir()

	n := NewNative(repo, site)
	require.NoError(t, n.Install(context.Background(), "pandas"))

	assert.Equal(t, []string{"numpy", "pandas", "pytz"}, n.Loaded())
	assert.Equal(t, "VERSION = '2.1.0'\n", readFile(t, joinPath(site, "pandas", "__init__.py")))
	assert.True(t, fileExists(joinPath(site, "numpy", "__init__.py")))
	assert.False(t, fileExists(joinPath(site, "pandas-2.1.0.dist-info")))
}

func TestNativeInstallSkipsLoaded(t *testing.T) {
	repo := newTestRepo(t, map[string]RepoPackage{
		"numpy": {Name: "numpy", Version: "1.26.0", FileName: "numpy-1.26.0-wasi.whl"},
	})
	site := t.TempDir()
	n := NewNative(repo, site)
	require.NoError(t, n.Install(context.Background(), "numpy"))

	// A second install must not touch the repository again.
	require.NoError(t, os.Remove(joinPath(repo, "numpy-1.26.0-wasi.whl")))
	require.NoError(t, n.Install(context.Background(), "numpy"))
}

func TestNativeUnknownPackage(t *testing.T) {
	repo := newTestRepo(t, map[string]RepoPackage{})
	n := NewNative(repo, t.TempDir())

	err := n.Install(context.Background(), "sympy")
	assert.ErrorIs(t, err, ErrUnknownPackage)
}

func TestNativeMissingDependency(t *testing.T) {
	repo := newTestRepo(t, map[string]RepoPackage{
		"networkx": {Name: "networkx", Version: "3.2", FileName: "networkx-3.2.whl", Depends: []string{"scipy"}},
	})
	n := NewNative(repo, t.TempDir())

	err := n.Install(context.Background(), "networkx")
	assert.ErrorIs(t, err, ErrUnknownPackage)
	assert.Empty(t, n.Loaded())
}

func TestNativeDependencyCycle(t *testing.T) {
	repo := newTestRepo(t, map[string]RepoPackage{
		"a": {Name: "a", Version: "1", FileName: "a-1.whl", Depends: []string{"b"}},
		"b": {Name: "b", Version: "1", FileName: "b-1.whl", Depends: []string{"a"}},
	})
	n := NewNative(repo, t.TempDir())

	err := n.Install(context.Background(), "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle")
}

func TestNativeNoRepository(t *testing.T) {
	n := NewNative("", t.TempDir())
	err := n.Install(context.Background(), "numpy")
	assert.ErrorIs(t, err, ErrChannelUnavailable)
}

func TestNativeNormalizesNames(t *testing.T) {
	repo := newTestRepo(t, map[string]RepoPackage{
		"scikit-learn": {Name: "scikit_learn", Version: "1.3", FileName: "scikit_learn-1.3.whl"},
	})
	n := NewNative(repo, t.TempDir())

	require.NoError(t, n.Install(context.Background(), "Scikit_Learn"))
	assert.Equal(t, []string{"scikit-learn"}, n.Loaded())
}

func TestNativeAvailable(t *testing.T) {
	repo := newTestRepo(t, map[string]RepoPackage{
		"numpy": {Name: "numpy", Version: "1.26.0", FileName: "numpy.whl"},
		"lxml":  {Name: "lxml", Version: "5.1", FileName: "lxml.whl"},
	})
	n := NewNative(repo, t.TempDir())

	pkgs, err := n.Available()
	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	assert.Equal(t, "lxml", pkgs[0].Name)
	assert.Equal(t, "numpy", pkgs[1].Name)
}
