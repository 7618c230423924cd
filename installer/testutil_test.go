package installer

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeWheel writes a zip archive holding files to path.
func writeWheel(t *testing.T, path string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func joinPath(parts ...string) string {
	return filepath.Join(parts...)
}

// fakeChannel records installs and fails the packages listed in fail.
type fakeChannel struct {
	name  string
	fail  map[string]bool
	calls []string
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Install(ctx context.Context, pkg string) error {
	f.calls = append(f.calls, pkg)
	if f.fail[pkg] {
		return errors.New("boom: " + pkg)
	}
	return nil
}
