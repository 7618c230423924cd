package installer

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// extractWheel unpacks a wheel into destDir. With pureOnly set, wheels that
// carry compiled extensions are rejected before anything is written.
func extractWheel(wheelPath, destDir string, pureOnly bool) error {
	r, err := zip.OpenReader(wheelPath)
	if err != nil {
		return errors.Wrapf(err, "open wheel %s", filepath.Base(wheelPath))
	}
	defer r.Close()

	if pureOnly {
		for _, f := range r.File {
			name := strings.ToLower(f.Name)
			if strings.HasSuffix(name, ".so") || strings.HasSuffix(name, ".pyd") || strings.HasSuffix(name, ".dylib") {
				return fmt.Errorf("%w: contains C extension %s", ErrUnsupported, filepath.Base(f.Name))
			}
		}
	}

	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return errors.Wrap(err, "resolve site dir")
	}

	for _, f := range r.File {
		if strings.Contains(f.Name, ".dist-info/") {
			continue
		}

		destPath := filepath.Join(absDest, f.Name)
		if destPath != absDest && !strings.HasPrefix(destPath, absDest+string(os.PathSeparator)) {
			return fmt.Errorf("wheel entry escapes site dir: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0755); err != nil {
				return errors.Wrap(err, "create dir")
			}
			continue
		}

		if err := extractFile(f, destPath); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(f *zip.File, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return errors.Wrap(err, "create dir")
	}

	rc, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "open %s", f.Name)
	}
	defer rc.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return errors.Wrapf(err, "create %s", f.Name)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return errors.Wrapf(err, "write %s", f.Name)
	}
	return nil
}
