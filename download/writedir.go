package download

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrNameCollision is returned by WriteDir when two produced files reduce
// to the same name in the output directory.
var ErrNameCollision = errors.New("file name collision")

// WriteDir writes each file to dir, creating dir if needed. Names are
// reduced to their base so nothing lands outside dir. It returns the paths
// written, sorted. Names that collide after reduction are an error and
// nothing is written.
func WriteDir(dir string, files map[string][]byte) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	// Resolve every target first so a bad or colliding name writes nothing.
	bases := make(map[string]string, len(names))
	targets := make([]string, 0, len(names))
	for _, name := range names {
		base := filepath.Base(filepath.Clean("/" + name))
		if base == "/" || base == "." {
			return nil, fmt.Errorf("invalid file name %q", name)
		}
		if other, ok := bases[base]; ok {
			return nil, fmt.Errorf("%w: %q and %q both save as %s", ErrNameCollision, other, name, base)
		}
		bases[base] = name
		targets = append(targets, base)
	}

	written := make([]string, 0, len(names))
	for i, name := range names {
		p := filepath.Join(dir, targets[i])
		if err := os.WriteFile(p, files[name], 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, p)
	}
	return written, nil
}
