// Command download fetches the RustPython WASI binary (or any artifact) to
// a local path, skipping the fetch when the file already exists.
//
//	go run ./internal/tools/download <url> <output> [sha256]
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

func main() {
	if len(os.Args) != 3 && len(os.Args) != 4 {
		fmt.Fprintln(os.Stderr, "usage: download <url> <output> [sha256]")
		os.Exit(1)
	}

	url, output := os.Args[1], os.Args[2]
	var want string
	if len(os.Args) == 4 {
		want = strings.ToLower(os.Args[3])
	}

	if _, err := os.Stat(output); err == nil {
		return
	}

	if err := fetch(url, output, want); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// fetch downloads url to output via a temp file in the same directory, so a
// failed or mismatched download never leaves a partial binary behind.
func fetch(url, output, wantSum string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(output), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(f, h), resp.Body); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if got := hex.EncodeToString(h.Sum(nil)); wantSum != "" && got != wantSum {
		return fmt.Errorf("checksum mismatch: got %s, want %s", got, wantSum)
	}
	return os.Rename(f.Name(), output)
}
