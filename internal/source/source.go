// Package source loads robot description files and fingerprints their
// content, so repeated comparisons of unchanged inputs can be skipped.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robometric/robotdiff/internal/checksum"
)

// Document is one loaded robot description file.
type Document struct {
	Path     string
	Data     []byte
	Checksum string
}

// Load reads the file at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", path, err)
	}
	return &Document{Path: path, Data: data, Checksum: checksum.Sum(data)}, nil
}

// Dir confines loads to a root directory. The HTTP surface resolves
// client-supplied relative paths through it so requests cannot escape
// the configured model directory.
type Dir struct {
	root string
}

// NewDir creates a Dir rooted at the given directory, which must exist.
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("source: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("source: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source: root is not a directory: %s", abs)
	}
	return &Dir{root: abs}, nil
}

// Load reads a file given by a path relative to the root.
func (d *Dir) Load(rel string) (*Document, error) {
	abs, err := d.safePath(rel)
	if err != nil {
		return nil, err
	}
	return Load(abs)
}

// safePath resolves rel against the root and rejects any result that
// escapes it (directory traversal).
func (d *Dir) safePath(rel string) (string, error) {
	cleaned := filepath.Clean(rel)
	if cleaned == "" || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("source: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(d.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("source: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, d.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("source: path escapes model root: %s", rel)
	}
	return abs, nil
}
