package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathInvalid is returned for keys that are empty, absolute or escape
// the output directory.
var ErrPathInvalid = errors.New("invalid output path")

// Dir writes each export as a file below a root directory. Keys are
// slash-separated relative paths; intermediate directories are created.
type Dir struct {
	root  string
	permF os.FileMode
	permD os.FileMode
}

func NewDir(root string) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	return &Dir{root: root, permF: 0o644, permD: 0o755}, nil
}

func (d *Dir) Target() string { return "dir" }

// Path returns where key is written.
func (d *Dir) Path(key string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(key))
	if rel == "." || rel == "" || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", fmt.Errorf("%w: %q", ErrPathInvalid, key)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathInvalid, key)
	}
	return filepath.Join(d.root, rel), nil
}

// Write replaces the destination atomically: data goes to a temp file in
// the same directory which is then renamed over the target.
func (d *Dir) Write(ctx context.Context, req WriteRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := d.Path(req.Key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, d.permD); err != nil {
		return fmt.Errorf("create dir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, d.permF)

	if _, err := tmp.Write(req.Data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %q: %w", dest, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync %q: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %q: %w", dest, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename into %q: %w", dest, err)
	}
	return nil
}
