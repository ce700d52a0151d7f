package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FS writes objects as files under a store root, mapping key separators
// to directories. Writes go through a temp file and rename, so a
// metadata document rewritten at close replaces its predecessor
// atomically and a crashed write never leaves a torn object.
type FS struct {
	root string
}

// NewFS creates the store root (and parents) and returns a filesystem
// sink rooted there.
func NewFS(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &FS{root: root}, nil
}

// Root returns the store root directory.
func (f *FS) Root() string { return f.root }

func (f *FS) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(f.root, filepath.FromSlash(key))
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

func (f *FS) Close() error { return nil }

var _ Sink = (*FS)(nil)
