// Package localfs reads entity drop folders from a mounted filesystem.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// Source is a transport.Source over a billy filesystem.
type Source struct {
	fs billy.Filesystem
}

// NewSource wraps an existing billy filesystem.
func NewSource(fs billy.Filesystem) *Source {
	return &Source{fs: fs}
}

// NewOSSource roots a source at a directory on the host.
func NewOSSource(root string) *Source {
	return NewSource(osfs.New(root))
}

func (s *Source) Kind() string { return "local" }

// List returns the regular files directly under dir.
func (s *Source) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := s.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	entries := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		entries = append(entries, path.Join(dir, info.Name()))
	}
	return entries, nil
}

// Fetch copies remotePath out of the filesystem into localPath on the host.
func (s *Source) Fetch(ctx context.Context, remotePath, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := s.fs.Open(remotePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", remotePath, err)
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(localPath), err)
	}
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(localPath)
		return fmt.Errorf("failed to copy %s: %w", remotePath, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(localPath)
		return fmt.Errorf("failed to close %s: %w", localPath, err)
	}
	return nil
}

// Delete removes remotePath from the filesystem.
func (s *Source) Delete(ctx context.Context, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.Remove(remotePath); err != nil {
		return fmt.Errorf("failed to delete %s: %w", remotePath, err)
	}
	return nil
}
