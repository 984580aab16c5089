// Package ftp reads entity drop folders from an FTP server.
package ftp

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
)

// Config holds the FTP connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Timeout  time.Duration
}

func (c Config) addr() string {
	port := c.Port
	if port == 0 {
		port = 21
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// Source is a transport.Source over FTP. Every operation dials its own control
// connection and quits it before returning.
type Source struct {
	cfg Config
}

// NewSource creates an FTP source.
func NewSource(cfg Config) *Source {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Source{cfg: cfg}
}

func (s *Source) Kind() string { return "ftp" }

func (s *Source) connect(ctx context.Context) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(s.cfg.addr(), ftp.DialWithContext(ctx), ftp.DialWithTimeout(s.cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to dial ftp %s: %w", s.cfg.addr(), err)
	}
	if err := conn.Login(s.cfg.User, s.cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("failed to log in to ftp %s: %w", s.cfg.addr(), err)
	}
	return conn, nil
}

// List returns full remote paths for the entries under dir.
func (s *Source) List(ctx context.Context, dir string) ([]string, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Quit() }()

	names, err := conn.NameList(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	entries := make([]string, 0, len(names))
	for _, name := range names {
		if !path.IsAbs(name) {
			name = path.Join(dir, name)
		}
		entries = append(entries, name)
	}
	return entries, nil
}

// Fetch downloads remotePath into localPath. A partial download is removed.
func (s *Source) Fetch(ctx context.Context, remotePath, localPath string) error {
	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Quit() }()

	resp, err := conn.Retr(remotePath)
	if err != nil {
		return fmt.Errorf("failed to retrieve %s: %w", remotePath, err)
	}
	defer func() { _ = resp.Close() }()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(localPath), err)
	}
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	if _, err := io.Copy(out, resp); err != nil {
		_ = out.Close()
		_ = os.Remove(localPath)
		return fmt.Errorf("failed to download %s: %w", remotePath, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(localPath)
		return fmt.Errorf("failed to close %s: %w", localPath, err)
	}
	return nil
}

// Delete removes remotePath from the server.
func (s *Source) Delete(ctx context.Context, remotePath string) error {
	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Quit() }()

	if err := conn.Delete(remotePath); err != nil {
		return fmt.Errorf("failed to delete %s: %w", remotePath, err)
	}
	return nil
}
