// Package transport defines the remote drop source and the partitioned destination the
// transfer pipeline moves files between.
package transport

import "context"

// Source is the remote drop location files are discovered in, retrieved from and
// finally deleted from.
type Source interface {
	// Kind names the transport in audit status tags, e.g. "ftp".
	Kind() string
	// List returns the entries found directly under dir.
	List(ctx context.Context, dir string) ([]string, error)
	// Fetch copies remotePath to localPath without removing the remote copy.
	Fetch(ctx context.Context, remotePath, localPath string) error
	// Delete removes remotePath from the source.
	Delete(ctx context.Context, remotePath string) error
}

// Destination is the partitioned store sanitized files are published to.
type Destination interface {
	// Kind names the transport in audit status tags, e.g. "hdfs".
	Kind() string
	// Publish transmits localPath to destinationPath. With overwrite set an existing
	// object at destinationPath is replaced.
	Publish(ctx context.Context, localPath, destinationPath string, overwrite bool) error
}
