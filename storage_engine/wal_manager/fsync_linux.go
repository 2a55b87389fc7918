//go:build linux

package wal_manager

import (
	"golang.org/x/sys/unix"
)

// durableSync flushes a reset log-group region to disk. Fdatasync skips
// the inode-metadata flush fsync would force, which matters here since a
// reset only changes file content, not size or permissions.
func durableSync(f syncer) error {
	return unix.Fdatasync(int(f.Fd()))
}
