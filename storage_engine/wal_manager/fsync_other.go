//go:build !linux

package wal_manager

// durableSync flushes a reset log-group region to disk. Platforms without
// Fdatasync fall back to a full Sync.
func durableSync(f syncer) error {
	return f.Sync()
}
