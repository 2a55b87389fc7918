package wal_manager

import (
	"fmt"
	"os"
	"path/filepath"
)

/*
This file contains the actual internal operations of one log-group
segment.

The two important functions:

WALSegment.Append — lowest level. Just writes raw bytes to the file and
tracks size. Returns bytes written. No fsync — data is in OS buffer, not
guaranteed durable.

WALSegment.Sync — calls File.Sync() which forces OS buffer → disk.
After this, data is durable even if the process crashes.
*/

// InitializeWALSegment builds (but does not open) the segment backing one
// log group.
func InitializeWALSegment(groupId uint32, basePath string) *WALSegment {
	fileName := fmt.Sprintf("walgroup_%08x.log", groupId)
	filePath := filepath.Join(basePath, fileName)

	return &WALSegment{
		GroupId:  groupId,
		FilePath: filePath,
	}
}

// Open opens the segment file in append-only mode.
func (ws *WALSegment) Open() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.File != nil {
		return nil
	}

	// O_APPEND ensures atomic appends at the OS level
	file, err := os.OpenFile(ws.FilePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}

	ws.File = file
	ws.Size = stat.Size()
	return nil
}

// Append writes raw bytes to the file and tracks size.
// Returns bytes written. No fsync — data is in OS buffer, not guaranteed durable.
func (ws *WALSegment) Append(data []byte) (int, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.File == nil {
		return 0, fmt.Errorf("log group %d: segment not opened", ws.GroupId)
	}

	n, err := ws.File.Write(data)
	if err != nil {
		return 0, err
	}

	ws.Size += int64(n)
	return n, nil // return bytes written, not offset
}

// Sync forces the OS buffer to disk. After this, data is durable even if
// the process crashes.
func (ws *WALSegment) Sync() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.File == nil {
		return fmt.Errorf("log group %d: segment not opened", ws.GroupId)
	}

	return ws.File.Sync()
}

// Close closes the segment file.
func (ws *WALSegment) Close() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.File != nil {
		err := ws.File.Close()
		ws.File = nil
		return err
	}
	return nil
}

// IsFull reports whether the segment has reached the group size limit.
func (ws *WALSegment) IsFull(groupSize int64) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.Size >= groupSize
}

// truncateAndReopen discards the segment's content so the log group can
// accept new records from offset zero. Called only by AsyncReset, off the
// caller's goroutine.
func (ws *WALSegment) truncateAndReopen() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.File != nil {
		ws.File.Close()
		ws.File = nil
	}

	file, err := os.OpenFile(ws.FilePath, os.O_CREATE|os.O_RDWR|os.O_TRUNC|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("log group %d: reopen after reset: %w", ws.GroupId, err)
	}

	ws.File = file
	ws.Size = 0
	return nil
}
