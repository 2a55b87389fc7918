package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

/*
CheckpointManager backs the C3b allocator context manager: it is the one
place that actually touches disk for the allocator's own bookkeeping, a
single JSON record naming the highest LSN the allocator has durably
applied. A checkpoint's flush-context phase calls SaveCheckpoint once
the group's map pages are themselves durable, so that an allocator
restarting after a crash knows how far its own state already advanced —
independent of whatever the log-buffer ring or the map pages record.
*/

func NewCheckpointManager(dbPath string, logger logrus.FieldLogger) (*CheckpointManager, error) {
	return &CheckpointManager{
		checkpointPath: filepath.Join(dbPath, "checkpoint.json"),
		logger:         logger,
	}, nil
}

// SaveCheckpoint atomically saves a checkpoint
func (cm *CheckpointManager) SaveCheckpoint(lsn uint64, database string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	checkpoint := Checkpoint{
		LSN:       lsn,
		Timestamp: getCurrentTimestamp(),
		Database:  database,
	}

	// Serialize to JSON
	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	// ====================================================================
	// CRITICAL: Atomic write pattern to prevent corruption
	// Write to temporary file
	// Sync temp file to disk (fsync)
	// Atomically rename temp to actual file
	// ====================================================================

	tempPath := cm.checkpointPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp checkpoint: %w", err)
	}

	// Sync temp file to disk (ensure data is durable)
	tempFile, err := os.OpenFile(tempPath, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open temp checkpoint: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temp checkpoint: %w", err)
	}
	tempFile.Close()

	// Atomically rename temp to actual
	// On Unix, rename is atomic - file is either old or new, never corrupted
	if err := os.Rename(tempPath, cm.checkpointPath); err != nil {
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}

	// Sync directory to ensure rename is durable
	dir, err := os.Open(filepath.Dir(cm.checkpointPath))
	if err == nil {
		dir.Sync()
		dir.Close()
	}

	cm.logger.WithField("lsn", lsn).WithField("database", database).Debug("allocator context saved")
	return nil
}

// LoadCheckpoint reads back the last persisted allocator context. A
// missing file means no allocator context has ever been saved, which is
// the normal state for a fresh data directory, not an error; a corrupt
// file is treated the same way rather than blocking startup on it.
func (cm *CheckpointManager) LoadCheckpoint() (*Checkpoint, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if _, err := os.Stat(cm.checkpointPath); os.IsNotExist(err) {
		return &Checkpoint{LSN: 0}, nil
	}

	data, err := os.ReadFile(cm.checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		cm.logger.WithError(err).Warn("allocator context file corrupted, resuming from LSN 0")
		return &Checkpoint{LSN: 0}, nil
	}

	cm.logger.WithField("lsn", checkpoint.LSN).WithField("timestamp", checkpoint.Timestamp).
		Debug("allocator context loaded")

	return &checkpoint, nil
}

// DeleteCheckpoint removes the persisted allocator context, so a later
// restart resumes as if the allocator had never saved any state.
func (cm *CheckpointManager) DeleteCheckpoint() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if err := os.Remove(cm.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	return nil
}

// getCurrentTimestamp returns current Unix timestamp
func getCurrentTimestamp() int64 {
	return time.Now().Unix()
}
