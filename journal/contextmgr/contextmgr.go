// Package contextmgr implements the C3b Allocator Context Manager: it
// flushes the allocator's own bookkeeping state as a single durable unit
// alongside a checkpoint's map pages. It is built directly on
// storage_engine/checkpoint_manager's atomic temp-file-then-rename write
// pattern, unmodified, rather than reimplementing durability from
// scratch.
package contextmgr

import (
	diskcheckpoint "DaemonJournal/storage_engine/checkpoint_manager"
)

// LSNSource reports the highest LSN the allocator has applied, which is
// what gets recorded as the allocator's durable context.
type LSNSource func() uint64

// Manager flushes allocator context through a CheckpointManager.
type Manager struct {
	cm       *diskcheckpoint.CheckpointManager
	database string
	lsn      LSNSource
}

// New creates a context manager backed by cm. database identifies which
// logical database's allocator context is being tracked.
func New(cm *diskcheckpoint.CheckpointManager, database string, lsn LSNSource) *Manager {
	return &Manager{cm: cm, database: database, lsn: lsn}
}

// FlushContext satisfies journal.ContextManager: it atomically persists
// the allocator's current high-water LSN.
func (m *Manager) FlushContext() error {
	return m.cm.SaveCheckpoint(m.lsn(), m.database)
}

// LastFlushedLSN returns the high-water LSN recorded by the most recent
// FlushContext, or 0 if none has ever run. Meant to be read once at
// startup, to report how far the allocator's context had advanced before
// whatever shutdown or crash preceded this run.
func (m *Manager) LastFlushedLSN() (uint64, error) {
	cp, err := m.cm.LoadCheckpoint()
	if err != nil {
		return 0, err
	}
	return cp.LSN, nil
}

// Clear removes the persisted allocator context. Called when the
// journal core is being reset from scratch, so a later restart doesn't
// resume from a context that no longer corresponds to the reset state.
func (m *Manager) Clear() error {
	return m.cm.DeleteCheckpoint()
}
