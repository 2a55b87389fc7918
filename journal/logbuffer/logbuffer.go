// Package logbuffer adapts storage_engine/wal_manager's fixed ring of
// log-group segments to the journal core's C1 LogBuffer contract.
package logbuffer

import (
	"DaemonJournal/journal"
	"DaemonJournal/storage_engine/wal_manager"
)

// Adapter wraps a *wal_manager.WALManager so the journal core can reset a
// released group's on-disk region without knowing about WAL segments.
type Adapter struct {
	wal *wal_manager.WALManager
}

// New wraps wal for use as a journal.LogBuffer.
func New(wal *wal_manager.WALManager) *Adapter {
	return &Adapter{wal: wal}
}

// AsyncReset satisfies journal.LogBuffer.
func (a *Adapter) AsyncReset(id journal.LogGroupId, onDone func(id journal.LogGroupId, err error)) error {
	return a.wal.AsyncReset(uint32(id), func(groupID uint32, err error) {
		onDone(journal.LogGroupId(groupID), err)
	})
}
