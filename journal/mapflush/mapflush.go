// Package mapflush adapts storage_engine/bufferpool's parallel flush
// fan-out to the journal core's C3a MapFlusher contract.
package mapflush

import "DaemonJournal/storage_engine/bufferpool"

// Adapter wraps a *bufferpool.BufferPool for use as a journal.MapFlusher.
// The buffer pool's own FlushDirtyMpages already matches the contract
// signature; this type exists so the journal core depends on the
// adapter's narrow interface, not the buffer pool's full API.
type Adapter struct {
	pool *bufferpool.BufferPool
}

// New wraps pool for use as a journal.MapFlusher.
func New(pool *bufferpool.BufferPool) *Adapter {
	return &Adapter{pool: pool}
}

// FlushDirtyMpages satisfies journal.MapFlusher.
func (a *Adapter) FlushDirtyMpages(pageIDs []int64, onDone func(error)) {
	a.pool.FlushDirtyMpages(pageIDs, onDone)
}
