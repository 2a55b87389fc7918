package journal

// LogBuffer is the C1 collaborator: the on-device log-buffer region. The
// releaser never resets a group itself — it hands the job to LogBuffer and
// waits for the callback.
type LogBuffer interface {
	// AsyncReset clears the given log group's on-disk region so it may be
	// reused, and reports completion through onDone. onDone runs on a
	// goroutine LogBuffer owns, not the caller's.
	AsyncReset(id LogGroupId, onDone func(id LogGroupId, err error)) error
}

// DirtyIndex is the C2 collaborator: per-log-group dirty map-page
// tracking, computed from the records the log group holds.
type DirtyIndex interface {
	// PagesFor returns the set of map pages dirtied by the given log
	// group. Called once per checkpoint, before the map-flush phase.
	PagesFor(id LogGroupId) (MapPageList, error)
	// Clear drops the group's dirty-page record after a successful
	// checkpoint; the pages are now durable via the allocator's own
	// storage, not the journal.
	Clear(id LogGroupId) error
}

// SequenceGate is the C4 collaborator: the callback sequence gate that
// serializes checkpoint execution against concurrent front-end write
// callbacks. See sequencegate.Gate for the concrete implementation.
type SequenceGate interface {
	// AcquireForCheckpoint blocks until no front-end callback is
	// in-flight, then holds the gate closed to new front-end callbacks
	// until ReleaseFromCheckpoint is called.
	AcquireForCheckpoint()
	ReleaseFromCheckpoint()
}

// MapFlusher is the C3a collaborator: flushes a specific set of dirty map
// pages to disk in parallel and reports aggregate completion.
type MapFlusher interface {
	FlushDirtyMpages(pageIDs []int64, onDone func(error))
}

// ContextManager is the C3b collaborator: the allocator's own bookkeeping
// state, flushed as one unit alongside the map pages during a checkpoint.
type ContextManager interface {
	FlushContext() error
}

// Notifier is the C5 collaborator: broadcasts log-group release
// completion to whoever is waiting for buffer space to free up.
type Notifier interface {
	NotifyReleased(id LogGroupId)
}

// CompletionSink receives the outcome of one checkpoint. The releaser
// implements it and hands itself to the checkpoint handler, so the
// handler never needs to know about queues or the next group — it just
// reports what happened to the group it was given.
type CompletionSink interface {
	CheckpointCompleted(id LogGroupId, err error)
}
