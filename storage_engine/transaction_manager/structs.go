package txn

import (
	"sync"

	"github.com/sirupsen/logrus"

	"DaemonJournal/journal"
	"DaemonJournal/journal/dirtyindex"
	"DaemonJournal/journal/releaser"
	"DaemonJournal/journal/sequencegate"
	"DaemonJournal/storage_engine/wal_manager"
)

type TxnState uint8

const (
	TxnActive TxnState = iota
	TxnCommitted
	TxnAborted
)

// Transaction groups a front-end caller's map mutations so they commit or
// abort as one unit against the journal.
type Transaction struct {
	ID    uint64
	State TxnState

	// DirtiedPages records which map pages this transaction touched, so
	// Commit can tell the dirty-page index which log group they belong
	// to once the transaction's commit record is assigned an LSN.
	DirtiedPages []journal.MapPageRef
}

// TxnManager manages the BEGIN/COMMIT/ABORT lifecycle of front-end
// callers and is the front-end side of the callback sequence gate: every
// commit acquires the gate for the duration of its WAL append and
// log-group bookkeeping, so it never races a checkpoint's flush phase.
type TxnManager struct {
	nextID     uint64
	activeTxns map[uint64]*Transaction

	wal      *wal_manager.WALManager
	releaser *releaser.Releaser
	gate     *sequencegate.Gate
	dirtyIdx *dirtyindex.Index
	logger   logrus.FieldLogger

	mu sync.RWMutex
}
