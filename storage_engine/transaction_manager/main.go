package txn

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"DaemonJournal/journal"
	"DaemonJournal/journal/dirtyindex"
	"DaemonJournal/journal/releaser"
	"DaemonJournal/journal/sequencegate"
	"DaemonJournal/storage_engine/wal_manager"
)

/*
Transaction manager manages the BEGIN, COMMIT, ABORT state of front-end
mutations that are to be made atomically (either all or none), and is
the log-writer side of the journal: every commit appends a record to the
current log group, and if that append fills the group, hands it off to
the releaser.
*/

func NewTxnManager(wal *wal_manager.WALManager, rel *releaser.Releaser, gate *sequencegate.Gate, dirtyIdx *dirtyindex.Index, logger logrus.FieldLogger) (*TxnManager, error) {
	return &TxnManager{
		nextID:     1,
		activeTxns: make(map[uint64]*Transaction),
		wal:        wal,
		releaser:   rel,
		gate:       gate,
		dirtyIdx:   dirtyIdx,
		logger:     logger,
	}, nil
}

// Begin starts a new transaction and registers it as active.
func (tm *TxnManager) Begin() *Transaction {
	// Use atomic increment to safely issue txn IDs from multiple goroutines.
	txnID := atomic.AddUint64(&tm.nextID, 1) - 1

	txn := &Transaction{
		ID:    txnID,
		State: TxnActive,
	}

	tm.mu.Lock()
	tm.activeTxns[txnID] = txn
	tm.mu.Unlock()

	return txn
}

// Commit appends the transaction's commit record to the journal and
// records its dirtied pages against the log group it landed in. The
// gate is held only for that append-and-record step, which is the part
// a checkpoint's flush phase must never observe half-done; it is
// released again before Commit decides whether the group is full. The
// full-group handoff to the releaser runs outside the gate on purpose —
// AddToFullLogGroup can synchronously kick off a checkpoint, which
// itself acquires the gate from the checkpoint side, and the gate is a
// plain non-reentrant mutex shared by both sides.
func (tm *TxnManager) Commit(txnID uint64) error {
	tm.mu.Lock()
	txn, exists := tm.activeTxns[txnID]
	if !exists {
		tm.mu.Unlock()
		return nil // already committed/aborted or never existed — idempotent
	}
	if txn.State == TxnAborted {
		tm.mu.Unlock()
		return fmt.Errorf("transaction %d was already aborted", txnID)
	}
	txn.State = TxnCommitted
	delete(tm.activeTxns, txnID)
	tm.mu.Unlock()

	groupID, err := tm.appendAndRecordDirty(txn)
	if err != nil {
		return err
	}

	if fullGroupID, full := tm.wal.IsGroupFull(); full {
		if err := tm.wal.NextGroup(); err != nil {
			tm.logger.WithField("log_group", fullGroupID).WithError(err).
				Warn("log group full but ring slot not yet reset, front-end writer stalls on it")
		} else {
			tm.releaser.AddToFullLogGroup(journal.LogGroupId(fullGroupID))
		}
	}

	tm.logger.WithField("txn_id", txnID).WithField("log_group", groupID).Debug("commit complete")
	return nil
}

// appendAndRecordDirty appends the commit record and attributes the
// transaction's dirtied pages to the log group it fell in. This is the
// gate's entire callback-side critical section: it must finish before a
// checkpoint's flush phase can read a consistent dirty-page snapshot for
// the same group, but it must not still be holding the gate by the time
// the caller goes on to hand a full group to the releaser.
func (tm *TxnManager) appendAndRecordDirty(txn *Transaction) (uint32, error) {
	tm.gate.AcquireForCallback()
	defer tm.gate.ReleaseFromCallback()

	payload := []byte(fmt.Sprintf("commit:%d", txn.ID))
	_, groupID, err := tm.wal.AppendRecord(payload)
	if err != nil {
		return 0, fmt.Errorf("append commit record for txn %d: %w", txn.ID, err)
	}

	for _, ref := range txn.DirtiedPages {
		tm.dirtyIdx.RecordDirty(journal.LogGroupId(groupID), ref)
	}

	return groupID, nil
}

// Abort marks a transaction as aborted and removes it from the active
// set. Its dirtied pages were only ever tracked in RAM, so there is
// nothing to undo on disk.
func (tm *TxnManager) Abort(txnID uint64) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	txn, exists := tm.activeTxns[txnID]
	if !exists {
		return nil // already committed/aborted or never existed — idempotent
	}

	if txn.State == TxnCommitted {
		return fmt.Errorf("transaction %d was already committed", txnID)
	}

	txn.State = TxnAborted
	delete(tm.activeTxns, txnID)

	return nil
}

// GetTransaction returns the transaction with the given ID, or nil if not found.
func (tm *TxnManager) GetTransaction(txnID uint64) *Transaction {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.activeTxns[txnID]
}

// IsActive returns true if the given txnID is currently active.
func (tm *TxnManager) IsActive(txnID uint64) bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	_, exists := tm.activeTxns[txnID]
	return exists
}

// ActiveTransactions returns a snapshot of all currently active transactions.
func (tm *TxnManager) ActiveTransactions() []*Transaction {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	txns := make([]*Transaction, 0, len(tm.activeTxns))
	for _, txn := range tm.activeTxns {
		txns = append(txns, txn)
	}
	return txns
}
