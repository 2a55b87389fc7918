package txn

import "DaemonJournal/journal"

/*
Before a transaction commits, we don't yet know whether it will actually
go through or get aborted.

RecordDirtyPage keeps track of what it touched so Commit can hand the
right pages to the dirty-page index once the commit record has an LSN
and a log group.
*/

// RecordDirtyPage adds a map page to the transaction's dirtied set.
// Called by the front-end caller after each mutation it applies in RAM,
// before the transaction commits.
func (txn *Transaction) RecordDirtyPage(ref journal.MapPageRef) {
	txn.DirtiedPages = append(txn.DirtiedPages, ref)
}
