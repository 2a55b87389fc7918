package main

import (
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"DaemonJournal/journal"
	"DaemonJournal/journal/contextmgr"
	"DaemonJournal/journal/dirtyindex"
	"DaemonJournal/journal/logbuffer"
	"DaemonJournal/journal/mapflush"
	"DaemonJournal/journal/notifier"
	"DaemonJournal/journal/releaser"
	"DaemonJournal/journal/sequencegate"
	"DaemonJournal/storage_engine/bufferpool"
	diskcheckpoint "DaemonJournal/storage_engine/checkpoint_manager"
	diskmanager "DaemonJournal/storage_engine/disk_manager"
	txn "DaemonJournal/storage_engine/transaction_manager"
	"DaemonJournal/storage_engine/wal_manager"
)

// Demo wiring for the log-group release pipeline: a small fixed ring of
// log groups, a buffer pool standing in for the mapping engine's cached
// pages, and a burst of front-end commits large enough to fill and
// release at least one group.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(envOr("JOURNAL_LOG_LEVEL", "info")); err == nil {
		logger.SetLevel(lvl)
	}

	dataDir := envOr("JOURNAL_DATA_DIR", "./journal-data")
	groupCount := envUint32("JOURNAL_GROUP_COUNT", 4)
	groupSize := envInt64("JOURNAL_GROUP_SIZE_BYTES", 64*1024)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logger.WithError(err).Fatal("could not create data directory")
	}

	wal, err := wal_manager.OpenWAL(dataDir, groupCount, groupSize, logger.WithField("component", "wal_manager"))
	if err != nil {
		logger.WithError(err).Fatal("could not open write-ahead log")
	}
	defer wal.Close()

	disk := diskmanager.NewDiskManager()
	mapFileID, err := disk.OpenFile(dataDir + "/mapdata.db")
	if err != nil {
		logger.WithError(err).Fatal("could not open map data file")
	}

	pool := bufferpool.NewBufferPool(256, disk, logger.WithField("component", "bufferpool"))
	pool.SetWALManager(wal)

	dirtyIdx, err := dirtyindex.New(logger.WithField("component", "dirty_index"))
	if err != nil {
		logger.WithError(err).Fatal("could not create dirty-page index")
	}

	cm, err := diskcheckpoint.NewCheckpointManager(dataDir, logger.WithField("component", "checkpoint_manager"))
	if err != nil {
		logger.WithError(err).Fatal("could not create checkpoint manager")
	}

	gate := sequencegate.New()
	relNotifier := notifier.New(logger.WithField("component", "notifier"))
	released := relNotifier.Subscribe()
	defer relNotifier.Unsubscribe(released)

	rel := releaser.New(logger.WithField("component", "releaser"))
	contextMgr := contextmgr.New(cm, "default", func() uint64 { return wal.CurrentLSN })

	if envOr("JOURNAL_RESET_CONTEXT", "") != "" {
		if err := contextMgr.Clear(); err != nil {
			logger.WithError(err).Fatal("could not clear allocator context")
		}
		logger.Info("allocator context cleared, resuming from LSN 0")
	} else if lastLSN, err := contextMgr.LastFlushedLSN(); err != nil {
		logger.WithError(err).Warn("could not read prior allocator context, assuming none")
	} else {
		logger.WithField("lsn", lastLSN).Info("last durable allocator context")
	}

	if err := rel.Init(relNotifier, logbuffer.New(wal), dirtyIdx, gate, mapflush.New(pool), contextMgr); err != nil {
		logger.WithError(err).Fatal("could not initialize log-group releaser")
	}

	txnMgr, err := txn.NewTxnManager(wal, rel, gate, dirtyIdx, logger.WithField("component", "txn_manager"))
	if err != nil {
		logger.WithError(err).Fatal("could not create transaction manager")
	}

	logger.WithField("group_count", groupCount).
		WithField("group_size", humanize.Bytes(uint64(groupSize))).
		Info("journal core ready")

	// Drive front-end commits until we observe at least one log-group
	// release, or the pipeline fails journaled.
	for i := 0; i < 4096; i++ {
		if rel.Failed() {
			logger.Fatal("journal is fail-journaled, stopping")
		}

		t := txnMgr.Begin()
		t.RecordDirtyPage(journal.MapPageRef{MapID: mapFileID, PageIndex: uint64(i % 64)})

		if err := txnMgr.Commit(t.ID); err != nil {
			logger.WithError(err).Fatal("commit failed")
		}

		select {
		case groupID := <-released:
			logger.WithField("log_group", groupID.String()).Info("log group released, buffer space reclaimed")
			return
		default:
		}
	}

	logger.WithField("checkpoint_status", rel.GetStatus().String()).
		Info("demo loop finished without observing a release; a checkpoint may still be in flight")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envUint32(key string, fallback uint32) uint32 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint32(n)
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
