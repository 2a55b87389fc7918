package bufferpool

import (
	"sync"

	"github.com/sirupsen/logrus"

	diskmanager "DaemonJournal/storage_engine/disk_manager"
	"DaemonJournal/storage_engine/page"
)

// ############################################# BUFFER POOL #############################################

// BufferPool manages cached metadata pages in memory with LRU eviction.
// It backs the journal core's map flusher: the checkpoint handler asks it
// to flush a specific set of dirty pages, rather than blindly flushing
// everything.
type BufferPool struct {
	pages       map[int64]*page.Page // pageID -> Page
	capacity    int
	diskManager *diskmanager.DiskManager
	walManager  WALFlushedLSNGetter
	accessOrder []int64 // LRU tracking: most recently used at end
	logger      logrus.FieldLogger
	mu          sync.Mutex
}

// Stats returns buffer pool statistics
type BufferPoolStats struct {
	TotalPages  int
	PinnedPages int
	DirtyPages  int
	Capacity    int
	HitRate     float64 // Could be tracked with counters
}

// small interface so bufferpool doesn't import the whole wal package
type WALFlushedLSNGetter interface {
	GetFlushedLSN() uint64
}
