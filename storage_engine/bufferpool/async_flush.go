package bufferpool

import (
	"golang.org/x/sync/errgroup"
)

// FlushDirtyMpages flushes exactly the given pages and invokes onDone
// once every flush has been attempted. It backs the journal core's C3
// map-flusher contract: the checkpoint handler passes only the pages a
// specific log group dirtied, not the whole pool. A page that is not
// resident in the pool holds no unflushed changes and is skipped. The
// flushes are fanned out across goroutines, but each one holds the pool
// lock for its write, so the disk writes themselves are serialized.
//
// Non-blocking from the caller's perspective: the fan-out and wait happen
// on a background goroutine, and completion is reported through onDone.
func (bp *BufferPool) FlushDirtyMpages(pageIDs []int64, onDone func(error)) {
	go func() {
		eg := new(errgroup.Group)
		eg.SetLimit(flushFanOutLimit)

		for _, id := range pageIDs {
			pageID := id
			eg.Go(func() error {
				bp.mu.Lock()
				defer bp.mu.Unlock()
				if _, resident := bp.pages[pageID]; !resident {
					return nil
				}
				return bp.flushPageLocked(pageID)
			})
		}

		onDone(eg.Wait())
	}()
}

// flushFanOutLimit bounds how many pages are written to disk concurrently
// during a checkpoint's map-flush phase.
const flushFanOutLimit = 8
