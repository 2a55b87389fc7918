// Package dirtyindex implements the C2 Dirty-Page Index: per-log-group
// tracking of which map pages its records touched, so a checkpoint knows
// exactly which pages to flush instead of scanning the whole map. It is
// backed by a ristretto cache keyed by log group, repurposing the
// library the teacher module depended on but never wired up.
package dirtyindex

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/sirupsen/logrus"

	"DaemonJournal/journal"
)

// Index tracks dirty map pages per log group.
type Index struct {
	logger logrus.FieldLogger
	cache  *ristretto.Cache[uint32, map[journal.MapPageRef]struct{}]

	// mu serializes read-modify-write on a group's page set; ristretto's
	// own operations are safe for concurrent use but don't compose into
	// an atomic "add one ref to the existing set" without one.
	mu sync.Mutex
}

// New creates a dirty-page index sized for a modest number of
// concurrently-open log groups.
func New(logger logrus.FieldLogger) (*Index, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[uint32, map[journal.MapPageRef]struct{}]{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create dirty-page index cache: %w", err)
	}
	return &Index{logger: logger, cache: cache}, nil
}

// RecordDirty marks that id's log group dirtied the given map page. The
// log-writer calls this once per record it appends, alongside the WAL
// append itself.
func (idx *Index) RecordDirty(id journal.LogGroupId, ref journal.MapPageRef) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := uint32(id)
	set, found := idx.cache.Get(key)
	if !found {
		set = make(map[journal.MapPageRef]struct{})
	}
	set[ref] = struct{}{}
	idx.cache.Set(key, set, int64(len(set)))
	idx.cache.Wait()
}

// PagesFor satisfies journal.DirtyIndex: it returns the full set of pages
// recorded dirty for id. The releaser calls this exactly once per
// checkpoint, before handing the pages to the checkpoint handler.
func (idx *Index) PagesFor(id journal.LogGroupId) (journal.MapPageList, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	set, found := idx.cache.Get(uint32(id))
	if !found {
		return nil, nil
	}

	pages := make(journal.MapPageList, 0, len(set))
	for ref := range set {
		pages = append(pages, ref)
	}
	return pages, nil
}

// Clear satisfies journal.DirtyIndex: it drops id's dirty-page record
// once its checkpoint has completed successfully.
func (idx *Index) Clear(id journal.LogGroupId) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.cache.Del(uint32(id))
	idx.cache.Wait()

	idx.logger.WithField("log_group", id.String()).Debug("dirty-page index cleared")
	return nil
}
