package page

import (
	"sync"

	"DaemonJournal/types"
)

const (
	PageSize      = 4096
	PageLSNOffset = 0 // first 8 bytes of every page = LSN
)

/*
Page is the common in-memory representation of a metadata page, used by
both map pages (logical-to-physical translation) and the allocator
context page. The on-disk layout differs per PageType; this struct only
carries what the buffer pool and disk manager need to know: identity,
dirtiness, pin count, and the LSN of the last journal record covering it.
*/

type Page struct {
	ID       int64
	FileID   uint32
	Data     []byte
	IsDirty  bool
	PinCount int32
	PageType types.PageType
	LSN      uint64 // in-memory, set by the mapping engine / allocator
	mu       sync.RWMutex
}

func (p *Page) Lock() {
	p.mu.Lock()
}

func (p *Page) Unlock() {
	p.mu.Unlock()
}

func (p *Page) RLock() {
	p.mu.RLock()
}

func (p *Page) RUnlock() {
	p.mu.RUnlock()
}
