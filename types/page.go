package types

const (
	PageSize = 4096 // 4KB page
)

type PageType uint8

const (
	PageTypeUnknown PageType = iota
	// PageTypeMapData is a mapping-engine page: a piece of the
	// logical-to-physical address translation table.
	PageTypeMapData
	// PageTypeAllocatorContext is the allocator's own bookkeeping state,
	// flushed as a single unit separately from map pages.
	PageTypeAllocatorContext
)
