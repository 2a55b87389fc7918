package wal_manager

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	RecordHeaderSize = 20 // LSN(8) + LEN(4) + CHECKSUM(8)
)

// WALManager organizes the on-device journal into a fixed ring of log
// groups, each backed by one WALSegment file. A log group is the unit the
// journal core checkpoints and reclaims; it is not allowed to grow without
// bound the way a plain append-only WAL would.
type WALManager struct {
	Directory  string
	GroupSize  int64
	GroupCount uint32

	CurrGroup   uint32
	CurrentLSN  uint64
	FlushedLSN  uint64
	Groups      map[uint32]*WALSegment

	logger logrus.FieldLogger
	mu     sync.RWMutex
}

// WALSegment is the on-disk region backing a single log group.
type WALSegment struct {
	GroupId  uint32
	FilePath string
	File     *os.File
	Size     int64
	mu       sync.Mutex
}

// WALRecord is one journal entry: an opaque metadata-mutation payload
// tagged with the LSN it was assigned and a checksum over (LSN, Data).
type WALRecord struct {
	LSN      uint64
	Data     []byte
	Checksum uint64
}

// syncer is the subset of *os.File durableSync needs, split out so the
// per-platform fsync strategy can be swapped without touching callers.
type syncer interface {
	Fd() uintptr
	Sync() error
}
