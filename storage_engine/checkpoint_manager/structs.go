package checkpoint

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// CheckpointManager persists the allocator's durable context — the
// high-water LSN it has applied — as a single small file, atomically.
type CheckpointManager struct {
	checkpointPath string
	logger         logrus.FieldLogger
	mu             sync.RWMutex
}

// Checkpoint is one persisted allocator-context record.
type Checkpoint struct {
	LSN       uint64 `json:"lsn"`
	Timestamp int64  `json:"timestamp"`
	Database  string `json:"database"`
}
