package wal_manager

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

/*

WAL Group Segment File
────────────────────────────────────
| Record | Record | Record | ...   |
────────────────────────────────────

Each Record:
──────────────────────────────────────────────────
| LSN (8) | LEN (4) | CHECKSUM (8) | DATA (LEN)  |
──────────────────────────────────────────────────

Log groups are a fixed-size ring of GroupCount segments. The log-writer
appends records into whichever group is current; once a group's segment
reaches GroupSize it is "full" and the journal core's release pipeline
takes over: checkpoint its dirty pages, then AsyncReset it so the ring
slot can be reused by a future group.

*/

// OpenWAL opens (or creates) the on-device journal directory and recovers
// whatever groups already exist on disk.
func OpenWAL(directory string, groupCount uint32, groupSize int64, logger logrus.FieldLogger) (*WALManager, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, err
	}

	wal := &WALManager{
		Directory:  directory,
		GroupSize:  groupSize,
		GroupCount: groupCount,
		Groups:     make(map[uint32]*WALSegment, groupCount),
		logger:     logger,
	}

	if err := wal.recoverGroups(); err != nil {
		return nil, err
	}

	if _, ok := wal.Groups[wal.CurrGroup]; !ok {
		if err := wal.openGroup(wal.CurrGroup); err != nil {
			return nil, err
		}
	}

	return wal, nil
}

// recoverGroups re-opens whatever group segment files already exist and
// restores CurrGroup/CurrentLSN from the highest LSN found on disk.
func (w *WALManager) recoverGroups() error {
	files, err := filepath.Glob(filepath.Join(w.Directory, "walgroup_*.log"))
	if err != nil {
		return err
	}

	var groupIDs []uint32
	for _, file := range files {
		name := filepath.Base(file)
		if !strings.HasPrefix(name, "walgroup_") || !strings.HasSuffix(name, ".log") {
			continue
		}

		hexPart := strings.TrimSuffix(strings.TrimPrefix(name, "walgroup_"), ".log")
		groupID, err := strconv.ParseUint(hexPart, 16, 32)
		if err != nil {
			continue
		}

		groupIDs = append(groupIDs, uint32(groupID))
	}

	if len(groupIDs) == 0 {
		return nil
	}

	slices.Sort(groupIDs)

	maxLSN := uint64(0)
	currGroup := groupIDs[len(groupIDs)-1]
	for _, groupID := range groupIDs {
		segment := InitializeWALSegment(groupID, w.Directory)
		if err := segment.Open(); err != nil {
			return err
		}
		w.Groups[groupID] = segment

		lsn, err := w.findLargestLSN(segment)
		if err != nil {
			return err
		}
		if lsn > maxLSN {
			maxLSN = lsn
			currGroup = groupID
		}
	}

	w.CurrGroup = currGroup
	w.CurrentLSN = maxLSN

	w.logger.WithField("action", "wal_recovered").
		WithField("groups", len(groupIDs)).
		WithField("current_group", w.CurrGroup).
		WithField("current_lsn", w.CurrentLSN).
		Info("recovered existing log groups")

	return nil
}

func (w *WALManager) openGroup(groupID uint32) error {
	segment := InitializeWALSegment(groupID, w.Directory)
	if err := segment.Open(); err != nil {
		return err
	}

	w.Groups[groupID] = segment
	w.CurrGroup = groupID
	return nil
}

// AppendRecord appends an opaque metadata-mutation payload to the current
// log group and returns its assigned LSN. The caller (log-writer) is
// responsible for deciding when a full group should be handed to the
// release pipeline via IsGroupFull/NextGroup.
func (w *WALManager) AppendRecord(data []byte) (lsn uint64, groupID uint32, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.CurrentLSN++
	lsn = w.CurrentLSN

	record := &WALRecord{
		LSN:      lsn,
		Data:     data,
		Checksum: calculateChecksum(lsn, data),
	}

	segment := w.Groups[w.CurrGroup]
	if _, err := segment.Append(record.Encode()); err != nil {
		return 0, 0, err
	}

	return lsn, w.CurrGroup, nil
}

// IsGroupFull reports whether the current group's segment has reached
// GroupSize and should be handed off for checkpoint and release.
func (w *WALManager) IsGroupFull() (groupID uint32, full bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	segment := w.Groups[w.CurrGroup]
	return w.CurrGroup, segment.IsFull(w.GroupSize)
}

// NextGroup advances CurrGroup to the next ring slot, opening its segment
// if this is the first time it has been used. Called by the log-writer
// when the current group is full, before it hands that group to
// AddToFullLogGroup.
func (w *WALManager) NextGroup() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := (w.CurrGroup + 1) % w.GroupCount
	if segment, ok := w.Groups[next]; ok {
		if segment.Size != 0 {
			return fmt.Errorf("log group %d: ring slot not yet reset", next)
		}
		w.CurrGroup = next
		return nil
	}

	return w.openGroup(next)
}

// AsyncReset zeroes a released log group's on-disk region so it may be
// reused, invoking onDone when the reset is durable. Returns a
// synchronous error only if the group is unknown; a reset already in
// progress for the same group is not detected.
func (w *WALManager) AsyncReset(groupID uint32, onDone func(groupID uint32, err error)) error {
	w.mu.RLock()
	segment, ok := w.Groups[groupID]
	w.mu.RUnlock()

	if !ok {
		return fmt.Errorf("log group %d: unknown group", groupID)
	}

	go func() {
		err := segment.truncateAndReopen()
		if err == nil {
			err = durableSync(segment.File)
		}

		if err != nil {
			w.logger.WithField("action", "log_group_reset_failed").
				WithField("log_group", groupID).
				WithError(err).Error("failed to reset log group")
		} else {
			w.logger.WithField("action", "log_group_reset").
				WithField("log_group", groupID).
				Debug("log group reset complete")
		}

		onDone(groupID, err)
	}()

	return nil
}

// Close flushes and closes every open group segment.
func (w *WALManager) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, seg := range w.Groups {
		if seg.File == nil {
			continue
		}
		if err := seg.Sync(); err != nil {
			return err
		}
		if err := seg.Close(); err != nil {
			return err
		}
	}

	return nil
}

// Sync flushes the current group's segment to disk and advances the
// flushed-LSN watermark the buffer pool checks before evicting a page.
func (w *WALManager) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.Groups[w.CurrGroup].Sync(); err != nil {
		return err
	}
	w.FlushedLSN = w.CurrentLSN
	return nil
}

// GetFlushedLSN reports the highest LSN known to be durable on disk. The
// buffer pool uses it to enforce write-ahead logging: a dirty page may
// not be flushed until the WAL record covering it is synced.
func (w *WALManager) GetFlushedLSN() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.FlushedLSN
}

func (w *WALManager) findLargestLSN(segment *WALSegment) (uint64, error) {
	segment.mu.Lock()
	defer segment.mu.Unlock()

	if segment.File == nil {
		return 0, fmt.Errorf("log group %d: segment not opened", segment.GroupId)
	}

	file, err := os.Open(segment.FilePath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	maxLSN := uint64(0)
	header := make([]byte, RecordHeaderSize)

	for {
		n, err := io.ReadFull(file, header)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return 0, err
		}
		if n < RecordHeaderSize {
			break
		}

		lsn := binary.BigEndian.Uint64(header[0:8])
		dataLen := binary.BigEndian.Uint32(header[8:12])

		if lsn > maxLSN {
			maxLSN = lsn
		}

		if _, err := file.Seek(int64(dataLen), io.SeekCurrent); err != nil {
			break
		}
	}

	return maxLSN, nil
}
