package wal_manager

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Encode serializes the record as LSN(8) | LEN(4) | CHECKSUM(8) | DATA.
func (r *WALRecord) Encode() []byte {
	buf := make([]byte, RecordHeaderSize+len(r.Data))

	binary.BigEndian.PutUint64(buf[0:8], r.LSN)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(r.Data)))
	binary.BigEndian.PutUint64(buf[12:20], r.Checksum)
	copy(buf[20:], r.Data)

	return buf
}

// ValidateChecksum reports whether the record's stored checksum matches
// its (LSN, Data) payload.
func (r *WALRecord) ValidateChecksum() bool {
	return calculateChecksum(r.LSN, r.Data) == r.Checksum
}

// calculateChecksum hashes the LSN and record payload together so a
// record that is silently reordered onto the wrong LSN is also detected.
func calculateChecksum(lsn uint64, data []byte) uint64 {
	var lsnBytes [8]byte
	binary.BigEndian.PutUint64(lsnBytes[:], lsn)

	h := xxhash.New()
	h.Write(lsnBytes[:])
	h.Write(data)
	return h.Sum64()
}
