package wal_manager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestAppendRecordAssignsIncreasingLSNs(t *testing.T) {
	dir := filepath.Join(os.TempDir(), "daemonjournal_wal_test")
	os.RemoveAll(dir)
	defer os.RemoveAll(dir)

	wal, err := OpenWAL(dir, 4, 1<<20, testLogger())
	if err != nil {
		t.Fatalf("OpenWAL failed: %v", err)
	}
	defer wal.Close()

	lsn1, group1, err := wal.AppendRecord([]byte("first"))
	if err != nil {
		t.Fatalf("AppendRecord failed: %v", err)
	}
	lsn2, group2, err := wal.AppendRecord([]byte("second"))
	if err != nil {
		t.Fatalf("AppendRecord failed: %v", err)
	}

	if lsn2 <= lsn1 {
		t.Errorf("expected increasing LSNs, got %d then %d", lsn1, lsn2)
	}
	if group1 != group2 {
		t.Errorf("expected both records in the same group before it fills, got %d and %d", group1, group2)
	}
}

func TestIsGroupFullAndNextGroup(t *testing.T) {
	dir := filepath.Join(os.TempDir(), "daemonjournal_wal_fill_test")
	os.RemoveAll(dir)
	defer os.RemoveAll(dir)

	// A tiny group size so a couple of records fill it.
	wal, err := OpenWAL(dir, 2, RecordHeaderSize+8, testLogger())
	if err != nil {
		t.Fatalf("OpenWAL failed: %v", err)
	}
	defer wal.Close()

	if _, _, err := wal.AppendRecord([]byte("12345678")); err != nil {
		t.Fatalf("AppendRecord failed: %v", err)
	}

	groupID, full := wal.IsGroupFull()
	if !full {
		t.Fatalf("expected group %d to be full", groupID)
	}

	if err := wal.NextGroup(); err != nil {
		t.Fatalf("NextGroup failed: %v", err)
	}

	if wal.CurrGroup == groupID {
		t.Errorf("expected CurrGroup to advance past %d", groupID)
	}
}

func TestNextGroupRefusesUnresetSlot(t *testing.T) {
	dir := filepath.Join(os.TempDir(), "daemonjournal_wal_ring_test")
	os.RemoveAll(dir)
	defer os.RemoveAll(dir)

	wal, err := OpenWAL(dir, 2, RecordHeaderSize+8, testLogger())
	if err != nil {
		t.Fatalf("OpenWAL failed: %v", err)
	}
	defer wal.Close()

	if _, _, err := wal.AppendRecord([]byte("12345678")); err != nil {
		t.Fatalf("AppendRecord failed: %v", err)
	}
	if err := wal.NextGroup(); err != nil {
		t.Fatalf("NextGroup failed: %v", err)
	}
	if _, _, err := wal.AppendRecord([]byte("87654321")); err != nil {
		t.Fatalf("AppendRecord failed: %v", err)
	}

	// Ring wraps back to group 0, which was never reset.
	if err := wal.NextGroup(); err == nil {
		t.Errorf("expected NextGroup to refuse an unreset ring slot")
	}
}

func TestAsyncResetClearsSegment(t *testing.T) {
	dir := filepath.Join(os.TempDir(), "daemonjournal_wal_reset_test")
	os.RemoveAll(dir)
	defer os.RemoveAll(dir)

	wal, err := OpenWAL(dir, 2, 1<<20, testLogger())
	if err != nil {
		t.Fatalf("OpenWAL failed: %v", err)
	}
	defer wal.Close()

	if _, _, err := wal.AppendRecord([]byte("payload")); err != nil {
		t.Fatalf("AppendRecord failed: %v", err)
	}

	done := make(chan error, 1)
	if err := wal.AsyncReset(0, func(groupID uint32, err error) {
		done <- err
	}); err != nil {
		t.Fatalf("AsyncReset returned synchronous error: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("AsyncReset callback reported error: %v", err)
	}

	if wal.Groups[0].Size != 0 {
		t.Errorf("expected segment size 0 after reset, got %d", wal.Groups[0].Size)
	}
}

func TestAsyncResetUnknownGroupErrors(t *testing.T) {
	dir := filepath.Join(os.TempDir(), "daemonjournal_wal_reset_unknown_test")
	os.RemoveAll(dir)
	defer os.RemoveAll(dir)

	wal, err := OpenWAL(dir, 2, 1<<20, testLogger())
	if err != nil {
		t.Fatalf("OpenWAL failed: %v", err)
	}
	defer wal.Close()

	err = wal.AsyncReset(99, func(uint32, error) {})
	if err == nil {
		t.Errorf("expected error resetting an unknown group")
	}
}
