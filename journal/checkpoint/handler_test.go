package checkpoint

import (
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"DaemonJournal/journal"
)

type fakeGate struct {
	mu        sync.Mutex
	held      bool
	acquired  int
	released  int
	doubleErr bool
}

func (g *fakeGate) AcquireForCheckpoint() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		g.doubleErr = true
	}
	g.held = true
	g.acquired++
}

func (g *fakeGate) ReleaseFromCheckpoint() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held = false
	g.released++
}

type fakeFlusher struct {
	err    error
	called []int64
}

func (f *fakeFlusher) FlushDirtyMpages(pageIDs []int64, onDone func(error)) {
	f.called = append(f.called, pageIDs...)
	onDone(f.err)
}

type fakeContextMgr struct {
	err   error
	calls int
}

func (c *fakeContextMgr) FlushContext() error {
	c.calls++
	return c.err
}

type fakeLogBuffer struct {
	err      error
	resetIDs []journal.LogGroupId
}

func (b *fakeLogBuffer) AsyncReset(id journal.LogGroupId, onDone func(id journal.LogGroupId, err error)) error {
	b.resetIDs = append(b.resetIDs, id)
	onDone(id, b.err)
	return nil
}

func newTestLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestHandler_StartSucceeds(t *testing.T) {
	gate := &fakeGate{}
	flusher := &fakeFlusher{}
	ctxMgr := &fakeContextMgr{}
	logBuf := &fakeLogBuffer{}

	h := New(newTestLogger())
	h.Init(gate, flusher, ctxMgr, logBuf)

	var gotID journal.LogGroupId
	var gotErr error
	h.Start(journal.LogGroupId(3), journal.MapPageList{{MapID: 1, PageIndex: 2}}, func(id journal.LogGroupId, err error) {
		gotID, gotErr = id, err
	})

	require.NoError(t, gotErr)
	require.Equal(t, journal.LogGroupId(3), gotID)
	require.False(t, h.Failed())
	require.Equal(t, StatusIdle, h.Status())
	require.False(t, gate.doubleErr)
	require.Equal(t, 1, gate.acquired)
	require.Equal(t, 1, gate.released)
	require.Equal(t, 1, ctxMgr.calls)
	require.Equal(t, []journal.LogGroupId{3}, logBuf.resetIDs)
}

func TestHandler_MapFlushFailureFailsJournaled(t *testing.T) {
	gate := &fakeGate{}
	flusher := &fakeFlusher{err: errors.New("disk full")}
	ctxMgr := &fakeContextMgr{}
	logBuf := &fakeLogBuffer{}

	h := New(newTestLogger())
	h.Init(gate, flusher, ctxMgr, logBuf)

	var gotErr error
	h.Start(journal.LogGroupId(1), nil, func(id journal.LogGroupId, err error) {
		gotErr = err
	})

	require.ErrorIs(t, gotErr, journal.ErrFailJournaled)
	require.True(t, h.Failed())
	require.Equal(t, StatusFailed, h.Status())
	require.Equal(t, 0, ctxMgr.calls, "context must not flush after a failed page flush")
	require.Empty(t, logBuf.resetIDs, "must not reset the group if the flush failed")
	require.Equal(t, gate.acquired, gate.released, "gate must be released even on failure")
}

func TestHandler_ContextFlushFailureFailsJournaled(t *testing.T) {
	gate := &fakeGate{}
	flusher := &fakeFlusher{}
	ctxMgr := &fakeContextMgr{err: errors.New("write error")}
	logBuf := &fakeLogBuffer{}

	h := New(newTestLogger())
	h.Init(gate, flusher, ctxMgr, logBuf)

	var gotErr error
	h.Start(journal.LogGroupId(1), nil, func(id journal.LogGroupId, err error) {
		gotErr = err
	})

	require.ErrorIs(t, gotErr, journal.ErrFailJournaled)
	require.True(t, h.Failed())
	require.Empty(t, logBuf.resetIDs)
}

func TestHandler_ResetFailureFailsJournaled(t *testing.T) {
	gate := &fakeGate{}
	flusher := &fakeFlusher{}
	ctxMgr := &fakeContextMgr{}
	logBuf := &fakeLogBuffer{err: errors.New("fsync failed")}

	h := New(newTestLogger())
	h.Init(gate, flusher, ctxMgr, logBuf)

	var gotErr error
	h.Start(journal.LogGroupId(9), nil, func(id journal.LogGroupId, err error) {
		gotErr = err
	})

	require.ErrorIs(t, gotErr, journal.ErrFailJournaled)
	require.True(t, h.Failed())
}

func TestHandler_ConcurrentStartIsRejected(t *testing.T) {
	gate := &fakeGate{}
	flusher := &fakeFlusher{}
	ctxMgr := &fakeContextMgr{}
	logBuf := &fakeLogBuffer{}

	h := New(newTestLogger())
	h.Init(gate, flusher, ctxMgr, logBuf)

	h.setStatus(StatusFlushingPages) // simulate a checkpoint already in flight

	err := h.Start(journal.LogGroupId(1), nil, func(journal.LogGroupId, error) {})
	require.ErrorIs(t, err, journal.ErrCheckpointInProgress)
	require.Empty(t, logBuf.resetIDs, "a rejected Start must never touch the pipeline")
}

func TestHandler_StartAfterFailureIsRejected(t *testing.T) {
	gate := &fakeGate{}
	flusher := &fakeFlusher{err: errors.New("boom")}
	ctxMgr := &fakeContextMgr{}
	logBuf := &fakeLogBuffer{}

	h := New(newTestLogger())
	h.Init(gate, flusher, ctxMgr, logBuf)

	h.Start(journal.LogGroupId(1), nil, func(journal.LogGroupId, error) {})
	require.True(t, h.Failed())

	err := h.Start(journal.LogGroupId(2), nil, func(journal.LogGroupId, error) {})
	require.ErrorIs(t, err, journal.ErrFailJournaled)
}
