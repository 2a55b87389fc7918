package releaser

import (
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"DaemonJournal/journal"
	"DaemonJournal/journal/checkpoint"
)

type fakeHandler struct {
	mu       sync.Mutex
	startErr error
	autoDone bool
	doneErr  error
	starts   []journal.LogGroupId
	pending  map[journal.LogGroupId]func(journal.LogGroupId, error)
}

func (h *fakeHandler) Start(id journal.LogGroupId, pages journal.MapPageList, onComplete func(journal.LogGroupId, error)) error {
	h.mu.Lock()
	if h.startErr != nil {
		h.mu.Unlock()
		return h.startErr
	}
	h.starts = append(h.starts, id)
	if h.autoDone {
		h.mu.Unlock()
		onComplete(id, h.doneErr)
		return nil
	}
	if h.pending == nil {
		h.pending = make(map[journal.LogGroupId]func(journal.LogGroupId, error))
	}
	h.pending[id] = onComplete
	h.mu.Unlock()
	return nil
}

func (h *fakeHandler) Failed() bool                     { return false }
func (h *fakeHandler) Status() checkpoint.Status        { return checkpoint.StatusIdle }
func (h *fakeHandler) startCount() int                  { h.mu.Lock(); defer h.mu.Unlock(); return len(h.starts) }
func (h *fakeHandler) startedIDs() []journal.LogGroupId { h.mu.Lock(); defer h.mu.Unlock(); return append([]journal.LogGroupId{}, h.starts...) }

func (h *fakeHandler) complete(id journal.LogGroupId, err error) {
	h.mu.Lock()
	cb, ok := h.pending[id]
	delete(h.pending, id)
	h.mu.Unlock()
	if !ok {
		panic("complete called for unstarted group")
	}
	cb(id, err)
}

type fakeDirtyIndex struct {
	mu       sync.Mutex
	pagesErr error
	cleared  []journal.LogGroupId
}

func (d *fakeDirtyIndex) PagesFor(id journal.LogGroupId) (journal.MapPageList, error) {
	if d.pagesErr != nil {
		return nil, d.pagesErr
	}
	return journal.MapPageList{{MapID: 1, PageIndex: uint64(id)}}, nil
}

func (d *fakeDirtyIndex) Clear(id journal.LogGroupId) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleared = append(d.cleared, id)
	return nil
}

func (d *fakeDirtyIndex) clearedIDs() []journal.LogGroupId {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]journal.LogGroupId{}, d.cleared...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	notified []journal.LogGroupId
}

func (n *fakeNotifier) NotifyReleased(id journal.LogGroupId) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, id)
}

func (n *fakeNotifier) notifiedIDs() []journal.LogGroupId {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]journal.LogGroupId{}, n.notified...)
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestReleaser(h *fakeHandler, d *fakeDirtyIndex, n *fakeNotifier) *Releaser {
	r := New(testLogger(), WithHandler(h))
	if err := r.Init(n, nil, d, nil, nil, nil); err != nil {
		panic(err)
	}
	return r
}

func TestReleaser_StartsImmediatelyWhenIdle(t *testing.T) {
	h := &fakeHandler{autoDone: true}
	d := &fakeDirtyIndex{}
	n := &fakeNotifier{}
	r := newTestReleaser(h, d, n)

	r.AddToFullLogGroup(1)

	require.False(t, r.Failed())
	require.Equal(t, 0, r.GetNumFullLogGroups())
	require.Equal(t, journal.NoGroup, r.GetFlushingLogGroupId())
	require.Equal(t, []journal.LogGroupId{1}, d.clearedIDs())
	require.Equal(t, []journal.LogGroupId{1}, n.notifiedIDs())
}

func TestReleaser_QueuesFIFOWhileFlushing(t *testing.T) {
	h := &fakeHandler{}
	d := &fakeDirtyIndex{}
	n := &fakeNotifier{}
	r := newTestReleaser(h, d, n)

	r.AddToFullLogGroup(1)
	r.AddToFullLogGroup(2)
	r.AddToFullLogGroup(3)

	require.Equal(t, journal.LogGroupId(1), r.GetFlushingLogGroupId())
	require.Equal(t, 3, r.GetNumFullLogGroups())
	require.Equal(t, []journal.LogGroupId{1, 2, 3}, r.GetFullLogGroups())
	require.Equal(t, []journal.LogGroupId{1}, h.startedIDs())

	h.complete(1, nil)
	require.Equal(t, journal.LogGroupId(2), r.GetFlushingLogGroupId())
	require.Equal(t, 2, r.GetNumFullLogGroups())
	require.Equal(t, []journal.LogGroupId{1, 2}, h.startedIDs())

	h.complete(2, nil)
	require.Equal(t, journal.LogGroupId(3), r.GetFlushingLogGroupId())
	require.Equal(t, 1, r.GetNumFullLogGroups())

	h.complete(3, nil)
	require.Equal(t, journal.NoGroup, r.GetFlushingLogGroupId())
	require.Equal(t, 0, r.GetNumFullLogGroups())

	require.Equal(t, []journal.LogGroupId{1, 2, 3}, d.clearedIDs())
	require.Equal(t, []journal.LogGroupId{1, 2, 3}, n.notifiedIDs())
}

func TestReleaser_CheckpointFailureFailsJournaled(t *testing.T) {
	h := &fakeHandler{autoDone: true, doneErr: errors.New("bad sector")}
	d := &fakeDirtyIndex{}
	n := &fakeNotifier{}
	r := newTestReleaser(h, d, n)

	r.AddToFullLogGroup(1)
	require.True(t, r.Failed())

	r.AddToFullLogGroup(2)
	require.Equal(t, []journal.LogGroupId{1}, h.startedIDs(), "no group may start once fail-journaled")
	require.Empty(t, d.clearedIDs())
	require.Empty(t, n.notifiedIDs())
}

func TestReleaser_DirtyIndexErrorFailsJournaledWithoutStartingHandler(t *testing.T) {
	h := &fakeHandler{autoDone: true}
	d := &fakeDirtyIndex{pagesErr: errors.New("cache unavailable")}
	n := &fakeNotifier{}
	r := newTestReleaser(h, d, n)

	r.AddToFullLogGroup(1)

	require.True(t, r.Failed())
	require.Empty(t, h.startedIDs())
}

func TestReleaser_InitTwiceErrors(t *testing.T) {
	h := &fakeHandler{}
	d := &fakeDirtyIndex{}
	n := &fakeNotifier{}
	r := newTestReleaser(h, d, n)

	err := r.Init(n, nil, d, nil, nil, nil)
	require.Error(t, err)
}

func TestReleaser_AddBeforeInitDoesNotPanic(t *testing.T) {
	r := New(testLogger())
	require.NotPanics(t, func() {
		r.AddToFullLogGroup(1)
	})
	require.Equal(t, 0, r.GetNumFullLogGroups())
}

func TestReleaser_Reset(t *testing.T) {
	h := &fakeHandler{}
	d := &fakeDirtyIndex{}
	n := &fakeNotifier{}
	r := newTestReleaser(h, d, n)

	r.AddToFullLogGroup(1)
	r.AddToFullLogGroup(2)
	require.Equal(t, 2, r.GetNumFullLogGroups())

	require.NoError(t, r.Reset())
	require.Equal(t, 0, r.GetNumFullLogGroups())
	require.Equal(t, journal.NoGroup, r.GetFlushingLogGroupId())
	require.False(t, r.Failed())
}
