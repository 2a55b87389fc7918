// Package releaser implements the C7 Log-Group Releaser: the state
// machine that admits filled log groups into a FIFO queue, guarantees at
// most one checkpoint runs at a time, and drives the checkpoint handler
// for each group in turn. Its sequencing is grounded directly on the
// original log-group release pipeline's admission logic: a CAS-guarded
// "checkpoint trigger in progress" flag decides whether AddToFullLogGroup
// starts a checkpoint immediately or merely enqueues, and the queue lock
// is never held across the (potentially blocking) call into the
// checkpoint handler.
package releaser

import (
	"fmt"
	"sync/atomic"

	deadlock "github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"DaemonJournal/journal"
	"DaemonJournal/journal/checkpoint"
	"DaemonJournal/journal/trace"
)

// handler is the subset of *checkpoint.Handler the releaser depends on,
// kept local so tests can supply a fake without the checkpoint package's
// real gate/flusher/context-manager wiring.
type handler interface {
	Start(id journal.LogGroupId, pages journal.MapPageList, onComplete func(id journal.LogGroupId, err error)) error
	Failed() bool
	Status() checkpoint.Status
}

// Releaser is the C7 collaborator. It is safe for concurrent use:
// AddToFullLogGroup is expected to be called from front-end write
// callbacks as groups fill.
type Releaser struct {
	logger logrus.FieldLogger

	notifier   journal.Notifier
	dirtyIndex journal.DirtyIndex
	handler    handler

	initialized atomic.Bool
	failed      atomic.Bool

	// triggerInProgress is the CAS-guarded admission gate: exactly one
	// goroutine may transition it false->true, and that goroutine is the
	// only one allowed to pop the queue and start a checkpoint. It is
	// intentionally separate from mu so AddToFullLogGroup never holds mu
	// across the (blocking, collaborator-calling) attempt to start one.
	triggerInProgress atomic.Bool

	mu              deadlock.Mutex // guards queue and flushingGroupId only
	queue           []journal.LogGroupId
	flushingGroupId journal.LogGroupId
}

// New creates a Releaser. Init must be called before AddToFullLogGroup.
func New(logger logrus.FieldLogger, opts ...Option) *Releaser {
	r := &Releaser{
		logger:          logger,
		flushingGroupId: journal.NoGroup,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Init wires the releaser's collaborators and, unless WithHandler was
// used, builds the default checkpoint.Handler from gate/mapFlusher/
// contextMgr/logBuffer. Must be called exactly once.
func (r *Releaser) Init(notifier journal.Notifier, logBuffer journal.LogBuffer, dirtyIndex journal.DirtyIndex,
	gate journal.SequenceGate, mapFlusher journal.MapFlusher, contextMgr journal.ContextManager) error {
	if !r.initialized.CompareAndSwap(false, true) {
		return fmt.Errorf("releaser: Init called more than once")
	}

	r.notifier = notifier
	r.dirtyIndex = dirtyIndex

	if r.handler == nil {
		h := checkpoint.New(r.logger.WithField("component", "checkpoint_handler"))
		h.Init(gate, mapFlusher, contextMgr, logBuffer)
		r.handler = h
	}

	return nil
}

// Reset clears all queued/flushing state and the fail-journaled flag. It
// exists for callers that rebuild the journal core after a supervised
// restart; it does not attempt to recover in-flight work, since a failed
// checkpoint's log group is, by construction, in an unknown state.
func (r *Releaser) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = nil
	r.flushingGroupId = journal.NoGroup
	r.failed.Store(false)
	r.triggerInProgress.Store(false)
	return nil
}

// AddToFullLogGroup enqueues id for checkpointing. If no checkpoint is
// currently running, this call starts one immediately (synchronously
// kicking off the handler, though the handler itself completes
// asynchronously); otherwise id simply joins the FIFO queue.
func (r *Releaser) AddToFullLogGroup(id journal.LogGroupId) {
	if !r.initialized.Load() {
		r.logger.Error("AddToFullLogGroup called before Init")
		return
	}

	r.mu.Lock()
	r.queue = append(r.queue, id)
	queueLen := len(r.queue)
	r.mu.Unlock()

	r.logger.WithField("log_group", id.String()).WithField("queue_len", queueLen).
		WithField("event", trace.EventGroupQueued).Info("log group queued for checkpoint")

	r.tryStartNext()
}

// tryStartNext admits the next queued group into a checkpoint if, and
// only if, no checkpoint is currently running. It is called both from
// AddToFullLogGroup and from CheckpointCompleted, so whichever call finds
// the queue non-empty after acquiring the trigger is the one that starts
// the next group — there is no polling.
func (r *Releaser) tryStartNext() {
	if r.failed.Load() {
		return
	}
	if !r.triggerInProgress.CompareAndSwap(false, true) {
		return
	}

	r.mu.Lock()
	if len(r.queue) == 0 {
		r.mu.Unlock()
		r.triggerInProgress.Store(false)
		return
	}
	id := r.queue[0]
	r.queue = r.queue[1:]
	r.flushingGroupId = id
	r.mu.Unlock()

	pages, err := r.dirtyIndex.PagesFor(id)
	if err != nil {
		r.fail(fmt.Errorf("compute dirty pages for log group %s: %w", id, err))
		return
	}

	if err := r.handler.Start(id, pages, r.CheckpointCompleted); err != nil {
		r.fail(fmt.Errorf("start checkpoint for log group %s: %w", id, err))
	}
}

// CheckpointCompleted is the journal.CompletionSink callback the
// checkpoint handler invokes once per checkpoint, success or failure.
func (r *Releaser) CheckpointCompleted(id journal.LogGroupId, err error) {
	if err != nil {
		r.fail(fmt.Errorf("checkpoint failed for log group %s: %w", id, err))
		return
	}

	if err := r.dirtyIndex.Clear(id); err != nil {
		r.fail(fmt.Errorf("clear dirty index for log group %s: %w", id, err))
		return
	}

	r.notifier.NotifyReleased(id)

	r.mu.Lock()
	r.flushingGroupId = journal.NoGroup
	r.mu.Unlock()

	r.triggerInProgress.Store(false)

	r.tryStartNext()
}

// fail puts the releaser into its terminal fail-journaled mode. The
// trigger flag is deliberately left set to true so tryStartNext can
// never admit another checkpoint afterward.
func (r *Releaser) fail(cause error) {
	r.failed.Store(true)
	r.logger.WithField("event", trace.EventFailJournaled).WithError(cause).Error("log-group releaser fail-journaled")
}

// Failed reports whether the releaser has entered its terminal mode.
func (r *Releaser) Failed() bool {
	return r.failed.Load()
}

// GetNumFullLogGroups returns the count of groups awaiting or undergoing
// checkpoint: the queue depth plus one if a checkpoint is in flight.
func (r *Releaser) GetNumFullLogGroups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.queue)
	if r.flushingGroupId != journal.NoGroup {
		n++
	}
	return n
}

// GetFlushingLogGroupId returns the group currently under checkpoint, or
// journal.NoGroup if none is.
func (r *Releaser) GetFlushingLogGroupId() journal.LogGroupId {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushingGroupId
}

// GetFullLogGroups returns the groups awaiting or undergoing checkpoint,
// in FIFO order: the flushing group (if any) first, then the queue.
func (r *Releaser) GetFullLogGroups() []journal.LogGroupId {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]journal.LogGroupId, 0, len(r.queue)+1)
	if r.flushingGroupId != journal.NoGroup {
		out = append(out, r.flushingGroupId)
	}
	out = append(out, r.queue...)
	return out
}

// GetStatus reports the checkpoint handler's current phase.
func (r *Releaser) GetStatus() checkpoint.Status {
	if r.handler == nil {
		return checkpoint.StatusIdle
	}
	return r.handler.Status()
}
