// Package checkpoint implements the C6 Checkpoint Handler: it runs one
// log group's checkpoint end to end — flushing dirty map pages and
// allocator context, coordinating with the callback sequence gate, then
// resetting the log-buffer region — and reports completion once.
package checkpoint

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	deadlock "github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"DaemonJournal/journal"
	"DaemonJournal/journal/trace"
)

// Handler runs checkpoints one at a time. Start rejects a call made while
// a previous checkpoint is still live; the releaser serializes its own
// calls to Start so that rejection is not normally hit.
type Handler struct {
	logger logrus.FieldLogger

	gate       journal.SequenceGate
	mapFlusher journal.MapFlusher
	contextMgr journal.ContextManager
	logBuffer  journal.LogBuffer

	mu     deadlock.Mutex // phase lock: guards status, never held across a blocking call
	status Status
	failed atomic.Bool
}

// New creates an uninitialized handler; call Init before Start.
func New(logger logrus.FieldLogger) *Handler {
	return &Handler{logger: logger, status: StatusIdle}
}

// Init wires the handler's collaborators. Must be called once, before
// the first Start.
func (h *Handler) Init(gate journal.SequenceGate, mapFlusher journal.MapFlusher, contextMgr journal.ContextManager, logBuffer journal.LogBuffer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gate = gate
	h.mapFlusher = mapFlusher
	h.contextMgr = contextMgr
	h.logBuffer = logBuffer
}

// Status reports the handler's current phase.
func (h *Handler) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *Handler) setStatus(s Status) {
	h.mu.Lock()
	h.status = s
	h.mu.Unlock()
}

// beginIfIdle atomically transitions the handler from StatusIdle to
// StatusAcquiringGate, rejecting the call with ErrCheckpointInProgress if
// a prior checkpoint is still live. The check and the transition happen
// under the same lock so two concurrent Start calls can't both see Idle.
func (h *Handler) beginIfIdle() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status != StatusIdle {
		return journal.ErrCheckpointInProgress
	}
	h.status = StatusAcquiringGate
	return nil
}

// Failed reports whether the handler has entered its terminal
// fail-journaled mode. Once true it stays true; the journal never
// retries a failed checkpoint.
func (h *Handler) Failed() bool {
	return h.failed.Load()
}

// Start runs one checkpoint for id against the given dirty page set. It
// rejects a call made while a prior checkpoint is still live (status not
// StatusIdle). Otherwise it blocks until it has acquired the sequence
// gate, hands the pages to the map flusher, and returns; the rest of the
// pipeline runs from the flusher's callback. onComplete fires exactly
// once, from whatever goroutine the last collaborator callback lands on.
func (h *Handler) Start(id journal.LogGroupId, pages journal.MapPageList, onComplete func(id journal.LogGroupId, err error)) error {
	if h.failed.Load() {
		return journal.ErrFailJournaled
	}

	if err := h.beginIfIdle(); err != nil {
		return err
	}

	log := h.logger.WithField("log_group", id.String()).WithField("checkpoint_id", uuid.New().String())
	log.WithField("event", trace.EventCheckpointStart).Info("checkpoint starting")

	h.gate.AcquireForCheckpoint()
	log.WithField("event", trace.EventGateAcquired).Debug("sequence gate acquired")

	h.setStatus(StatusFlushingPages)
	log.WithField("event", trace.EventMapFlushStart).WithField("page_count", len(pages)).Debug("flushing dirty map pages")

	h.mapFlusher.FlushDirtyMpages(pages.PageIDs(), func(err error) {
		if err != nil {
			h.gate.ReleaseFromCheckpoint()
			h.fail(log, fmt.Errorf("flush dirty map pages: %w", err))
			onComplete(id, journal.ErrFailJournaled)
			return
		}
		log.WithField("event", trace.EventMapFlushDone).Debug("map pages flushed")

		h.setStatus(StatusFlushingContext)
		if err := h.contextMgr.FlushContext(); err != nil {
			h.gate.ReleaseFromCheckpoint()
			h.fail(log, fmt.Errorf("flush allocator context: %w", err))
			onComplete(id, journal.ErrFailJournaled)
			return
		}
		log.WithField("event", trace.EventContextFlushed).Debug("allocator context flushed")

		// The group's contents are durable now. Release the gate so
		// front-end writes can resume against later groups while this
		// (already closed) group's region gets reset.
		h.gate.ReleaseFromCheckpoint()
		log.WithField("event", trace.EventGateReleased).Debug("sequence gate released")

		h.setStatus(StatusResettingBuffer)
		log.WithField("event", trace.EventResetStart).Debug("resetting log-buffer region")

		resetErr := h.logBuffer.AsyncReset(id, func(resetID journal.LogGroupId, err error) {
			if err != nil {
				h.fail(log, fmt.Errorf("reset log group %s: %w", resetID, err))
				onComplete(resetID, journal.ErrFailJournaled)
				return
			}
			log.WithField("event", trace.EventResetDone).Debug("log-buffer region reset")
			h.setStatus(StatusIdle)
			log.WithField("event", trace.EventCheckpointDone).Info("checkpoint complete")
			onComplete(resetID, nil)
		})
		if resetErr != nil {
			h.fail(log, fmt.Errorf("start log group reset: %w", resetErr))
			onComplete(id, journal.ErrFailJournaled)
		}
	})

	return nil
}

// fail flips the handler into its terminal fail-journaled mode.
func (h *Handler) fail(log logrus.FieldLogger, cause error) {
	h.failed.Store(true)
	h.setStatus(StatusFailed)
	log.WithField("event", trace.EventFailJournaled).WithError(cause).Error("checkpoint failed, journal is fail-journaled")
}
