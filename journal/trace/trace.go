// Package trace names the diagnostic events the journal core emits while
// running a checkpoint, so callers can attach a single logrus hook and
// get a consistent event vocabulary instead of ad-hoc message strings.
package trace

// Event is the name of a diagnostic point in the log-group release
// pipeline, logged via logrus's WithField("event", ...).
type Event string

const (
	EventGroupQueued       Event = "group_queued"
	EventCheckpointStart   Event = "checkpoint_start"
	EventGateAcquired      Event = "gate_acquired"
	EventGateReleased      Event = "gate_released"
	EventMapFlushStart     Event = "map_flush_start"
	EventMapFlushDone      Event = "map_flush_done"
	EventContextFlushed    Event = "context_flushed"
	EventResetStart        Event = "reset_start"
	EventResetDone         Event = "reset_done"
	EventCheckpointDone    Event = "checkpoint_done"
	EventNextGroupStarted  Event = "next_group_started"
	EventFailJournaled     Event = "fail_journaled"
)
