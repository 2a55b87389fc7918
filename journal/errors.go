package journal

import "errors"

// ErrFailJournaled is returned by the checkpoint handler's Start once the
// handler has entered its terminal failure mode, and is passed to the
// completion callback of a checkpoint that fails. The releaser's entry
// points do not return it; its failed state is reported by Failed.
// The journal does not retry: any I/O or collaborator failure during a
// checkpoint poisons the whole pipeline, because a partially-flushed log
// group cannot be safely reset or replayed.
var ErrFailJournaled = errors.New("journal: fail-journaled, log-group release pipeline is halted")

// ErrNotInitialized names the error of using the releaser before Init.
// No entry point returns it: AddToFullLogGroup called before Init logs
// an error and drops the call.
var ErrNotInitialized = errors.New("journal: releaser used before Init")

// ErrCheckpointInProgress is returned by the checkpoint handler's Start
// when a checkpoint is already running. The releaser serializes calls to
// Start on its own, so this only fires if something bypasses it.
var ErrCheckpointInProgress = errors.New("journal: a checkpoint is already in progress")
