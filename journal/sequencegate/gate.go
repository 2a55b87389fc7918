// Package sequencegate implements the C4 Callback Sequence Gate: mutual
// exclusion between the checkpoint handler's flush phase and the
// front-end write callback, so a checkpoint never reads a dirty-page
// snapshot mid-write.
package sequencegate

import "sync"

// Gate serializes checkpoint execution against front-end write
// callbacks. The front-end side is already single-writer by the
// journal's own invariants, so this is a plain mutex with named
// acquire/release pairs rather than a reader/writer lock.
type Gate struct {
	mu sync.Mutex
}

// New creates an open gate.
func New() *Gate {
	return &Gate{}
}

// AcquireForCheckpoint blocks until no front-end callback holds the
// gate, then holds it until ReleaseFromCheckpoint.
func (g *Gate) AcquireForCheckpoint() {
	g.mu.Lock()
}

// ReleaseFromCheckpoint releases the gate after a checkpoint phase.
func (g *Gate) ReleaseFromCheckpoint() {
	g.mu.Unlock()
}

// AcquireForCallback blocks until no checkpoint holds the gate, then
// holds it for the duration of one front-end write callback.
func (g *Gate) AcquireForCallback() {
	g.mu.Lock()
}

// ReleaseFromCallback releases the gate after a front-end write
// callback completes.
func (g *Gate) ReleaseFromCallback() {
	g.mu.Unlock()
}
