package sequencegate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGate_CheckpointExcludesCallback(t *testing.T) {
	g := New()

	g.AcquireForCheckpoint()

	acquired := make(chan struct{})
	go func() {
		g.AcquireForCallback()
		close(acquired)
		g.ReleaseFromCallback()
	}()

	select {
	case <-acquired:
		t.Fatal("callback acquired the gate while a checkpoint held it")
	case <-time.After(50 * time.Millisecond):
	}

	g.ReleaseFromCheckpoint()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("callback never acquired the gate after checkpoint released it")
	}
}

func TestGate_SequentialAcquireRelease(t *testing.T) {
	g := New()
	require.NotPanics(t, func() {
		g.AcquireForCallback()
		g.ReleaseFromCallback()
		g.AcquireForCheckpoint()
		g.ReleaseFromCheckpoint()
	})
}
