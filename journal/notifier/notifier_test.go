package notifier

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"DaemonJournal/journal"
)

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestNotifier_FansOutToAllSubscribers(t *testing.T) {
	n := New(testLogger())
	a := n.Subscribe()
	b := n.Subscribe()

	n.NotifyReleased(7)

	select {
	case id := <-a:
		require.Equal(t, journal.LogGroupId(7), id)
	case <-time.After(time.Second):
		t.Fatal("subscriber a never received notification")
	}

	select {
	case id := <-b:
		require.Equal(t, journal.LogGroupId(7), id)
	case <-time.After(time.Second):
		t.Fatal("subscriber b never received notification")
	}
}

func TestNotifier_UnsubscribeStopsDelivery(t *testing.T) {
	n := New(testLogger())
	ch := n.Subscribe()
	n.Unsubscribe(ch)

	n.NotifyReleased(1)

	_, ok := <-ch
	require.False(t, ok, "channel should be closed after unsubscribe")
}

func TestNotifier_FullBufferDoesNotBlock(t *testing.T) {
	n := New(testLogger())
	ch := n.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			n.NotifyReleased(journal.LogGroupId(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("NotifyReleased blocked on a full subscriber buffer")
	}

	require.NotEmpty(t, ch)
}
