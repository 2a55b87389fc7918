// Package notifier implements the C5 Release Notifier: it broadcasts
// log-group release completion to whoever is waiting for buffer space to
// free up (typically front-end callers blocked because every group is
// full).
package notifier

import (
	"sync"

	"github.com/sirupsen/logrus"

	"DaemonJournal/journal"
)

// Notifier is a simple fan-out broadcaster over buffered channels.
type Notifier struct {
	logger logrus.FieldLogger

	mu   sync.Mutex
	subs map[chan journal.LogGroupId]struct{}
}

// New creates an empty notifier.
func New(logger logrus.FieldLogger) *Notifier {
	return &Notifier{
		logger: logger,
		subs:   make(map[chan journal.LogGroupId]struct{}),
	}
}

// Subscribe registers interest in release events. The returned channel
// is buffered so NotifyReleased never blocks on a slow subscriber; callers
// must drain it. Unsubscribe when done listening.
func (n *Notifier) Subscribe() chan journal.LogGroupId {
	ch := make(chan journal.LogGroupId, 8)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (n *Notifier) Unsubscribe(ch chan journal.LogGroupId) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.subs[ch]; ok {
		delete(n.subs, ch)
		close(ch)
	}
}

// NotifyReleased is the journal.Notifier implementation: it fans the
// released group id out to every subscriber, dropping the notification
// for any subscriber whose buffer is full rather than blocking.
func (n *Notifier) NotifyReleased(id journal.LogGroupId) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.subs {
		select {
		case ch <- id:
		default:
			n.logger.WithField("log_group", id.String()).Warn("release subscriber channel full, dropping notification")
		}
	}
}
