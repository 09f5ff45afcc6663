package admin

import (
	"iter"
	"sync"
	"time"
)

// EventType names the kind of event delivered to mailbox subscribers.
type EventType string

const (
	// EventCircuitReady fires once every member of a circuit has reported
	// MEMBER_READY.
	EventCircuitReady EventType = "CircuitReady"
	// EventProposalFailed fires when a proposal aborts, whether from
	// coordinator timeout or an explicit reject.
	EventProposalFailed EventType = "ProposalFailed"
)

// Event is one occurrence recorded in the mailbox.
type Event struct {
	Timestamp  time.Time
	Type       EventType
	ProposalID string
	CircuitID  string
	Detail     string
}

// Mailbox is the admin service's in-memory event log. Events append in
// arrival order, which — since Timestamp is assigned at append time under
// the same lock — is also timestamp order.
type Mailbox struct {
	mu     sync.RWMutex
	events []Event
}

// NewMailbox creates an empty Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Publish appends an event, stamping it with the current time.
func (m *Mailbox) Publish(evt Event) Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	evt.Timestamp = time.Now()
	m.events = append(m.events, evt)
	return evt
}

// Since returns a lazy, finite, restartable sequence of the events
// published at or after since, in timestamp order. Each call snapshots
// the mailbox under a read lock, so concurrent Publish calls never
// corrupt an in-progress iteration, and the same call can be replayed
// from scratch by range-ing over it again.
func (m *Mailbox) Since(since time.Time) iter.Seq2[time.Time, Event] {
	m.mu.RLock()
	snapshot := make([]Event, len(m.events))
	copy(snapshot, m.events)
	m.mu.RUnlock()

	return func(yield func(time.Time, Event) bool) {
		for _, evt := range snapshot {
			if evt.Timestamp.Before(since) {
				continue
			}
			if !yield(evt.Timestamp, evt) {
				return
			}
		}
	}
}
