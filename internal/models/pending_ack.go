package models

import (
	"sync"
	"time"
)

// PendingAck records a dispatched external event awaiting operator
// acknowledgment. Records live in memory only; an unresolved record fires the
// timeout callback exactly once and is discarded.
type PendingAck struct {
	Operation    string
	URL          string
	BotID        int64
	TargetChat   int64
	TargetThread int
	AgentName    string
}

func (a PendingAck) key() string {
	return a.Operation + "|" + a.URL
}

type pendingAckEntry struct {
	ack   PendingAck
	timer *time.Timer
}

// PendingAckManager keeps pending acknowledgments keyed by (operation, url).
// Registering an existing key cancels and replaces the prior timer so at most
// one live timer exists per key.
type PendingAckManager struct {
	entries   map[string]*pendingAckEntry
	timeout   time.Duration
	onTimeout func(PendingAck)
	mu        sync.Mutex
}

func NewPendingAckManager(timeout time.Duration, onTimeout func(PendingAck)) *PendingAckManager {
	return &PendingAckManager{
		entries:   make(map[string]*pendingAckEntry),
		timeout:   timeout,
		onTimeout: onTimeout,
	}
}

// Register tracks the ack and arms its timeout.
func (m *PendingAckManager) Register(ack PendingAck) {
	key := ack.key()

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.entries[key]; ok {
		prev.timer.Stop()
	}

	entry := &pendingAckEntry{ack: ack}
	entry.timer = time.AfterFunc(m.timeout, func() {
		m.expire(key)
	})
	m.entries[key] = entry
}

// Resolve removes the record and cancels its timer. The second return value
// is false when nothing was pending for the key.
func (m *PendingAckManager) Resolve(operation, url string) (PendingAck, bool) {
	key := PendingAck{Operation: operation, URL: url}.key()

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return PendingAck{}, false
	}
	entry.timer.Stop()
	delete(m.entries, key)
	return entry.ack, true
}

// Pending reports whether the key is still tracked.
func (m *PendingAckManager) Pending(operation, url string) bool {
	key := PendingAck{Operation: operation, URL: url}.key()

	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

func (m *PendingAckManager) expire(key string) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if ok {
		delete(m.entries, key)
	}
	m.mu.Unlock()

	// Resolve may have won the race with the timer; fire only if the entry
	// was still ours to remove.
	if ok && m.onTimeout != nil {
		m.onTimeout(entry.ack)
	}
}
