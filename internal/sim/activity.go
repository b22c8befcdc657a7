package sim

import "sync"

const DefaultLogCapacity = 200

// ActivityLog keeps the most recent switch events in a fixed-size ring.
// Once full, the oldest entry is evicted on every append.
type ActivityLog struct {
	mu      sync.RWMutex
	buf     []SwitchEvent
	next    int
	size    int
	dropped int
}

func NewActivityLog(capacity int) *ActivityLog {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &ActivityLog{buf: make([]SwitchEvent, capacity)}
}

func (l *ActivityLog) Append(ev SwitchEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.size == len(l.buf) {
		l.dropped++
	} else {
		l.size++
	}
	l.buf[l.next] = ev
	l.next = (l.next + 1) % len(l.buf)
}

// Recent returns up to limit events, newest first. limit <= 0 means all.
func (l *ActivityLog) Recent(limit int) []SwitchEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := l.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]SwitchEvent, 0, n)
	for i := 1; i <= n; i++ {
		idx := (l.next - i + len(l.buf)) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out
}

func (l *ActivityLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Dropped is the number of events evicted so far.
func (l *ActivityLog) Dropped() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dropped
}

func (l *ActivityLog) Capacity() int { return len(l.buf) }
