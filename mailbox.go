package reflux

import "sync"

// mailbox is the single entry point for events into the fold. Pushes never
// block, so feedbacks may emit while the fold is delivering state to them.
// Events are dequeued in arrival order.
type mailbox[E any] struct {
	mu      sync.Mutex
	pending []E
	ready   chan struct{}
}

func newMailbox[E any]() *mailbox[E] {
	return &mailbox[E]{ready: make(chan struct{}, 1)}
}

// push enqueues an event and wakes the fold.
func (m *mailbox[E]) push(e E) {
	m.mu.Lock()
	m.pending = append(m.pending, e)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// pop removes the oldest event.
func (m *mailbox[E]) pop() (E, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		var zero E
		return zero, false
	}
	e := m.pending[0]
	var zero E
	m.pending[0] = zero
	m.pending = m.pending[1:]
	if len(m.pending) == 0 {
		m.pending = nil
	}
	return e, true
}

// len reports the number of queued events.
func (m *mailbox[E]) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
