package reflux

import (
	"context"
	"sync"
)

// hub multicasts values to attached subscribers and replays the latest value
// to every new subscriber. Delivery is synchronous: publish returns only after
// every subscriber has seen the value, which keeps all observers in lockstep.
type hub[T any] struct {
	// deliver serializes publish against attach/detach so a subscriber never
	// observes values out of order or after it has detached.
	deliver sync.Mutex

	mu     sync.Mutex
	subs   []subscriber[T]
	nextID uint64
	latest T
	has    bool
	closed bool
	err    error
	done   chan struct{}
}

type subscriber[T any] struct {
	id    uint64
	yield func(T)
}

func newHub[T any]() *hub[T] {
	return &hub[T]{done: make(chan struct{})}
}

// publish stores v as the latest value and delivers it to all subscribers.
func (h *hub[T]) publish(v T) {
	h.deliver.Lock()
	defer h.deliver.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.latest = v
	h.has = true
	subs := make([]subscriber[T], len(h.subs))
	copy(subs, h.subs)
	h.mu.Unlock()

	for _, s := range subs {
		s.yield(v)
	}
}

// current returns the latest published value.
func (h *hub[T]) current() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.has
}

// close ends the hub. Attached subscribers return err.
func (h *hub[T]) close(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.err = err
	h.subs = nil
	close(h.done)
}

// attach subscribes yield, replays the latest value synchronously, and blocks
// until ctx is canceled or the hub closes.
func (h *hub[T]) attach(ctx context.Context, yield func(T)) error {
	id, ok, err := h.register(yield)
	if !ok {
		return err
	}
	return h.wait(ctx, id)
}

// register adds yield as a subscriber and replays the latest value to it.
// If the hub is already closed, ok is false and err is the hub's error.
func (h *hub[T]) register(yield func(T)) (id uint64, ok bool, err error) {
	h.deliver.Lock()
	defer h.deliver.Unlock()

	h.mu.Lock()
	if h.closed {
		err := h.err
		h.mu.Unlock()
		return 0, false, err
	}
	h.nextID++
	id = h.nextID
	h.subs = append(h.subs, subscriber[T]{id: id, yield: yield})
	latest, has := h.latest, h.has
	h.mu.Unlock()

	if has {
		yield(latest)
	}
	return id, true, nil
}

// wait blocks until ctx is canceled, detaching id, or the hub closes.
func (h *hub[T]) wait(ctx context.Context, id uint64) error {
	select {
	case <-ctx.Done():
		h.detach(id)
		return ctx.Err()
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.err
	}
}

func (h *hub[T]) detach(id uint64) {
	h.deliver.Lock()
	defer h.deliver.Unlock()
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.subs {
		if s.id == id {
			h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
			return
		}
	}
}

// connection is one activation of a shared source.
type connection[T any] struct {
	hub    *hub[T]
	ctx    context.Context
	cancel context.CancelFunc
	refs   int
}

// shared reference-counts subscribers of a source that publishes into a hub.
type shared[T any] struct {
	mu   sync.Mutex
	run  func(ctx context.Context, h *hub[T]) error
	conn *connection[T]
}

// Share multicasts src to all subscribers with replay of the latest value.
//
// The first subscriber connects src; later subscribers attach to the same
// connection and immediately receive the most recent value. When the last
// subscriber cancels, src is canceled and the replay buffer is discarded;
// the next subscriber connects afresh.
func Share[T any](src Stream[T]) Stream[T] {
	return shareHub(func(ctx context.Context, h *hub[T]) error {
		return src(ctx, h.publish)
	})
}

func shareHub[T any](run func(ctx context.Context, h *hub[T]) error) Stream[T] {
	s := &shared[T]{run: run}
	return s.subscribe
}

func (s *shared[T]) subscribe(ctx context.Context, yield func(T)) error {
	var (
		id  uint64
		ok  bool
		err error
	)

	s.mu.Lock()
	c := s.conn
	fresh := c == nil
	if fresh {
		// The first subscriber is registered before the source starts so it
		// observes every value from the beginning.
		c = s.open(ctx)
		id, ok, err = c.hub.register(yield)
		s.start(c)
	}
	c.refs++
	s.mu.Unlock()

	if !fresh {
		id, ok, err = c.hub.register(yield)
	}
	if ok {
		err = c.hub.wait(ctx, id)
	}

	s.mu.Lock()
	c.refs--
	if c.refs == 0 && s.conn == c {
		s.conn = nil
		c.cancel()
	}
	s.mu.Unlock()
	return err
}

// open creates a connection without starting it. Callers hold s.mu.
func (s *shared[T]) open(ctx context.Context) *connection[T] {
	cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &connection[T]{hub: newHub[T](), ctx: cctx, cancel: cancel}
	s.conn = c
	return c
}

// start runs the source for c. Callers hold s.mu.
func (s *shared[T]) start(c *connection[T]) {
	go func() {
		err := s.run(c.ctx, c.hub)
		c.hub.close(err)
		c.cancel()
		s.mu.Lock()
		if s.conn == c {
			s.conn = nil
		}
		s.mu.Unlock()
	}()
}

// tap is a hub subscription registered before its consumer exists. Values
// published in the meantime are buffered and handed, in order, to the first
// subscriber of the tap's stream, which then receives every later value in
// lockstep with the hub. Later subscribers attach to the hub directly.
type tap[T any] struct {
	hub *hub[T]
	id  uint64

	mu       sync.Mutex
	buffered []T
	live     func(T)
	taken    bool
	released bool
}

func newTap[T any](h *hub[T]) *tap[T] {
	t := &tap[T]{hub: h}
	id, ok, _ := h.register(t.deliver)
	t.id = id
	if !ok {
		t.released = true
	}
	return t
}

func (t *tap[T]) deliver(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.live != nil:
		t.live(v)
	case !t.released:
		t.buffered = append(t.buffered, v)
	}
}

func (t *tap[T]) stream() Stream[T] {
	return t.subscribe
}

func (t *tap[T]) subscribe(ctx context.Context, yield func(T)) error {
	if !t.take(yield) {
		return t.hub.attach(ctx, yield)
	}
	err := t.hub.wait(ctx, t.id)

	t.mu.Lock()
	t.live = nil
	t.released = true
	t.mu.Unlock()
	return err
}

// take replays the buffer to yield and makes it the live consumer. It
// reports false when the tap was already taken or released.
func (t *tap[T]) take(yield func(T)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.taken || t.released {
		return false
	}
	t.taken = true

	buffered := t.buffered
	t.buffered = nil
	defer func() {
		// yield panicked mid-replay.
		if t.live == nil {
			t.released = true
		}
	}()
	for _, v := range buffered {
		yield(v)
	}
	t.live = yield
	return true
}

// release stops buffering for a consumer that will never subscribe.
func (t *tap[T]) release() {
	t.mu.Lock()
	t.released = true
	t.buffered = nil
	live := t.live != nil
	t.mu.Unlock()
	if !live {
		t.hub.detach(t.id)
	}
}
