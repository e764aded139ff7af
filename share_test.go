package reflux

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestShare_SingleConnection(t *testing.T) {
	var connects atomic.Int32
	ch := make(chan int)
	src := Share(func(ctx context.Context, yield func(int)) error {
		connects.Add(1)
		return FromChannel(ch)(ctx, yield)
	})

	a := record(t, src)
	b := record(t, src)

	ch <- 1
	if !a.waitLast(t, func(v int) bool { return v == 1 }) || !b.waitLast(t, func(v int) bool { return v == 1 }) {
		t.Fatal("expected both subscribers to receive 1")
	}
	if n := connects.Load(); n != 1 {
		t.Errorf("expected a single connection, got %d", n)
	}
}

func TestShare_ReplaysLatestOnly(t *testing.T) {
	ch := make(chan int)
	src := Share(FromChannel(ch))

	first := record(t, src)
	for i := 1; i <= 3; i++ {
		ch <- i
	}
	if !first.waitLast(t, func(v int) bool { return v == 3 }) {
		t.Fatal("expected first subscriber to reach 3")
	}

	late := record(t, src)
	if !late.waitLast(t, func(v int) bool { return v == 3 }) {
		t.Fatal("expected late subscriber to receive the latest value")
	}
	if got := late.snapshot(); !equalSlices(got, []int{3}) {
		t.Errorf("expected late subscriber to see only [3], got %v", got)
	}
}

func TestShare_FirstSubscriberSeesEverything(t *testing.T) {
	src := Share(Just(1, 2, 3))
	r := record(t, src)

	if err := r.waitDone(t); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := r.snapshot(); !equalSlices(got, []int{1, 2, 3}) {
		t.Errorf("expected [1 2 3], got %v", got)
	}
}

func TestShare_ReconnectsAfterLastUnsubscribe(t *testing.T) {
	var connects, disconnects atomic.Int32
	src := Share(func(ctx context.Context, yield func(int)) error {
		n := connects.Add(1)
		yield(int(n))
		<-ctx.Done()
		disconnects.Add(1)
		return ctx.Err()
	})

	a := record(t, src)
	if !a.waitLast(t, func(v int) bool { return v == 1 }) {
		t.Fatal("expected first activation")
	}
	a.stop()

	if !waitFor(t, time.Second, func() bool { return disconnects.Load() == 1 }) {
		t.Fatal("expected source to be canceled after the last subscriber left")
	}

	b := record(t, src)
	if !b.waitLast(t, func(v int) bool { return v == 2 }) {
		t.Fatal("expected a fresh activation without the previous replay")
	}
	if got := b.snapshot(); got[0] != 2 {
		t.Errorf("expected stale value to be discarded, got %v", got)
	}
}

func TestShare_PropagatesTerminalError(t *testing.T) {
	src := Share(Fail[int](ErrStreamFailed))
	r := record(t, src)
	if err := r.waitDone(t); err != ErrStreamFailed {
		t.Errorf("expected ErrStreamFailed, got %v", err)
	}
}

func TestHub_NoDeliveryAfterDetach(t *testing.T) {
	h := newHub[int]()
	ctx, cancel := context.WithCancel(context.Background())

	var got atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.attach(ctx, func(int) { got.Add(1) })
	}()

	if !waitFor(t, time.Second, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.subs) == 1
	}) {
		t.Fatal("subscriber never attached")
	}
	h.publish(1)
	cancel()
	<-done
	h.publish(2)

	if n := got.Load(); n != 1 {
		t.Errorf("expected exactly one delivery, got %d", n)
	}
}

func TestTap_ReplaysBufferedThenLive(t *testing.T) {
	h := newHub[int]()
	tp := newTap(h)
	h.publish(1)
	h.publish(2)

	r := record(t, tp.stream())
	if !r.waitLast(t, func(v int) bool { return v == 2 }) {
		t.Fatalf("expected buffered values, got %v", r.snapshot())
	}
	h.publish(3)
	if !r.waitLast(t, func(v int) bool { return v == 3 }) {
		t.Fatalf("expected live value, got %v", r.snapshot())
	}
	if got := r.snapshot(); !equalSlices(got, []int{1, 2, 3}) {
		t.Errorf("expected [1 2 3], got %v", got)
	}

	again := record(t, tp.stream())
	if !again.waitLast(t, func(v int) bool { return v == 3 }) {
		t.Fatal("expected a second subscriber to attach with the latest value")
	}
	if got := again.snapshot(); !equalSlices(got, []int{3}) {
		t.Errorf("expected only [3], got %v", got)
	}
}

func TestTap_ReleaseStopsBuffering(t *testing.T) {
	h := newHub[int]()
	tp := newTap(h)
	h.publish(1)
	tp.release()
	h.publish(2)

	tp.mu.Lock()
	buffered := len(tp.buffered)
	tp.mu.Unlock()
	if buffered != 0 {
		t.Errorf("expected no buffered values after release, got %d", buffered)
	}

	h.mu.Lock()
	subs := len(h.subs)
	h.mu.Unlock()
	if subs != 0 {
		t.Errorf("expected the tap to detach from the hub, got %d subscribers", subs)
	}
}
