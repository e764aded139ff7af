package reflux

import (
	"context"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

// settle gives the debounce goroutine time to drain its queue.
func settle() { time.Sleep(20 * time.Millisecond) }

func TestDebounce_CoalescesBursts(t *testing.T) {
	clock := clockz.NewFakeClock()
	ch := make(chan int)
	r := record(t, Debounce(FromChannel(ch), clock, 100*time.Millisecond))

	ch <- 1
	ch <- 2
	ch <- 3
	settle()

	if !advanceUntil(t, clock, 100*time.Millisecond, func() bool {
		v, ok := r.last()
		return ok && v == 3
	}) {
		t.Fatalf("expected burst to settle on 3, got %v", r.snapshot())
	}
	if got := r.snapshot(); !equalSlices(got, []int{3}) {
		t.Errorf("expected a single emission, got %v", got)
	}

	ch <- 4
	settle()
	clock.Advance(50 * time.Millisecond)
	clock.BlockUntilReady()
	settle()
	if got := r.snapshot(); len(got) != 1 {
		t.Fatalf("expected no emission before the quiet period, got %v", got)
	}

	ch <- 5
	settle()
	if !advanceUntil(t, clock, 100*time.Millisecond, func() bool {
		v, _ := r.last()
		return v == 5
	}) {
		t.Fatalf("expected 5, got %v", r.snapshot())
	}
	if got := r.snapshot(); !equalSlices(got, []int{3, 5}) {
		t.Errorf("expected reset timer to drop 4, got %v", got)
	}
}

func TestDebounce_FlushesOnCompletion(t *testing.T) {
	clock := clockz.NewFakeClock()
	got, err := Collect(context.Background(), Debounce(Just(1, 2, 3), clock, time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalSlices(got, []int{3}) {
		t.Errorf("expected pending value to flush, got %v", got)
	}
}

func TestDebounce_PropagatesFailure(t *testing.T) {
	clock := clockz.NewFakeClock()
	_, err := Collect(context.Background(), Debounce(Fail[int](nil), clock, time.Second))
	if err != ErrStreamFailed {
		t.Errorf("expected ErrStreamFailed, got %v", err)
	}
}

func TestDebounce_Cancel(t *testing.T) {
	clock := clockz.NewFakeClock()
	r := record(t, Debounce(Never[int](), clock, time.Second))
	r.stop()
	if err := r.waitDone(t); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMailbox_FIFO(t *testing.T) {
	m := newMailbox[int]()
	if _, ok := m.pop(); ok {
		t.Fatal("expected empty mailbox")
	}
	for i := range 5 {
		m.push(i)
	}
	if m.len() != 5 {
		t.Fatalf("expected 5 pending, got %d", m.len())
	}
	select {
	case <-m.ready:
	default:
		t.Fatal("expected ready signal")
	}
	for i := range 5 {
		v, ok := m.pop()
		if !ok || v != i {
			t.Fatalf("expected %d, got %d (%v)", i, v, ok)
		}
	}
	if m.len() != 0 {
		t.Errorf("expected drained mailbox, got %d", m.len())
	}
}
