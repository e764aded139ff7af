package reflux

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

// view stands in for a short-lived owner such as a screen or widget.
type view struct {
	title  string
	clicks chan int
	pad    [64]byte
}

func newView(title string) *view {
	return &view{title: title, clicks: make(chan int)}
}

func TestBind_DeliversWhileOwnerAlive(t *testing.T) {
	v := newView("counter")
	clicks := v.clicks

	var rendered atomic.Int64
	fb := Bind(v, func(_ *view, _ Stream[int]) Bindings[view, int, int] {
		return Bindings[view, int, int]{
			Subscriptions: []func(*view, int){
				func(_ *view, s int) { rendered.Store(int64(s)) },
			},
			Events: []Stream[int]{FromChannel(clicks)},
		}
	})

	r := record(t, New(0, sum).Run(fb))

	clicks <- 2
	clicks <- 3
	if !r.waitLast(t, func(s int) bool { return s == 5 }) {
		t.Fatal("expected owner events to reach the loop")
	}
	if !waitFor(t, time.Second, func() bool { return rendered.Load() == 5 }) {
		t.Errorf("expected subscription to observe 5, got %d", rendered.Load())
	}
	runtime.KeepAlive(v)
}

func TestBind_TeardownAfterOwnerReleased(t *testing.T) {
	var (
		fired    atomic.Int64
		released atomic.Bool
	)

	v := newView("transient")
	clicks := v.clicks
	fb := Bind(v, func(_ *view, _ Stream[int]) Bindings[view, int, int] {
		return Bindings[view, int, int]{
			Subscriptions: []func(*view, int){
				func(*view, int) { fired.Add(1) },
			},
			Events: []Stream[int]{FromChannel(clicks)},
		}
	})
	v = nil //nolint:ineffassign,wastedassign // release the owner

	events := make(chan int)
	stream := fb(Share(FromChannel(events)))

	done := make(chan error, 1)
	go func() {
		done <- stream(context.Background(), func(int) {})
	}()

	if !waitFor(t, 2*time.Second, func() bool {
		runtime.GC()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected completion without fault, got %v", err)
			}
			released.Store(true)
			return true
		default:
			return false
		}
	}) {
		t.Fatal("expected binding to complete after its owner was collected")
	}

	// Nothing fires after teardown.
	before := fired.Load()
	select {
	case events <- 1:
		t.Error("expected state to have no subscriber after teardown")
	case <-time.After(20 * time.Millisecond):
	}
	if fired.Load() != before {
		t.Error("expected no subscription to fire after release")
	}
	if !released.Load() {
		t.Error("expected release")
	}
}

func TestBind_DeadOwnerCompletesImmediately(t *testing.T) {
	fb := Bind(newView("gone"), func(*view, Stream[int]) Bindings[view, int, int] {
		return Bindings[view, int, int]{}
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		runtime.GC()
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		err := fb(Never[int]())(ctx, func(int) {})
		cancel()
		if err == nil {
			return
		}
	}
	t.Fatal("expected an immediate completion once the owner is collected")
}

func TestBind_SubscriptionPanicFailsFeedback(t *testing.T) {
	v := newView("faulty")
	fb := Bind(v, func(*view, Stream[int]) Bindings[view, int, int] {
		return Bindings[view, int, int]{
			Subscriptions: []func(*view, int){
				func(*view, int) { panic("render failed") },
			},
		}
	})

	err := fb(Just(1))(context.Background(), func(int) {})
	var perr *PanicError
	if !errors.As(err, &perr) {
		t.Errorf("expected PanicError, got %v", err)
	}
	runtime.KeepAlive(v)
}
