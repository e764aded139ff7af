package reflux

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/joeycumines/go-eventloop"
)

// ErrSchedulerClosed is returned when a scheduler no longer accepts work.
var ErrSchedulerClosed = errors.New("scheduler closed")

// Scheduler runs functions on a designated execution context.
type Scheduler interface {
	// Schedule queues fn for execution on the designated context.
	Schedule(fn func()) error
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(fn func()) error

// Schedule calls f(fn).
func (f SchedulerFunc) Schedule(fn func()) error {
	return f(fn)
}

// LoopScheduler runs scheduled functions on an event loop. The loop must be
// running for scheduled work to execute.
type LoopScheduler struct {
	Loop *eventloop.Loop
}

// Schedule submits fn to the loop.
func (s LoopScheduler) Schedule(fn func()) error {
	if err := s.Loop.Submit(fn); err != nil {
		return fmt.Errorf("%w: %w", ErrSchedulerClosed, err)
	}
	return nil
}

// ObserveOn delivers the values of src on sched, in order and one at a time.
//
// When src ends, values already queued are delivered before the stream
// returns. If sched rejects work, src is canceled and the stream fails with
// an error wrapping ErrSchedulerClosed. Subscribers must not block the
// scheduler's context waiting for the stream to return.
func ObserveOn[T any](src Stream[T], sched Scheduler) Stream[T] {
	return func(ctx context.Context, yield func(T)) error {
		sctx, cancel := context.WithCancel(ctx)
		defer cancel()

		o := &observer[T]{sched: sched, yield: yield}
		defer o.close()

		var rejected error
		err := src(sctx, func(v T) {
			if rejected != nil {
				return
			}
			if serr := o.push(v); serr != nil {
				rejected = serr
				cancel()
			}
		})
		if rejected != nil {
			return rejected
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		flushed := make(chan struct{})
		if serr := sched.Schedule(func() {
			o.drain()
			close(flushed)
		}); serr != nil {
			return serr
		}
		select {
		case <-flushed:
		case <-ctx.Done():
			return ctx.Err()
		}
		return err
	}
}

// observer queues values for delivery on a scheduler.
type observer[T any] struct {
	sched Scheduler

	// deliver is held for a whole drain so concurrent drains cannot reorder
	// values, and by close so nothing is delivered after the stream returns.
	deliver sync.Mutex
	yield   func(T)
	closed  bool

	mu        sync.Mutex
	queue     []T
	scheduled bool
}

func (o *observer[T]) push(v T) error {
	o.mu.Lock()
	o.queue = append(o.queue, v)
	if o.scheduled {
		o.mu.Unlock()
		return nil
	}
	o.scheduled = true
	o.mu.Unlock()

	if err := o.sched.Schedule(o.drain); err != nil {
		o.mu.Lock()
		o.scheduled = false
		o.mu.Unlock()
		return err
	}
	return nil
}

func (o *observer[T]) next() (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		o.scheduled = false
		var zero T
		return zero, false
	}
	v := o.queue[0]
	var zero T
	o.queue[0] = zero
	o.queue = o.queue[1:]
	return v, true
}

func (o *observer[T]) drain() {
	o.deliver.Lock()
	defer o.deliver.Unlock()
	for !o.closed {
		v, ok := o.next()
		if !ok {
			return
		}
		o.yield(v)
	}
}

func (o *observer[T]) close() {
	o.deliver.Lock()
	o.closed = true
	o.deliver.Unlock()
}
