package reflux

import (
	"context"
	"sync"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// Feedback derives events from the evolving state. It may subscribe to state
// any number of times and may keep private state, but must not mutate the
// values it observes.
type Feedback[S, E any] func(state Stream[S]) Stream[E]

// Runner turns an ordered list of feedbacks into a live state stream.
type Runner[S, E any] func(feedbacks []Feedback[S, E]) Stream[S]

// Middleware wraps a Runner, for example to observe or decorate feedbacks.
type Middleware[S, E any] func(Runner[S, E]) Runner[S, E]

// System folds events into state with a reducer while feedbacks observe the
// state and emit further events into the same reducer.
//
// A System is immutable with respect to its feedbacks: Concat and Apply
// return new systems. Instance configuration (Metrics, Clock, OnStop,
// ErrorHistorySize) is shared by every system derived from the same New call
// and must be set before Run.
type System[S, E any] struct {
	run      Runner[S, E]
	settings *settings[S]
}

type settings[S any] struct {
	probe  *probe
	onStop func(S)
}

// New creates a System seeded with initial and folding events with reduce.
//
// reduce must be total: it is called on a single goroutine, one event at a
// time, and a panic ends the loop with a ReducerPanicError.
//
// Example:
//
//	type Counter struct{ N int }
//	type Delta int
//
//	sys := reflux.New(Counter{}, func(s Counter, d Delta) Counter {
//	    s.N += int(d)
//	    return s
//	})
//
//	states := sys.Run(reflux.Source[Counter](reflux.Just[Delta](1, 2, 3)))
//	err := states(ctx, func(s Counter) {
//	    fmt.Println(s.N)
//	})
func New[S, E any](initial S, reduce func(S, E) S) *System[S, E] {
	st := &settings[S]{probe: newProbe()}
	run := func(feedbacks []Feedback[S, E]) Stream[S] {
		return shareHub(func(ctx context.Context, h *hub[S]) error {
			return fold(ctx, st, h, initial, reduce, feedbacks)
		})
	}
	return &System[S, E]{run: run, settings: st}
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Metrics sets a metrics provider for observability integration.
// Must be called before Run().
func (s *System[S, E]) Metrics(provider MetricsProvider) *System[S, E] {
	if provider == nil {
		provider = NoOpMetricsProvider{}
	}
	s.settings.probe.metrics = provider
	return s
}

// Clock sets the clock used to time reducer applications and stamp faults.
// Use this with clockz.FakeClock for deterministic tests. Must be called
// before Run().
func (s *System[S, E]) Clock(clock clockz.Clock) *System[S, E] {
	s.settings.probe.clock = clock
	return s
}

// OnStop sets a callback invoked with the final state whenever a running
// loop stops. Must be called before Run().
func (s *System[S, E]) OnStop(fn func(S)) *System[S, E] {
	s.settings.onStop = fn
	return s
}

// ErrorHistorySize sets the number of recent faults to retain.
// Use 0 (default) to only retain the most recent fault via LastError().
// Must be called before Run().
func (s *System[S, E]) ErrorHistorySize(n int) *System[S, E] {
	s.settings.probe.faults.Store(newFaultRing(n))
	return s
}

// LastError returns the most recent contained fault, or nil.
func (s *System[S, E]) LastError() error {
	f := s.settings.probe.last.Load()
	if f == nil {
		return nil
	}
	return *f
}

// ErrorHistory returns recent faults, oldest first.
// Returns nil if history is not enabled (see ErrorHistorySize).
func (s *System[S, E]) ErrorHistory() []Fault {
	return s.settings.probe.faults.Load().all()
}

// ResetErrors discards LastError and the fault history.
func (s *System[S, E]) ResetErrors() {
	s.settings.probe.last.Store(nil)
	s.settings.probe.faults.Load().clear()
}

// -----------------------------------------------------------------------------
// Composition
// -----------------------------------------------------------------------------

// Apply returns a System whose runner is wrapped by mw.
func (s *System[S, E]) Apply(mw Middleware[S, E]) *System[S, E] {
	return &System[S, E]{run: mw(s.run), settings: s.settings}
}

// Concat returns a System with fb appended to its feedbacks. Feedbacks
// passed to Run follow all concatenated feedbacks.
func (s *System[S, E]) Concat(fb Feedback[S, E]) *System[S, E] {
	return s.Apply(func(next Runner[S, E]) Runner[S, E] {
		return func(feedbacks []Feedback[S, E]) Stream[S] {
			all := make([]Feedback[S, E], 0, len(feedbacks)+1)
			all = append(all, fb)
			all = append(all, feedbacks...)
			return next(all)
		}
	})
}

// Run returns the live state stream.
//
// Nothing happens until the stream is subscribed. The first subscriber
// starts the loop: the initial state is published, every feedback is
// subscribed to the shared state, and events are folded one at a time in
// arrival order. Every later subscriber joins the same loop and immediately
// receives the current state. When the last subscriber cancels, the loop and
// its feedbacks stop; the next subscriber starts over from the initial state.
func (s *System[S, E]) Run(feedbacks ...Feedback[S, E]) Stream[S] {
	return s.run(feedbacks)
}

// fold runs one activation of the loop, publishing states into h.
func fold[S, E any](
	ctx context.Context,
	st *settings[S],
	h *hub[S],
	initial S,
	reduce func(S, E) S,
	feedbacks []Feedback[S, E],
) (err error) {
	p := st.probe
	ctx, cancel := context.WithCancel(withProbe(ctx, p))

	box := newMailbox[E]()
	state := initial

	capitan.Emit(ctx, SystemStarted,
		KeyFeedbackCount.Field(len(feedbacks)),
	)

	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		// ctx is canceled by now and capitan drops events on canceled contexts.
		stopped := context.WithoutCancel(ctx)
		if err != nil {
			capitan.Emit(stopped, SystemStopped,
				KeyFeedbackCount.Field(len(feedbacks)),
				KeyError.Field(err.Error()),
			)
		} else {
			capitan.Emit(stopped, SystemStopped,
				KeyFeedbackCount.Field(len(feedbacks)),
			)
		}
		if st.onStop != nil {
			st.onStop(state)
		}
	}()

	// Every feedback's state subscription is registered before the first
	// publish, so no feedback misses a state while its goroutine starts.
	for i, fb := range feedbacks {
		t := newTap(h)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer t.release()
			runFeedback(ctx, p, i, fb, t, box.push)
		}()
	}

	h.publish(state)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-box.ready:
		}

		for ctx.Err() == nil {
			event, ok := box.pop()
			if !ok {
				break
			}

			start := p.clock.Now()
			next, rerr := reduceSafely(reduce, state, event)
			if rerr != nil {
				p.record(Fault{Origin: OriginReducer, Feedback: -1, Err: rerr})
				capitan.Emit(ctx, ReducerPanicked,
					KeyOrigin.Field(OriginReducer.String()),
					KeyError.Field(rerr.Error()),
				)
				return rerr
			}
			elapsed := p.clock.Since(start)
			state = next

			pending := box.len()
			p.metrics.OnEventReduced(elapsed, pending)
			capitan.Emit(ctx, EventReduced,
				KeyDuration.Field(elapsed),
				KeyPending.Field(pending),
			)

			h.publish(state)
		}
	}
}

// runFeedback subscribes one feedback and contains its failures.
func runFeedback[S, E any](ctx context.Context, p *probe, index int, fb Feedback[S, E], state *tap[S], push func(E)) {
	fctx := withRelease(withFeedback(ctx, index), state.release)

	var events Stream[E]
	err := callSafely(func() {
		events = fb(state.stream())
	})
	if err == nil && events == nil {
		err = ErrNilStream
	}
	if err == nil {
		err = subscribe(fctx, events, push)
	}

	if ctx.Err() != nil {
		return
	}

	if err != nil {
		p.record(Fault{Origin: OriginFeedback, Feedback: index, Err: err})
		p.metrics.OnFeedbackFailed(index)
		capitan.Emit(fctx, FeedbackFailed,
			KeyOrigin.Field(OriginFeedback.String()),
			KeyFeedback.Field(index),
			KeyError.Field(err.Error()),
		)
		return
	}

	capitan.Emit(fctx, FeedbackCompleted,
		KeyFeedback.Field(index),
	)
}
