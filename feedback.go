package reflux

import "context"

// Source adapts an external event producer into a feedback that ignores
// state. Use it for timers, watchers, message consumers and other inputs
// that are not derived from state.
//
// Feedbacks that never subscribe to state should be built with Source so the
// loop does not hold states for them.
func Source[S, E any](events Stream[E]) Feedback[S, E] {
	return func(Stream[S]) Stream[E] {
		if events == nil {
			return nil
		}
		return func(ctx context.Context, yield func(E)) error {
			releaseState(ctx)
			return events(ctx, yield)
		}
	}
}

// Observe returns a feedback that calls fn with every state and emits no
// events. fn runs on the loop's delivery path and must not block.
func Observe[S, E any](fn func(S)) Feedback[S, E] {
	return func(state Stream[S]) Stream[E] {
		return func(ctx context.Context, _ func(E)) error {
			return guarded(ctx, state, fn)
		}
	}
}

// MapState adapts a feedback written against a narrower view of state.
func MapState[S, V, E any](view func(S) V, fb Feedback[V, E]) Feedback[S, E] {
	return func(state Stream[S]) Stream[E] {
		return fb(Map(state, view))
	}
}

// MapEvents adapts a feedback that emits a narrower event type.
func MapEvents[S, F, E any](lift func(F) E, fb Feedback[S, F]) Feedback[S, E] {
	return func(state Stream[S]) Stream[E] {
		return Map(fb(state), lift)
	}
}

// guarded subscribes fn to state. A panic in fn ends the subscription with a
// PanicError instead of unwinding the goroutine that delivers state.
func guarded[S any](ctx context.Context, state Stream[S], fn func(S)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var failure error
	err := state(ctx, func(s S) {
		if failure != nil {
			return
		}
		if perr := callSafely(func() { fn(s) }); perr != nil {
			failure = perr
			cancel()
		}
	})
	if failure != nil {
		return failure
	}
	return err
}
