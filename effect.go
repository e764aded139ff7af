package reflux

import (
	"context"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
)

// Invocation carries one effect call through its pipeline. Processors may
// rewrite Request before the call and Event after it.
type Invocation[R, E any] struct {
	Request R
	Event   E
}

// Call builds an effect from a single request/response function.
//
// Each subscription runs fn once through a pipeline assembled from opts and
// emits the resulting event. The pipeline is built once, so stateful options
// such as WithCircuitBreaker are shared by every request.
//
// Example:
//
//	fetch := reflux.Call(func(ctx context.Context, q string) (Event, error) {
//	    return search(ctx, q)
//	}, reflux.WithTimeout[string, Event](2*time.Second), reflux.WithRetry[string, Event](3))
//
//	fb := reflux.React(project, fetch)
func Call[R, E any](fn func(ctx context.Context, req R) (E, error), opts ...CallOption[R, E]) func(R) Stream[E] {
	terminal := pipz.Apply(callID, func(ctx context.Context, inv *Invocation[R, E]) (*Invocation[R, E], error) {
		event, err := fn(ctx, inv.Request)
		if err != nil {
			return inv, err
		}
		inv.Event = event
		return inv, nil
	})
	pipeline := buildPipeline(terminal, opts)

	return func(req R) Stream[E] {
		return func(ctx context.Context, yield func(E)) error {
			out, err := pipeline.Process(ctx, &Invocation[R, E]{Request: req})
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			yield(out.Event)
			return nil
		}
	}
}

// After emits event once d has elapsed on clock.
func After[E any](clock clockz.Clock, d time.Duration, event E) Stream[E] {
	return func(ctx context.Context, yield func(E)) error {
		timer := clock.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C():
			yield(event)
			return nil
		}
	}
}

// Every emits tick(t) each time d elapses on clock, until canceled.
func Every[E any](clock clockz.Clock, d time.Duration, tick func(time.Time) E) Stream[E] {
	return func(ctx context.Context, yield func(E)) error {
		ticker := clock.NewTicker(d)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case t := <-ticker.C():
				yield(tick(t))
			}
		}
	}
}
