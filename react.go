package reflux

import (
	"context"
	"fmt"
	"sync"

	"github.com/zoobzio/capitan"
)

// React returns a feedback that runs effect for the request projected from
// each state.
//
// project reports the request the current state asks for, or false when no
// request is wanted. An effect starts when a request appears or changes; an
// equal request on the next state leaves the running effect alone. When the
// request changes or disappears, the running effect is canceled and anything
// it would still have emitted is discarded. A request that disappears and
// comes back starts a fresh effect.
//
// An effect that fails stops producing events for its request. The failure
// is recorded and signalled, and never reaches the reducer or other effects.
//
// Example:
//
//	search := reflux.React(
//	    func(s State) (string, bool) { return s.Query, s.Query != "" },
//	    func(q string) reflux.Stream[Event] { return fetch(q) },
//	)
func React[S, E any, R comparable](project func(S) (R, bool), effect func(R) Stream[E]) Feedback[S, E] {
	return ReactSet(func(s S) Set[R] {
		return single(project(s))
	}, effect)
}

// ReactSet returns a feedback that keeps one effect running for every
// request in the set projected from each state.
//
// Members that appear start an effect, members that disappear cancel theirs,
// and members present in both states keep running. Effects for different
// requests run concurrently and their events are merged.
func ReactSet[S, E any, R comparable](project func(S) Set[R], effect func(R) Stream[E]) Feedback[S, E] {
	return func(state Stream[S]) Stream[E] {
		return func(ctx context.Context, yield func(E)) error {
			r := &reactor[R, E]{
				ctx:    ctx,
				probe:  probeFrom(ctx),
				index:  feedbackFrom(ctx),
				effect: effect,
				yield:  yield,
				tasks:  make(map[R]*task),
			}
			defer r.stop()

			var q requests[R]
			return guarded(ctx, state, func(s S) {
				r.apply(q.next(project(s)))
			})
		}
	}
}

// task is one running effect.
type task struct {
	mu       sync.Mutex
	canceled bool
	cancel   context.CancelFunc
}

// end cancels the effect. Once end returns, the effect can no longer emit.
func (t *task) end() {
	t.mu.Lock()
	t.canceled = true
	t.mu.Unlock()
	t.cancel()
}

// reactor maps live requests to running effects. apply and stop are called
// from the goroutine delivering state; effects emit from their own.
type reactor[R comparable, E any] struct {
	ctx    context.Context
	probe  *probe
	index  int
	effect func(R) Stream[E]

	emitMu sync.Mutex
	yield  func(E)

	wg    sync.WaitGroup
	tasks map[R]*task
}

func (r *reactor[R, E]) apply(transitions []transition[R]) {
	for _, tr := range transitions {
		switch tr.phase {
		case phaseEnded:
			r.end(tr.request)
		case phaseStarted:
			r.start(tr.request)
		}
	}
}

func (r *reactor[R, E]) start(req R) {
	ctx, cancel := context.WithCancel(r.ctx)
	t := &task{cancel: cancel}
	r.tasks[req] = t

	r.probe.metrics.OnEffectStarted()
	capitan.Emit(ctx, RequestStarted,
		KeyFeedback.Field(r.index),
		KeyRequest.Field(fmt.Sprint(req)),
	)

	emit := func(e E) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.canceled {
			return
		}
		r.emitMu.Lock()
		defer r.emitMu.Unlock()
		r.yield(e)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		r.run(ctx, req, emit)
	}()
}

// run subscribes the effect for req and reports how it ended.
func (r *reactor[R, E]) run(ctx context.Context, req R, emit func(E)) {
	var events Stream[E]
	err := callSafely(func() {
		events = r.effect(req)
	})
	if err == nil && events == nil {
		err = ErrNilStream
	}
	if err == nil {
		err = subscribe(ctx, events, emit)
	}

	if ctx.Err() != nil {
		return
	}

	if err != nil {
		err = fmt.Errorf("request %v: %w", req, err)
		r.probe.record(Fault{Origin: OriginEffect, Feedback: r.index, Err: err})
		r.probe.metrics.OnEffectFailed()
		capitan.Emit(ctx, EffectFailed,
			KeyOrigin.Field(OriginEffect.String()),
			KeyFeedback.Field(r.index),
			KeyRequest.Field(fmt.Sprint(req)),
			KeyError.Field(err.Error()),
		)
		return
	}

	capitan.Emit(ctx, EffectCompleted,
		KeyFeedback.Field(r.index),
		KeyRequest.Field(fmt.Sprint(req)),
	)
}

func (r *reactor[R, E]) end(req R) {
	t, ok := r.tasks[req]
	if !ok {
		return
	}
	delete(r.tasks, req)
	t.end()

	r.probe.metrics.OnEffectCanceled()
	capitan.Emit(r.ctx, RequestEnded,
		KeyFeedback.Field(r.index),
		KeyRequest.Field(fmt.Sprint(req)),
	)
}

// stop cancels every running effect and waits for all of them to return.
func (r *reactor[R, E]) stop() {
	for req, t := range r.tasks {
		delete(r.tasks, req)
		t.end()
	}
	r.wg.Wait()
}
