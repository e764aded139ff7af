package reflux

import (
	"context"
	"runtime"
	"weak"

	"github.com/zoobzio/capitan"
	"golang.org/x/sync/errgroup"
)

// Bindings couples an owner to a running loop.
//
// Subscriptions are called with the owner and every state for as long as the
// owner is alive. Events are the owner-originated streams, merged into the
// loop's events.
type Bindings[O, S, E any] struct {
	Subscriptions []func(owner *O, state S)
	Events        []Stream[E]
}

// Bind returns a feedback scoped to the lifetime of owner.
//
// The feedback holds owner weakly and never extends its lifetime. bindings
// is called once per activation with the owner and the state stream; the
// streams it returns must not capture owner, or owner can never be
// collected. Before every delivery the owner is resolved: once it is gone,
// subscriptions stop firing, pending owner events are dropped and the
// feedback completes without error.
func Bind[O, S, E any](owner *O, bindings func(owner *O, state Stream[S]) Bindings[O, S, E]) Feedback[S, E] {
	ref := weak.Make(owner)
	return func(state Stream[S]) Stream[E] {
		return func(ctx context.Context, yield func(E)) error {
			return bind(ctx, ref, state, bindings, yield)
		}
	}
}

func bind[O, S, E any](
	ctx context.Context,
	ref weak.Pointer[O],
	state Stream[S],
	bindings func(*O, Stream[S]) Bindings[O, S, E],
	yield func(E),
) error {
	o := ref.Value()
	if o == nil {
		released(ctx)
		return nil
	}

	bctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cleanup := runtime.AddCleanup(o, func(cancel context.CancelFunc) {
		cancel()
	}, cancel)
	defer cleanup.Stop()

	var b Bindings[O, S, E]
	if err := callSafely(func() {
		b = bindings(o, state)
	}); err != nil {
		return err
	}
	o = nil //nolint:ineffassign,wastedassign // drop the strong reference

	g, gctx := errgroup.WithContext(bctx)
	g.Go(func() error {
		return guarded(gctx, state, func(s S) {
			owner := ref.Value()
			if owner == nil {
				cancel()
				return
			}
			for _, sub := range b.Subscriptions {
				sub(owner, s)
			}
		})
	})
	g.Go(func() error {
		return subscribe(gctx, Merge(b.Events...), func(e E) {
			if ref.Value() == nil {
				cancel()
				return
			}
			yield(e)
		})
	})
	err := g.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if ref.Value() == nil {
		released(ctx)
		return nil
	}
	return err
}

func released(ctx context.Context) {
	capitan.Emit(ctx, BindingReleased,
		KeyFeedback.Field(feedbackFrom(ctx)),
	)
}
