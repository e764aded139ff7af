package reflux

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrStreamFailed is returned by Fail when no error is supplied.
var ErrStreamFailed = errors.New("stream failed")

// Stream is a cold, push-based sequence of values.
//
// Calling a Stream subscribes to it. Values are passed to yield in order and
// never concurrently. The call blocks until the stream completes (nil), fails
// (the terminal error), or ctx is canceled. Cancelling ctx is the only way to
// unsubscribe; a canceled stream must return promptly and must not call yield
// after it has returned.
//
// yield must not block on the stream that is delivering to it.
type Stream[T any] func(ctx context.Context, yield func(T)) error

// Just returns a stream that emits the given values and completes.
func Just[T any](values ...T) Stream[T] {
	return From(values)
}

// From returns a stream that emits each element of values and completes.
func From[T any](values []T) Stream[T] {
	return func(ctx context.Context, yield func(T)) error {
		for _, v := range values {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			yield(v)
		}
		return nil
	}
}

// Empty returns a stream that completes immediately.
func Empty[T any]() Stream[T] {
	return func(context.Context, func(T)) error {
		return nil
	}
}

// Never returns a stream that emits nothing and only ends on cancellation.
func Never[T any]() Stream[T] {
	return func(ctx context.Context, _ func(T)) error {
		<-ctx.Done()
		return ctx.Err()
	}
}

// Fail returns a stream that terminates immediately with err.
// A nil err is replaced with ErrStreamFailed.
func Fail[T any](err error) Stream[T] {
	if err == nil {
		err = ErrStreamFailed
	}
	return func(context.Context, func(T)) error {
		return err
	}
}

// FromChannel returns a stream that forwards values from ch until it is
// closed. Each subscription reads from the same channel.
func FromChannel[T any](ch <-chan T) Stream[T] {
	return func(ctx context.Context, yield func(T)) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case v, ok := <-ch:
				if !ok {
					return nil
				}
				yield(v)
			}
		}
	}
}

// Map transforms every value of src with fn.
func Map[T, U any](src Stream[T], fn func(T) U) Stream[U] {
	return func(ctx context.Context, yield func(U)) error {
		return src(ctx, func(v T) {
			yield(fn(v))
		})
	}
}

// Filter forwards only the values of src for which keep returns true.
func Filter[T any](src Stream[T], keep func(T) bool) Stream[T] {
	return func(ctx context.Context, yield func(T)) error {
		return src(ctx, func(v T) {
			if keep(v) {
				yield(v)
			}
		})
	}
}

// Merge subscribes to all sources concurrently and interleaves their values.
// The merged stream completes when every source completes. The first failure
// cancels the remaining sources and becomes the terminal error.
func Merge[T any](sources ...Stream[T]) Stream[T] {
	switch len(sources) {
	case 0:
		return Empty[T]()
	case 1:
		return sources[0]
	}
	return func(ctx context.Context, yield func(T)) error {
		var mu sync.Mutex
		emit := func(v T) {
			mu.Lock()
			defer mu.Unlock()
			yield(v)
		}
		g, gctx := errgroup.WithContext(ctx)
		for _, src := range sources {
			g.Go(func() error {
				return src(gctx, emit)
			})
		}
		err := g.Wait()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
}

// CompleteOnError converts a failure of src into normal completion.
// Panics raised while subscribing to src are converted the same way.
func CompleteOnError[T any](src Stream[T]) Stream[T] {
	return func(ctx context.Context, yield func(T)) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = nil
			}
		}()
		_ = src(ctx, yield) //nolint:errcheck // failures degrade to completion
		return nil
	}
}

// Collect subscribes to src and gathers every value until it ends.
func Collect[T any](ctx context.Context, src Stream[T]) ([]T, error) {
	var out []T
	err := src(ctx, func(v T) {
		out = append(out, v)
	})
	return out, err
}

// subscribe calls src and turns a panic into an error so a single
// misbehaving stream cannot crash the goroutine that owns it.
func subscribe[T any](ctx context.Context, src Stream[T], yield func(T)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return src(ctx, yield)
}

// PanicError wraps a value recovered from a panicking stream or callback.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the recovered value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
